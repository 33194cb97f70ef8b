package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/helixir/research-crawler/internal/domain"
)

const maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies

// crawlRequest is the JSON request body of both crawl endpoints.
// IncludeFullText is ignored by /crawl/all.
type crawlRequest struct {
	Queries         []string `json:"queries" validate:"required,min=1,max=50,dive,max=1000"`
	MaxResults      int      `json:"maxResults" validate:"gte=0"`
	IncludeFullText bool     `json:"includeFullText"`
}

func (r crawlRequest) toDomain() domain.CrawlRequest {
	return domain.CrawlRequest{
		Queries:         r.Queries,
		MaxResults:      r.MaxResults,
		IncludeFullText: r.IncludeFullText,
	}
}

// crawlSource handles POST /crawl/{source}.
func (s *Server) crawlSource(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	req, ok := s.decodeCrawlRequest(w, r)
	if !ok {
		return
	}

	// A disconnected caller abandons the crawl rather than cancelling it, so
	// in-flight fetches still populate the cache.
	ctx := context.WithoutCancel(r.Context())

	result, err := s.crawler.CrawlOne(ctx, source, req.toDomain())
	if err != nil {
		s.writeCrawlError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSourceResponse(source, req.Queries, result))
}

// crawlAll handles POST /crawl/all.
func (s *Server) crawlAll(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCrawlRequest(w, r)
	if !ok {
		return
	}

	ctx := context.WithoutCancel(r.Context())

	dreq := req.toDomain()
	dreq.IncludeFullText = false

	result, err := s.crawler.CrawlAll(ctx, dreq)
	if err != nil {
		s.writeCrawlError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAllResponse(result))
}

// decodeCrawlRequest reads and validates the body, writing a 400 response
// on failure.
func (s *Server) decodeCrawlRequest(w http.ResponseWriter, r *http.Request) (crawlRequest, bool) {
	defer r.Body.Close()

	var req crawlRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return req, false
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return req, false
	}
	return req, true
}

// validationMessage renders the first field error without echoing the
// rejected value.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}

	fe := verrs[0]
	field := fieldName(fe.StructField())
	switch fe.Tag() {
	case "required", "min":
		return fmt.Sprintf("%s: at least one query is required", field)
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at most %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s: each query must be at most %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must not be negative", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func fieldName(structField string) string {
	switch {
	case strings.HasPrefix(structField, "Queries"):
		return "queries"
	case structField == "MaxResults":
		return "maxResults"
	default:
		return strings.ToLower(structField)
	}
}

// writeCrawlError maps a crawl error to a response. Client errors carry
// their message; anything else is reported without internal details.
func (s *Server) writeCrawlError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	if !domain.IsClientError(err) {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("crawl failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Error())
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}
