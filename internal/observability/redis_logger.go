package observability

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// RedisLogger adapts zerolog to the go-redis internal logger, which only
// needs a context-aware Printf. Install it with redis.SetLogger.
type RedisLogger struct {
	logger zerolog.Logger
}

// NewRedisLogger creates a RedisLogger that delegates to the given
// zerolog.Logger, adding a "component":"redis" field.
func NewRedisLogger(logger zerolog.Logger) *RedisLogger {
	return &RedisLogger{logger: WithComponent(logger, "redis")}
}

// Printf logs a go-redis diagnostic at warn level. go-redis only logs
// connection-pool and reconnect problems.
func (l *RedisLogger) Printf(ctx context.Context, format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	logger := l.logger
	if id := RequestIDFromContext(ctx); id != "" {
		logger = logger.With().Str("request_id", id).Logger()
	}
	logger.Warn().Msg(msg)
}
