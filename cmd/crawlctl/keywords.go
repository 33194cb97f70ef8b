package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/research-crawler/internal/keywords"
)

func newKeywordsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "keywords TEXT...",
		Short: "Print the keywords extracted from TEXT",
		Long: `keywords runs the extractor used for papers whose source provides no
keywords. Arguments are joined with spaces. Keywords are printed one per
line, most frequent first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found := keywords.Extract(strings.Join(args, " "))
			out := cmd.OutOrStdout()

			if asJSON {
				return json.NewEncoder(out).Encode(found)
			}
			for _, kw := range found {
				fmt.Fprintln(out, kw)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output keywords as a JSON array")
	return cmd
}
