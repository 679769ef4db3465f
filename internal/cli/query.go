package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"bilingual-rag/internal/domain"
	"bilingual-rag/internal/retriever"
)

type queryFlags struct {
	lang string
	topK int
	json bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.lang, "language", "l", "", "skip detection and use this language (english|bangla)")
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", 0, "number of passages (default retriever.top_k)")
	cmd.Flags().BoolVar(&f.json, "json", false, "print JSON")
}

func (f *queryFlags) options(e *env) retriever.Options {
	opts := retriever.Options{Language: f.lang, TopK: e.cfg.Retriever.TopK}
	if f.topK != 0 {
		opts.TopK = f.topK
	}
	return opts
}

func newQueryCommand(e *env) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Print the nearest chunks for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.app()
			if err != nil {
				return err
			}
			resp, err := a.Pipeline.Retrieve(cmd.Context(), strings.Join(args, " "), f.options(e))
			if err != nil {
				return err
			}
			if f.json {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"language": resp.Language, "results": resp.Results})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "language: %s\n", resp.Language)
			printResults(cmd.OutOrStdout(), resp.Results)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newAskCommand(e *env) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the corpus in its language",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.app()
			if err != nil {
				return err
			}
			ans, err := a.Pipeline.Answer(cmd.Context(), strings.Join(args, " "), f.options(e))
			if err != nil {
				return err
			}
			if f.json {
				return writeJSON(cmd.OutOrStdout(), ans)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ans.Text)
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintf(cmd.OutOrStdout(), "language: %s\n", ans.Language)
			printResults(cmd.OutOrStdout(), ans.Results)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func printResults(w io.Writer, results []domain.Result) {
	for i, r := range results {
		if r.NoMatch {
			fmt.Fprintln(w, r.Text)
			continue
		}
		fmt.Fprintf(w, "  [%d] %s#%d (distance %.4f)\n", i+1, r.Source, r.Position, r.Distance)
		fmt.Fprintf(w, "      %s\n", snippet(r.Text, 160))
	}
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
