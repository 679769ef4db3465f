package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"bilingual-rag/internal/app"
	"bilingual-rag/internal/domain"
	"bilingual-rag/internal/extract"
	"bilingual-rag/internal/service"
)

func newExtractCommand(e *env) *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract plain text from every PDF in the PDF directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in = orDefault(in, e.cfg.Paths.PDFDir)
			out = orDefault(out, e.cfg.Paths.ExtractedDir)
			written, err := extract.ExtractDir(cmd.Context(), in, out, e.logger.Named("extract"))
			for _, w := range written {
				fmt.Fprintln(cmd.OutOrStdout(), w)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "PDF directory (default paths.pdf_dir)")
	cmd.Flags().StringVar(&out, "out", "", "text output directory (default paths.extracted_dir)")
	return cmd
}

func newChunkCommand(e *env) *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "chunk",
		Short: "Split extracted text files into overlapping chunks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.NewChunker(e.cfg)
			if err != nil {
				return err
			}
			p := service.NewPipeline(service.Deps{Chunker: c, Logger: e.logger.Named("pipeline")})
			written, err := p.ChunkDir(cmd.Context(), orDefault(in, e.cfg.Paths.ExtractedDir), orDefault(out, e.cfg.Paths.ChunkedDir))
			for _, w := range written {
				fmt.Fprintln(cmd.OutOrStdout(), w)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "text directory (default paths.extracted_dir)")
	cmd.Flags().StringVar(&out, "out", "", "chunk output directory (default paths.chunked_dir)")
	return cmd
}

func newIndexCommand(e *env) *cobra.Command {
	var (
		rebuild bool
		lang    string
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed the chunk files and build one index per language",
		Long: `index reads the chunk files configured under corpora, embeds them and
writes index.bin and corpus.json for each language. Existing indexes are
kept unless --rebuild is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.NewIndexer(e.cfg, e.logger)
			if err != nil {
				return err
			}
			if lang != "" {
				l, ok := domain.ParseLanguage(lang)
				if !ok {
					return &domain.UnsupportedLanguageError{Detected: lang}
				}
				h, err := a.Pipeline.BuildCorpus(cmd.Context(), l, e.cfg.Corpora[l], rebuild)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks, build %s\n", l, h.Len(), h.BuildID)
				return nil
			}
			built, err := a.Pipeline.BuildAll(cmd.Context(), rebuild)
			langs := make([]string, 0, len(built))
			for l := range built {
				langs = append(langs, string(l))
			}
			sort.Strings(langs)
			for _, l := range langs {
				h := built[domain.Language(l)]
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks, build %s\n", l, h.Len(), h.BuildID)
			}
			if len(built) == 0 && err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to build (use --rebuild to replace existing indexes)")
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "replace existing indexes")
	cmd.Flags().StringVarP(&lang, "language", "l", "", "build only this language (english|bangla)")
	return cmd
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
