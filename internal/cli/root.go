// Package cli implements the rag command line.
package cli

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bilingual-rag/internal/app"
	"bilingual-rag/internal/config"
	"bilingual-rag/internal/logging"
)

// env carries what every subcommand needs once the root has loaded config.
type env struct {
	configPath string
	envFile    string
	verbose    bool

	cfg    *config.AppConfig
	logger *zap.Logger
}

// NewRootCommand returns the rag command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:   "rag",
		Short: "Bilingual (English/Bangla) retrieval-augmented question answering",
		Long: `rag extracts text from textbook PDFs, chunks it, builds one vector
index per language and answers questions from the index matching the
question's language.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&e.configPath, "config", "c", "", "path to YAML config (default ./config.yaml or ~/.config/bilingual-rag/config.yaml)")
	root.PersistentFlags().StringVar(&e.envFile, "env-file", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newExtractCommand(e),
		newChunkCommand(e),
		newIndexCommand(e),
		newQueryCommand(e),
		newAskCommand(e),
		newServeCommand(e),
		newConsoleCommand(e),
	)
	return root
}

func (e *env) load() error {
	if e.envFile != "" {
		if err := godotenv.Load(e.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	var err error
	if e.configPath == "" {
		e.cfg, e.configPath, err = config.LoadDefault()
	} else {
		e.cfg, err = config.Load(e.configPath)
	}
	if err != nil {
		return err
	}
	if e.verbose {
		e.cfg.Log.Level = "debug"
	}
	e.logger, err = logging.New(e.cfg.Log)
	if err != nil {
		return err
	}
	e.logger.Debug("config loaded", zap.String("path", e.configPath))
	return nil
}

func (e *env) app() (*app.App, error) {
	return app.New(e.cfg, e.logger)
}
