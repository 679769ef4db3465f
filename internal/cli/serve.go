package cli

import (
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"bilingual-rag/internal/server"
	"bilingual-rag/internal/tui"
)

func newServeCommand(e *env) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the question answering HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.app()
			if err != nil {
				return err
			}
			if !e.cfg.Log.Development {
				gin.SetMode(gin.ReleaseMode)
			}
			h := server.NewHandler(a.Pipeline, e.cfg.Retriever.TopK, e.logger.Named("http"))
			router := server.NewRouter(h, server.Options{AllowedOrigins: e.cfg.Server.AllowedOrigins})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, orDefault(addr, e.cfg.Server.Addr), router, e.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

func newConsoleCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Ask questions in an interactive terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.app()
			if err != nil {
				return err
			}
			m := tui.New(cmd.Context(), a.Pipeline, e.cfg.Retriever.TopK)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
}
