package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dataloom-cli/internal/narrative"
	"github.com/KaramelBytes/dataloom-cli/internal/server"
)

var (
	srvAddr    string
	srvNarrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis engine over HTTP (POST /analyze, GET /analyses/{id}, GET /health)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := ensureConfig()
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		sc := server.Config{
			Addr:           c.ServerAddr,
			CacheSize:      c.CacheSize,
			MaxUploadBytes: c.MaxUploadBytes(),
			Decode:         c.DecodeOptions(),
			Options:        c.AnalysisOptions(),
		}
		if cmd.Flags().Changed("addr") {
			sc.Addr = srvAddr
		}
		if srvNarrate || c.Narrate {
			rt, provider, err := buildRuntime(c, runtimeOptions{})
			if err != nil {
				return err
			}
			debugf("server narrative provider=%s", provider)
			sc.Narrator = &narrative.Narrator{
				Runtime:     rt,
				Model:       selectModel(c, ""),
				MaxTokens:   c.MaxTokens,
				Temperature: c.Temperature,
			}
		}
		logger, err := newServerLogger(debug)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()
		sc.Logger = logger.Sugar()
		srv, err := server.New(sc)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("start server: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Serving on %s (Ctrl+C to stop)\n", sc.Addr)
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Server stopped")
		return nil
	},
}

// newServerLogger returns a JSON production logger, or a console logger at
// debug level when --debug is set.
func newServerLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", ":8000", "listen address (overrides server_addr)")
	serveCmd.Flags().BoolVar(&srvNarrate, "narrate", false, "rewrite summaries and strategies with the configured AI provider")
}
