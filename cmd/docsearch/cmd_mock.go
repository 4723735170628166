package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/haowjy/docsearch-go/backends/lorem"
)

var (
	mockServerCmd = &cobra.Command{
		Use:   "mock-server",
		Short: "Run a lorem ipsum backend for local development",
		Long: `Serves the backend API under /api with generated documents and lorem
ipsum answers. Sign in with --id-token ` + lorem.DefaultIDToken + `.`,
		Args: cobra.NoArgs,
		RunE: runMockServer,
	}
	mockAddr      string
	mockWordDelay time.Duration
	mockChunks    int
	mockFail      int
)

func init() {
	mockServerCmd.Flags().StringVar(&mockAddr, "addr", "127.0.0.1:8000", "listen address")
	mockServerCmd.Flags().DurationVar(&mockWordDelay, "word-delay", 60*time.Millisecond, "pause between streamed words")
	mockServerCmd.Flags().IntVar(&mockChunks, "chunks", 40, "words per streamed answer")
	mockServerCmd.Flags().IntVar(&mockFail, "fail-stream", 0, "answer every stream with this HTTP status")
}

func runMockServer(cmd *cobra.Command, args []string) error {
	gin.SetMode(gin.ReleaseMode)
	logger := current.logger.Named("mock")

	backend := lorem.NewServer(
		lorem.WithLogger(logger),
		lorem.WithWordDelay(mockWordDelay),
		lorem.WithChunks(mockChunks),
		lorem.WithFailStream(mockFail),
	)
	srv := &http.Server{
		Addr:              mockAddr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "%s mock backend on %s\n", success("✓"), cyan("http://"+mockAddr+"/api"))
	logger.Info("mock backend listening", zap.String("addr", mockAddr), zap.Int("documents", len(backend.Documents())))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
