package retrieval

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/propintel/internal/retrieval/handler"
	"github.com/kart-io/propintel/internal/retrieval/router"
	httpopts "github.com/kart-io/propintel/pkg/options/http"
)

// RunServer 启动 HTTP 服务器并阻塞到收到退出信号。
func RunServer(opts *httpopts.Options, h *handler.RetrievalHandler) error {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	router.Register(engine, h)

	srv := &http.Server{
		Addr:         opts.Addr,
		Handler:      engine,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Infow("Shutting down server...", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	logger.Info("Server exited")
	return nil
}
