package bootstrap

import (
	"context"

	"playwright-mcp/internal/config"
	"playwright-mcp/internal/ports"
	"playwright-mcp/internal/transport/httpapi"
	"playwright-mcp/internal/transport/stdio"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func runServer(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	conf *config.Config,
	stdioServer *stdio.Server,
	httpServer *httpapi.Server,
	driver ports.PageDriver,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting server", zap.String("transport", conf.ServerConfig.Transport))

			// The browser chain stays lazy: the first dispatched
			// command triggers EnsureReady.
			switch conf.ServerConfig.Transport {
			case config.TransportHTTP:
				go func() {
					if err := httpServer.Start(); err != nil {
						logger.Error("HTTP server error", zap.Error(err))
						_ = shutdowner.Shutdown()
					}
				}()
			default:
				go func() {
					if err := stdioServer.Run(); err != nil {
						logger.Error("Stdio server error", zap.Error(err))
					}

					_ = shutdowner.Shutdown()
				}()
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down...")

			if conf.ServerConfig.Transport == config.TransportHTTP {
				if err := httpServer.Stop(ctx); err != nil {
					logger.Error("Failed to stop HTTP server", zap.Error(err))
				}
			}

			if err := driver.Close(ctx); err != nil {
				logger.Error("Failed to close browser", zap.Error(err))
			}

			return nil
		},
	})
}
