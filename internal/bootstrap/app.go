package bootstrap

import (
	"time"

	"playwright-mcp/internal/browser"
	"playwright-mcp/internal/command"
	"playwright-mcp/internal/config"
	"playwright-mcp/internal/ports"
	"playwright-mcp/internal/transport/httpapi"
	"playwright-mcp/internal/transport/stdio"

	"go.uber.org/fx"
)

func NewApp() *fx.App {
	return fx.New(
		fx.Provide(
			config.GetConfig,
			newLogger,
			newTraceProvider,

			fx.Annotate(browser.NewSession, fx.As(new(ports.PageDriver))),

			command.NewRegistry,
			fx.Annotate(command.NewDispatcher, fx.As(new(ports.Dispatcher))),

			stdio.NewServer,
			httpapi.NewServer,
		),

		fx.Invoke(
			runServer,
		),

		fx.StartTimeout(10*time.Second),
	)
}
