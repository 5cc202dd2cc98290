package ports

import (
	"context"

	"playwright-mcp/internal/entity"
)

// PageDriver is the capability surface the dispatcher needs from the
// browser session. Timeouts are per call, in milliseconds.
type PageDriver interface {
	EnsureReady(ctx context.Context) error
	Close(ctx context.Context) error
	OpenNewTab(ctx context.Context, url string) error
	Goto(ctx context.Context, url string, timeoutMs float64) error
	Click(ctx context.Context, selector string, timeoutMs float64) error
	TypeText(ctx context.Context, selector string, text string, timeoutMs float64) error
	SelectOption(ctx context.Context, selector string, value string, timeoutMs float64) error
	WaitForSelector(ctx context.Context, selector string, timeoutMs float64) error
	Hover(ctx context.Context, selector string, timeoutMs float64) error
	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, path string, fullPage bool) error
	IsReady() bool
}

// Dispatcher routes command requests to the driver. Every dispatch returns
// a CommandResult; transports never see a fault.
type Dispatcher interface {
	Dispatch(ctx context.Context, req entity.CommandRequest) entity.CommandResult
	Catalog() []entity.ToolDescriptor
}
