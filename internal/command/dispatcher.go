package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"playwright-mcp/internal/config"
	"playwright-mcp/internal/entity"
	"playwright-mcp/internal/ports"
	"playwright-mcp/pkg/logg"
	"playwright-mcp/pkg/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	dispatcherLayerName = "CommandDispatcher"
	dispatcherTracer    = "command.dispatcher"
)

const contentLimit = 5000

type handlerFunc func(ctx context.Context, args map[string]any) entity.CommandResult

// Dispatcher validates requests against the registry, ensures the session
// is ready, and invokes the matching driver operation. Every path yields a
// CommandResult; no failure escapes as an error or panic.
type Dispatcher struct {
	config   *config.Config
	logger   *zap.Logger
	tracer   trace.Tracer
	registry *Registry
	driver   ports.PageDriver
	handlers map[string]handlerFunc
}

type DispatcherParams struct {
	fx.In

	Config   *config.Config
	Logger   *zap.Logger
	Registry *Registry
	Driver   ports.PageDriver
}

func NewDispatcher(params DispatcherParams) *Dispatcher {
	d := &Dispatcher{
		config:   params.Config,
		logger:   params.Logger.With(zap.String(logg.Layer, dispatcherLayerName)),
		tracer:   otel.Tracer(dispatcherTracer),
		registry: params.Registry,
		driver:   params.Driver,
	}

	// Keyed identically to the registry so adding a tool is a data change
	// in both tables, not a new branch.
	d.handlers = map[string]handlerFunc{
		entity.ToolNavigate:        d.handleNavigate,
		entity.ToolClick:           d.handleClick,
		entity.ToolTakeScreenshot:  d.handleTakeScreenshot,
		entity.ToolTypeText:        d.handleTypeText,
		entity.ToolSelectOption:    d.handleSelectOption,
		entity.ToolWaitForSelector: d.handleWaitForSelector,
		entity.ToolGetPageContent:  d.handleGetPageContent,
		entity.ToolCloseBrowser:    d.handleCloseBrowser,
		entity.ToolOpenNewTab:      d.handleOpenNewTab,
		entity.ToolHoverMouse:      d.handleHoverMouse,
	}

	return d
}

func (d *Dispatcher) Catalog() []entity.ToolDescriptor {
	return d.registry.Catalog()
}

func (d *Dispatcher) Dispatch(ctx context.Context, req entity.CommandRequest) (result entity.CommandResult) {
	const op = "Dispatch"
	logger := d.logger.With(
		zap.String(logg.Operation, op),
		zap.String(logg.Tool, req.Name),
		zap.String(logg.RequestID, req.CorrelationID),
	)

	ctx, step := tracing.StartSpan(ctx, d.tracer, logger, op,
		attribute.String("tool", req.Name))
	defer func() {
		if !result.Succeeded {
			logger.Warn("Command failed", zap.String("message", result.Message))
		}

		step.End(nil)
	}()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic during dispatch", zap.Any("panic", r))
			result = failure(fmt.Sprintf("Error: internal failure in %s", req.Name))
		}
	}()

	desc, ok := d.registry.Lookup(req.Name)
	if !ok {
		return failure(fmt.Sprintf("Unknown tool: %s", req.Name))
	}

	for _, key := range desc.Required {
		if _, present := req.Arguments[key]; !present {
			return failure(fmt.Sprintf("Missing required argument '%s' for tool %s", key, req.Name))
		}
	}

	handler, ok := d.handlers[req.Name]
	if !ok {
		return failure(fmt.Sprintf("Unknown tool: %s", req.Name))
	}

	// close_browser must work on a torn-down session without reviving it.
	if req.Name != entity.ToolCloseBrowser {
		step.AddEvent("ensuring session ready")

		if err := d.driver.EnsureReady(ctx); err != nil {
			return failure(fmt.Sprintf("Error: %v", err))
		}
	}

	args := mergeDefaults(req.Arguments, desc.Defaults)

	step.AddEvent("invoking handler")

	return handler(ctx, args)
}

func (d *Dispatcher) handleNavigate(ctx context.Context, args map[string]any) entity.CommandResult {
	url := stringArg(args, entity.ArgURL)

	if err := d.driver.Goto(ctx, url, floatArg(args, entity.ArgTimeout)); err != nil {
		return failure(fmt.Sprintf("Failed to navigate to %s: %v", url, err))
	}

	return success(fmt.Sprintf("Successfully navigated to %s", url))
}

func (d *Dispatcher) handleClick(ctx context.Context, args map[string]any) entity.CommandResult {
	selector := stringArg(args, entity.ArgSelector)

	if err := d.driver.Click(ctx, selector, floatArg(args, entity.ArgTimeout)); err != nil {
		return failure(fmt.Sprintf("Failed to click on %s: %v", selector, err))
	}

	return success(fmt.Sprintf("Successfully clicked on %s", selector))
}

func (d *Dispatcher) handleTakeScreenshot(ctx context.Context, args map[string]any) entity.CommandResult {
	name := stringArg(args, entity.ArgPath)
	if name == "" {
		name = defaultScreenshotName
	}

	resolved := filepath.Join(d.config.BrowserConfig.ScreenshotDir, name)

	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return failure(fmt.Sprintf("Failed to take screenshot: %v", err))
	}

	if err := d.driver.Screenshot(ctx, resolved, boolArg(args, entity.ArgFullPage)); err != nil {
		return failure(fmt.Sprintf("Failed to take screenshot: %v", err))
	}

	// A capture that reports success but leaves no artifact is its own
	// failure mode, distinct from the capture call failing.
	info, err := os.Stat(resolved)
	if err != nil {
		return failure(fmt.Sprintf("Screenshot file not found at %s", resolved))
	}

	return entity.CommandResult{
		Succeeded:  true,
		Message:    fmt.Sprintf("Screenshot saved to %s (%d bytes)", name, info.Size()),
		RawPayload: []byte(resolved),
	}
}

func (d *Dispatcher) handleTypeText(ctx context.Context, args map[string]any) entity.CommandResult {
	selector := stringArg(args, entity.ArgSelector)
	text := stringArg(args, entity.ArgText)

	if err := d.driver.TypeText(ctx, selector, text, floatArg(args, entity.ArgTimeout)); err != nil {
		return failure(fmt.Sprintf("Failed to type into %s: %v", selector, err))
	}

	return success(fmt.Sprintf("Successfully typed '%s' into %s", text, selector))
}

func (d *Dispatcher) handleSelectOption(ctx context.Context, args map[string]any) entity.CommandResult {
	selector := stringArg(args, entity.ArgSelector)
	value := stringArg(args, entity.ArgValue)

	if err := d.driver.SelectOption(ctx, selector, value, floatArg(args, entity.ArgTimeout)); err != nil {
		return failure(fmt.Sprintf("Failed to select option in %s: %v", selector, err))
	}

	return success(fmt.Sprintf("Successfully selected '%s' in %s", value, selector))
}

func (d *Dispatcher) handleWaitForSelector(ctx context.Context, args map[string]any) entity.CommandResult {
	selector := stringArg(args, entity.ArgSelector)

	if err := d.driver.WaitForSelector(ctx, selector, floatArg(args, entity.ArgTimeout)); err != nil {
		return failure(fmt.Sprintf("Element %s did not appear: %v", selector, err))
	}

	return success(fmt.Sprintf("Element %s appeared", selector))
}

func (d *Dispatcher) handleGetPageContent(ctx context.Context, _ map[string]any) entity.CommandResult {
	content, err := d.driver.Content(ctx)
	if err != nil {
		return failure(fmt.Sprintf("Failed to get page content: %v", err))
	}

	if len(content) > contentLimit {
		content = content[:contentLimit] + "... (content truncated)"
	}

	return success(content)
}

func (d *Dispatcher) handleCloseBrowser(ctx context.Context, _ map[string]any) entity.CommandResult {
	if err := d.driver.Close(ctx); err != nil {
		return failure(fmt.Sprintf("Failed to close browser: %v", err))
	}

	return success("Browser closed successfully")
}

func (d *Dispatcher) handleOpenNewTab(ctx context.Context, args map[string]any) entity.CommandResult {
	url := stringArg(args, entity.ArgURL)

	if err := d.driver.OpenNewTab(ctx, url); err != nil {
		return failure(fmt.Sprintf("Failed to open new tab: %v", err))
	}

	if url != "" {
		return success(fmt.Sprintf("New tab opened and navigated to %s", url))
	}

	return success("New tab opened")
}

func (d *Dispatcher) handleHoverMouse(ctx context.Context, args map[string]any) entity.CommandResult {
	selector := stringArg(args, entity.ArgSelector)

	if err := d.driver.Hover(ctx, selector, floatArg(args, entity.ArgTimeout)); err != nil {
		return failure(fmt.Sprintf("Failed to hover over %s: %v", selector, err))
	}

	return success(fmt.Sprintf("Successfully hovered over %s", selector))
}

func success(message string) entity.CommandResult {
	return entity.CommandResult{Succeeded: true, Message: message}
}

func failure(message string) entity.CommandResult {
	return entity.CommandResult{Succeeded: false, Message: message}
}

func mergeDefaults(supplied, defaults map[string]any) map[string]any {
	merged := make(map[string]any, len(supplied)+len(defaults))

	for k, v := range defaults {
		merged[k] = v
	}

	for k, v := range supplied {
		merged[k] = v
	}

	return merged
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}

	return ""
}

func floatArg(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}

	return defaultTimeoutMs
}

func boolArg(args map[string]any, key string) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}

	return false
}
