package browser

import (
	"context"
	"sync"

	"playwright-mcp/internal/config"
	"playwright-mcp/pkg/apperr"
	"playwright-mcp/pkg/logg"
	"playwright-mcp/pkg/tracing"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionLayerName = "BrowserSession"
	sessionTracer    = "browser.session"
)

// defaultLaunchArgs is the Chromium flag set used when BROWSER_LAUNCH_ARGS
// is not supplied.
var defaultLaunchArgs = []string{
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-dev-shm-usage",
	"--disable-gpu",
	"--disable-extensions",
	"--disable-background-timer-throttling",
	"--disable-backgrounding-occluded-windows",
	"--disable-renderer-backgrounding",
	"--disable-features=TranslateUI",
	"--disable-web-security",
	"--no-first-run",
	"--disable-default-apps",
}

// Session owns the runtime -> browser -> context -> page handle chain.
// Handles are acquired lazily bottom-up and torn down top-down; a handle is
// non-nil only when every handle below it is non-nil. The mutex serializes
// overlapping commands so concurrent callers queue instead of racing the
// active page.
type Session struct {
	config     *config.Config
	logger     *zap.Logger
	tracer     trace.Tracer
	mu         sync.Mutex
	playwright *playwright.Playwright
	browser    playwright.Browser
	browserCtx playwright.BrowserContext
	page       playwright.Page
	ready      bool
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewSession(params Params) *Session {
	return &Session{
		config: params.Config,
		logger: params.Logger.With(zap.String(logg.Layer, sessionLayerName)),
		tracer: otel.Tracer(sessionTracer),
		ready:  false,
	}
}

func (s *Session) launchArgs() []string {
	if len(s.config.BrowserConfig.LaunchArgs) > 0 {
		return s.config.BrowserConfig.LaunchArgs
	}

	return defaultLaunchArgs
}

// EnsureReady populates any missing stage of the chain, in order. It is
// idempotent: stages that already hold a handle are skipped, and a second
// call on a ready session returns immediately. On a stage failure every
// handle acquired during this call is rolled back before the error
// propagates, so the chain invariant holds.
func (s *Session) EnsureReady(ctx context.Context) (err error) {
	const op = "EnsureReady"
	logger := s.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ensureReadyLocked(ctx, logger, step)
}

func (s *Session) ensureReadyLocked(ctx context.Context, logger *zap.Logger, step *tracing.Span) error {
	const op = "EnsureReady"

	if s.ready && s.page != nil && !s.page.IsClosed() {
		return nil
	}

	// A page closed from the browser side demotes the session to
	// not-ready; the page stage below rebuilds it.
	if s.page != nil && s.page.IsClosed() {
		s.page = nil
		s.ready = false
	}

	acquired := make([]func(), 0, 4)

	rollback := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i]()
		}
	}

	if s.playwright == nil {
		logger.Info("Starting playwright runtime...")
		step.AddEvent("starting runtime")

		if s.config.BrowserConfig.InstallDriver {
			if err := playwright.Install(); err != nil {
				return apperr.SessionInitError(op, apperr.StageRuntime, err)
			}
		}

		pw, err := playwright.Run()
		if err != nil {
			return apperr.SessionInitError(op, apperr.StageRuntime, err)
		}

		s.playwright = pw
		acquired = append(acquired, func() {
			_ = s.playwright.Stop()
			s.playwright = nil
		})
	}

	if s.browser == nil {
		logger.Info("Launching chromium...")
		step.AddEvent("launching browser")

		browser, err := s.playwright.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(s.config.BrowserConfig.Headless),
			Args:     s.launchArgs(),
		})
		if err != nil {
			rollback()

			return apperr.SessionInitError(op, apperr.StageBrowser, err)
		}

		s.browser = browser
		acquired = append(acquired, func() {
			_ = s.browser.Close()
			s.browser = nil
		})
	}

	if s.browserCtx == nil {
		logger.Info("Creating browser context...")
		step.AddEvent("creating context")

		browserCtx, err := s.browser.NewContext()
		if err != nil {
			rollback()

			return apperr.SessionInitError(op, apperr.StageContext, err)
		}

		s.browserCtx = browserCtx
		acquired = append(acquired, func() {
			_ = s.browserCtx.Close()
			s.browserCtx = nil
		})
	}

	if s.page == nil {
		logger.Info("Opening page...")
		step.AddEvent("opening page")

		page, err := s.browserCtx.NewPage()
		if err != nil {
			rollback()

			return apperr.SessionInitError(op, apperr.StagePage, err)
		}

		s.page = page
	}

	s.ready = true
	logger.Info("Browser ready")

	return nil
}

// Close tears the chain down page -> context -> browser -> runtime. Each
// stage is nil-safe, teardown continues past failures, and all handles are
// cleared regardless so a later EnsureReady rebuilds from scratch. Closing
// an empty session is a no-op.
func (s *Session) Close(ctx context.Context) (err error) {
	const op = "Close"
	logger := s.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Info("Closing browser session...")

	var firstErr error

	if s.page != nil {
		if closeErr := s.page.Close(); closeErr != nil {
			logger.Warn("Failed to close page", zap.Error(closeErr))
			firstErr = closeErr
		}
	}

	if s.browserCtx != nil {
		if closeErr := s.browserCtx.Close(); closeErr != nil {
			logger.Warn("Failed to close context", zap.Error(closeErr))

			if firstErr == nil {
				firstErr = closeErr
			}
		}
	}

	if s.browser != nil {
		if closeErr := s.browser.Close(); closeErr != nil {
			logger.Warn("Failed to close browser", zap.Error(closeErr))

			if firstErr == nil {
				firstErr = closeErr
			}
		}
	}

	if s.playwright != nil {
		if stopErr := s.playwright.Stop(); stopErr != nil {
			logger.Warn("Failed to stop playwright", zap.Error(stopErr))

			if firstErr == nil {
				firstErr = stopErr
			}
		}
	}

	s.page = nil
	s.browserCtx = nil
	s.browser = nil
	s.playwright = nil
	s.ready = false

	if firstErr != nil {
		return apperr.Wrap(op, apperr.CodeInternal, firstErr, map[string]any{
			apperr.MetaReason: "close_failed",
		})
	}

	logger.Info("Browser session closed")

	return nil
}

// OpenNewTab creates a page on the existing context, optionally navigates
// it, and promotes it to the active page. The previous page stays open in
// the background.
func (s *Session) OpenNewTab(ctx context.Context, url string) (err error) {
	const op = "OpenNewTab"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	ctx, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("url", url))
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureReadyLocked(ctx, logger, step); err != nil {
		return err
	}

	page, err := s.browserCtx.NewPage()
	if err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "new_page_failed",
			apperr.MetaStage:  apperr.StagePage,
		})
	}

	if url != "" {
		if _, err := page.Goto(url); err != nil {
			_ = page.Close()

			return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
				apperr.MetaReason: "goto_failed",
				apperr.MetaStage:  apperr.StageNavigation,
				apperr.MetaURL:    url,
			})
		}
	}

	s.page = page
	step.AddEvent("tab opened")

	return nil
}

func (s *Session) activePage(op string) (playwright.Page, error) {
	if !s.ready || s.page == nil {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeBrowserNotReady, "browser_not_ready")
	}

	return s.page, nil
}

func (s *Session) Goto(ctx context.Context, url string, timeoutMs float64) (err error) {
	const op = "Goto"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.URL, url))

	_, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("url", url))
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.activePage(op)
	if err != nil {
		return err
	}

	step.AddEvent("navigating to URL")

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout: playwright.Float(timeoutMs),
	}); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason: "goto_failed",
			apperr.MetaStage:  apperr.StageNavigation,
			apperr.MetaURL:    url,
		})
	}

	step.AddEvent("navigation completed")

	return nil
}

func (s *Session) Click(ctx context.Context, selector string, timeoutMs float64) (err error) {
	const op = "Click"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	_, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.activePage(op)
	if err != nil {
		return err
	}

	if err := page.Click(selector, playwright.PageClickOptions{
		Timeout: playwright.Float(timeoutMs),
	}); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "click_failed",
			apperr.MetaStage:    apperr.StageInteraction,
			apperr.MetaSelector: selector,
		})
	}

	return nil
}

func (s *Session) TypeText(ctx context.Context, selector, text string, timeoutMs float64) (err error) {
	const op = "TypeText"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	_, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.activePage(op)
	if err != nil {
		return err
	}

	if err := page.Type(selector, text, playwright.PageTypeOptions{
		Timeout: playwright.Float(timeoutMs),
	}); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "type_failed",
			apperr.MetaStage:    apperr.StageInteraction,
			apperr.MetaSelector: selector,
		})
	}

	return nil
}

func (s *Session) SelectOption(ctx context.Context, selector, value string, timeoutMs float64) (err error) {
	const op = "SelectOption"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	_, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.activePage(op)
	if err != nil {
		return err
	}

	if _, err := page.SelectOption(selector, playwright.SelectOptionValues{
		Values: &[]string{value},
	}, playwright.PageSelectOptionOptions{
		Timeout: playwright.Float(timeoutMs),
	}); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "select_failed",
			apperr.MetaStage:    apperr.StageInteraction,
			apperr.MetaSelector: selector,
		})
	}

	return nil
}

func (s *Session) WaitForSelector(ctx context.Context, selector string, timeoutMs float64) (err error) {
	const op = "WaitForSelector"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	_, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.activePage(op)
	if err != nil {
		return err
	}

	if _, err := page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(timeoutMs),
	}); err != nil {
		return apperr.Wrap(op, apperr.CodeTimeout, err, map[string]any{
			apperr.MetaReason:   "wait_selector_timeout",
			apperr.MetaSelector: selector,
		})
	}

	return nil
}

func (s *Session) Hover(ctx context.Context, selector string, timeoutMs float64) (err error) {
	const op = "Hover"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Selector, selector))

	_, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("selector", selector))
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.activePage(op)
	if err != nil {
		return err
	}

	if err := page.Hover(selector, playwright.PageHoverOptions{
		Timeout: playwright.Float(timeoutMs),
	}); err != nil {
		return apperr.Wrap(op, apperr.CodeActionFailed, err, map[string]any{
			apperr.MetaReason:   "hover_failed",
			apperr.MetaStage:    apperr.StageInteraction,
			apperr.MetaSelector: selector,
		})
	}

	return nil
}

func (s *Session) Content(ctx context.Context) (content string, err error) {
	const op = "Content"
	logger := s.logger.With(zap.String(logg.Operation, op))

	_, step := tracing.StartSpan(ctx, s.tracer, logger, op)
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.activePage(op)
	if err != nil {
		return "", err
	}

	content, err = page.Content()
	if err != nil {
		return "", apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "content_failed",
		})
	}

	return content, nil
}

func (s *Session) Screenshot(ctx context.Context, path string, fullPage bool) (err error) {
	const op = "Screenshot"
	logger := s.logger.With(zap.String(logg.Operation, op), zap.String(logg.Path, path))

	_, step := tracing.StartSpan(ctx, s.tracer, logger, op, attribute.String("path", path))
	defer func() {
		step.End(err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.activePage(op)
	if err != nil {
		return err
	}

	if _, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(fullPage),
	}); err != nil {
		return apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "screenshot_failed",
			apperr.MetaStage:  apperr.StageScreenshot,
			apperr.MetaPath:   path,
		})
	}

	return nil
}

func (s *Session) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ready
}
