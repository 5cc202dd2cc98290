package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"playwright-mcp/internal/config"
	"playwright-mcp/internal/entity"

	"go.uber.org/zap"
)

type fakeDriver struct {
	ready           bool
	ensureCalls     int
	ensureErr       error
	closeCalls      int
	closeErr        error
	lastTimeout     float64
	lastURL         string
	lastSelector    string
	opErr           error
	content         string
	writeScreenshot bool
}

func (f *fakeDriver) EnsureReady(ctx context.Context) error {
	f.ensureCalls++

	if f.ensureErr != nil {
		return f.ensureErr
	}

	f.ready = true

	return nil
}

func (f *fakeDriver) Close(ctx context.Context) error {
	f.closeCalls++
	f.ready = false

	return f.closeErr
}

func (f *fakeDriver) OpenNewTab(ctx context.Context, url string) error {
	f.lastURL = url

	return f.opErr
}

func (f *fakeDriver) Goto(ctx context.Context, url string, timeoutMs float64) error {
	f.lastURL = url
	f.lastTimeout = timeoutMs

	return f.opErr
}

func (f *fakeDriver) Click(ctx context.Context, selector string, timeoutMs float64) error {
	f.lastSelector = selector
	f.lastTimeout = timeoutMs

	return f.opErr
}

func (f *fakeDriver) TypeText(ctx context.Context, selector, text string, timeoutMs float64) error {
	f.lastSelector = selector
	f.lastTimeout = timeoutMs

	return f.opErr
}

func (f *fakeDriver) SelectOption(ctx context.Context, selector, value string, timeoutMs float64) error {
	f.lastSelector = selector
	f.lastTimeout = timeoutMs

	return f.opErr
}

func (f *fakeDriver) WaitForSelector(ctx context.Context, selector string, timeoutMs float64) error {
	f.lastSelector = selector
	f.lastTimeout = timeoutMs

	return f.opErr
}

func (f *fakeDriver) Hover(ctx context.Context, selector string, timeoutMs float64) error {
	f.lastSelector = selector
	f.lastTimeout = timeoutMs

	return f.opErr
}

func (f *fakeDriver) Content(ctx context.Context) (string, error) {
	if f.opErr != nil {
		return "", f.opErr
	}

	return f.content, nil
}

func (f *fakeDriver) Screenshot(ctx context.Context, path string, fullPage bool) error {
	if f.opErr != nil {
		return f.opErr
	}

	if f.writeScreenshot {
		return os.WriteFile(path, []byte("png-bytes"), 0644)
	}

	return nil
}

func (f *fakeDriver) IsReady() bool {
	return f.ready
}

func newTestDispatcher(t *testing.T, driver *fakeDriver) *Dispatcher {
	t.Helper()

	conf := &config.Config{
		AppConfig:    &config.AppConfig{LogLevel: "info"},
		ServerConfig: &config.ServerConfig{Name: "playwright-server", Version: "1.0.0"},
		BrowserConfig: &config.BrowserConfig{
			Timeout:       30000,
			ScreenshotDir: t.TempDir(),
		},
	}

	return NewDispatcher(DispatcherParams{
		Config:   conf,
		Logger:   zap.NewNop(),
		Registry: NewRegistry(),
		Driver:   driver,
	})
}

func dispatch(d *Dispatcher, name string, args map[string]any) entity.CommandResult {
	return d.Dispatch(context.Background(), entity.CommandRequest{
		Name:          name,
		Arguments:     args,
		CorrelationID: "test",
	})
}

func TestDispatchUnknownTool(t *testing.T) {
	driver := &fakeDriver{}
	d := newTestDispatcher(t, driver)

	result := dispatch(d, "frobnicate", map[string]any{})

	if result.Succeeded {
		t.Fatal("expected failure for unknown tool")
	}
	if result.Message != "Unknown tool: frobnicate" {
		t.Errorf("unexpected message: %q", result.Message)
	}
	if driver.ensureCalls != 0 {
		t.Error("unknown tool must not touch the session")
	}
}

func TestDispatchMissingRequiredArgument(t *testing.T) {
	driver := &fakeDriver{}
	d := newTestDispatcher(t, driver)

	result := dispatch(d, entity.ToolNavigate, map[string]any{})

	if result.Succeeded {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(result.Message, "url") {
		t.Errorf("message should name the missing key, got %q", result.Message)
	}
	if driver.ensureCalls != 0 {
		t.Error("validation failure must not touch the session")
	}
}

func TestDispatchSessionInitFailure(t *testing.T) {
	driver := &fakeDriver{ensureErr: errors.New("chromium launch failed")}
	d := newTestDispatcher(t, driver)

	result := dispatch(d, entity.ToolNavigate, map[string]any{"url": "https://example.com"})

	if result.Succeeded {
		t.Fatal("expected failure")
	}
	if !strings.HasPrefix(result.Message, "Error: ") {
		t.Errorf("unexpected message: %q", result.Message)
	}
}

func TestDispatchNavigateSuccess(t *testing.T) {
	driver := &fakeDriver{}
	d := newTestDispatcher(t, driver)

	result := dispatch(d, entity.ToolNavigate, map[string]any{"url": "https://example.com"})

	if !result.Succeeded {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if result.Message != "Successfully navigated to https://example.com" {
		t.Errorf("unexpected message: %q", result.Message)
	}
	if driver.lastTimeout != 30000 {
		t.Errorf("expected default timeout 30000, got %v", driver.lastTimeout)
	}
	if driver.ensureCalls != 1 {
		t.Errorf("expected one EnsureReady call, got %d", driver.ensureCalls)
	}
}

func TestDispatchTimeoutOverride(t *testing.T) {
	driver := &fakeDriver{}
	d := newTestDispatcher(t, driver)

	result := dispatch(d, entity.ToolClick, map[string]any{
		"selector": "#submit",
		"timeout":  float64(5000),
	})

	if !result.Succeeded {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if driver.lastTimeout != 5000 {
		t.Errorf("expected supplied timeout 5000, got %v", driver.lastTimeout)
	}
}

func TestDispatchAutomationFailureStaysInBand(t *testing.T) {
	driver := &fakeDriver{opErr: errors.New("timeout exceeded")}
	d := newTestDispatcher(t, driver)

	result := dispatch(d, entity.ToolWaitForSelector, map[string]any{"selector": ".spinner"})

	if result.Succeeded {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Message, ".spinner did not appear") {
		t.Errorf("unexpected message: %q", result.Message)
	}
	if !strings.Contains(result.Message, "timeout exceeded") {
		t.Errorf("message should carry the cause, got %q", result.Message)
	}
}

func TestDispatchCloseBrowserSkipsEnsureReady(t *testing.T) {
	driver := &fakeDriver{}
	d := newTestDispatcher(t, driver)

	result := dispatch(d, entity.ToolCloseBrowser, map[string]any{})

	if !result.Succeeded {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if result.Message != "Browser closed successfully" {
		t.Errorf("unexpected message: %q", result.Message)
	}
	if driver.ensureCalls != 0 {
		t.Error("close_browser must not revive the session")
	}
	if driver.closeCalls != 1 {
		t.Errorf("expected one Close call, got %d", driver.closeCalls)
	}
}

func TestDispatchOpenNewTab(t *testing.T) {
	driver := &fakeDriver{}
	d := newTestDispatcher(t, driver)

	result := dispatch(d, entity.ToolOpenNewTab, map[string]any{"url": "https://example.com"})
	if !result.Succeeded || result.Message != "New tab opened and navigated to https://example.com" {
		t.Errorf("unexpected result: %+v", result)
	}

	result = dispatch(d, entity.ToolOpenNewTab, map[string]any{})
	if !result.Succeeded || result.Message != "New tab opened" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestDispatchGetPageContentTruncation(t *testing.T) {
	driver := &fakeDriver{content: strings.Repeat("x", 6000)}
	d := newTestDispatcher(t, driver)

	result := dispatch(d, entity.ToolGetPageContent, map[string]any{})

	if !result.Succeeded {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if !strings.HasSuffix(result.Message, "... (content truncated)") {
		t.Error("expected truncation marker")
	}
	if len(result.Message) != 5000+len("... (content truncated)") {
		t.Errorf("unexpected truncated length %d", len(result.Message))
	}
}

func TestDispatchScreenshotReportsSize(t *testing.T) {
	driver := &fakeDriver{writeScreenshot: true}
	d := newTestDispatcher(t, driver)

	result := dispatch(d, entity.ToolTakeScreenshot, map[string]any{})

	if !result.Succeeded {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if !strings.Contains(result.Message, "screenshot.png") {
		t.Errorf("expected default filename in message, got %q", result.Message)
	}
	if !strings.Contains(result.Message, fmt.Sprintf("(%d bytes)", len("png-bytes"))) {
		t.Errorf("expected byte size in message, got %q", result.Message)
	}
	if len(result.RawPayload) == 0 {
		t.Error("expected resolved path in raw payload")
	}
}

func TestDispatchScreenshotMissingArtifact(t *testing.T) {
	driver := &fakeDriver{writeScreenshot: false}
	d := newTestDispatcher(t, driver)

	result := dispatch(d, entity.ToolTakeScreenshot, map[string]any{"path": "missing.png"})

	if result.Succeeded {
		t.Fatal("expected failure for missing artifact")
	}
	if !strings.Contains(result.Message, "Screenshot file not found at") {
		t.Errorf("expected artifact-verification failure, got %q", result.Message)
	}
}

func TestDispatchScreenshotCaptureFailureIsDistinct(t *testing.T) {
	driver := &fakeDriver{opErr: errors.New("page crashed")}
	d := newTestDispatcher(t, driver)

	result := dispatch(d, entity.ToolTakeScreenshot, map[string]any{})

	if result.Succeeded {
		t.Fatal("expected failure")
	}
	if !strings.HasPrefix(result.Message, "Failed to take screenshot:") {
		t.Errorf("expected capture failure message, got %q", result.Message)
	}
}

func TestDispatchAllToolsReturnResult(t *testing.T) {
	driver := &fakeDriver{writeScreenshot: true, content: "<html></html>"}
	d := newTestDispatcher(t, driver)

	args := map[string]any{
		"url":      "https://example.com",
		"selector": "#el",
		"text":     "hello",
		"value":    "v1",
	}

	for _, desc := range d.Catalog() {
		result := dispatch(d, desc.Name, args)

		if !result.Succeeded {
			t.Errorf("tool %s: expected success with all args present, got %q", desc.Name, result.Message)
		}
	}
}
