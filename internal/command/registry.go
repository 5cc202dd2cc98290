package command

import (
	"playwright-mcp/internal/entity"
)

const defaultTimeoutMs = float64(30000)

const defaultScreenshotName = "screenshot.png"

// Registry is the single source of truth for the supported tools. Both
// transports advertise from it and the dispatcher validates against it.
type Registry struct {
	tools []entity.ToolDescriptor
	index map[string]entity.ToolDescriptor
}

func NewRegistry() *Registry {
	tools := []entity.ToolDescriptor{
		{
			Name:        entity.ToolClick,
			Description: "Perform click on a web page element",
			Properties: map[string]entity.Property{
				entity.ArgSelector: {Type: entity.PropertyString, Description: "CSS selector for the element to click"},
				entity.ArgTimeout:  {Type: entity.PropertyNumber, Description: "Timeout in milliseconds"},
			},
			Required: []string{entity.ArgSelector},
			Defaults: map[string]any{entity.ArgTimeout: defaultTimeoutMs},
		},
		{
			Name:        entity.ToolNavigate,
			Description: "Navigate to a URL",
			Properties: map[string]entity.Property{
				entity.ArgURL:     {Type: entity.PropertyString, Description: "URL to navigate to"},
				entity.ArgTimeout: {Type: entity.PropertyNumber, Description: "Timeout in milliseconds"},
			},
			Required: []string{entity.ArgURL},
			Defaults: map[string]any{entity.ArgTimeout: defaultTimeoutMs},
		},
		{
			Name:        entity.ToolTakeScreenshot,
			Description: "Take a screenshot of the current page",
			Properties: map[string]entity.Property{
				entity.ArgPath:     {Type: entity.PropertyString, Description: "Path to save screenshot"},
				entity.ArgFullPage: {Type: entity.PropertyBoolean, Description: "Capture full page"},
			},
			Defaults: map[string]any{
				entity.ArgPath:     defaultScreenshotName,
				entity.ArgFullPage: false,
			},
		},
		{
			Name:        entity.ToolTypeText,
			Description: "Type text into an element",
			Properties: map[string]entity.Property{
				entity.ArgSelector: {Type: entity.PropertyString, Description: "CSS selector for the element"},
				entity.ArgText:     {Type: entity.PropertyString, Description: "Text to type"},
				entity.ArgTimeout:  {Type: entity.PropertyNumber, Description: "Timeout in milliseconds"},
			},
			Required: []string{entity.ArgSelector, entity.ArgText},
			Defaults: map[string]any{entity.ArgTimeout: defaultTimeoutMs},
		},
		{
			Name:        entity.ToolSelectOption,
			Description: "Select an option in a dropdown",
			Properties: map[string]entity.Property{
				entity.ArgSelector: {Type: entity.PropertyString, Description: "CSS selector for the select element"},
				entity.ArgValue:    {Type: entity.PropertyString, Description: "Value to select"},
				entity.ArgTimeout:  {Type: entity.PropertyNumber, Description: "Timeout in milliseconds"},
			},
			Required: []string{entity.ArgSelector, entity.ArgValue},
			Defaults: map[string]any{entity.ArgTimeout: defaultTimeoutMs},
		},
		{
			Name:        entity.ToolWaitForSelector,
			Description: "Wait for an element to appear",
			Properties: map[string]entity.Property{
				entity.ArgSelector: {Type: entity.PropertyString, Description: "CSS selector to wait for"},
				entity.ArgTimeout:  {Type: entity.PropertyNumber, Description: "Timeout in milliseconds"},
			},
			Required: []string{entity.ArgSelector},
			Defaults: map[string]any{entity.ArgTimeout: defaultTimeoutMs},
		},
		{
			Name:        entity.ToolGetPageContent,
			Description: "Get the HTML content of the current page",
			Properties:  map[string]entity.Property{},
		},
		{
			Name:        entity.ToolCloseBrowser,
			Description: "Close the browser",
			Properties:  map[string]entity.Property{},
		},
		{
			Name:        entity.ToolOpenNewTab,
			Description: "Open a new tab",
			Properties: map[string]entity.Property{
				entity.ArgURL: {Type: entity.PropertyString, Description: "URL to open in new tab"},
			},
		},
		{
			Name:        entity.ToolHoverMouse,
			Description: "Hover over an element",
			Properties: map[string]entity.Property{
				entity.ArgSelector: {Type: entity.PropertyString, Description: "CSS selector for the element"},
				entity.ArgTimeout:  {Type: entity.PropertyNumber, Description: "Timeout in milliseconds"},
			},
			Required: []string{entity.ArgSelector},
			Defaults: map[string]any{entity.ArgTimeout: defaultTimeoutMs},
		},
	}

	index := make(map[string]entity.ToolDescriptor, len(tools))
	for _, tool := range tools {
		index[tool.Name] = tool
	}

	return &Registry{
		tools: tools,
		index: index,
	}
}

func (r *Registry) Lookup(name string) (entity.ToolDescriptor, bool) {
	desc, ok := r.index[name]

	return desc, ok
}

// Catalog returns the descriptors in declaration order.
func (r *Registry) Catalog() []entity.ToolDescriptor {
	catalog := make([]entity.ToolDescriptor, len(r.tools))
	copy(catalog, r.tools)

	return catalog
}
