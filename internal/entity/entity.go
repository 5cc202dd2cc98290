package entity

const (
	ToolClick           = "click"
	ToolNavigate        = "navigate"
	ToolTakeScreenshot  = "take_screenshot"
	ToolTypeText        = "type_text"
	ToolSelectOption    = "select_option"
	ToolWaitForSelector = "wait_for_selector"
	ToolGetPageContent  = "get_page_content"
	ToolCloseBrowser    = "close_browser"
	ToolOpenNewTab      = "open_new_tab"
	ToolHoverMouse      = "hover_mouse"
)

const (
	ArgURL      = "url"
	ArgSelector = "selector"
	ArgText     = "text"
	ArgValue    = "value"
	ArgTimeout  = "timeout"
	ArgPath     = "path"
	ArgFullPage = "full_page"
)

// CommandRequest is one decoded wire invocation, independent of transport.
type CommandRequest struct {
	Name          string
	Arguments     map[string]any
	CorrelationID string
}

// CommandResult is the uniform outcome envelope. A failed command is still
// a result, never an error value crossing the dispatcher boundary.
type CommandResult struct {
	Succeeded  bool
	Message    string
	RawPayload []byte
}

type PropertyType string

const (
	PropertyString  PropertyType = "string"
	PropertyNumber  PropertyType = "number"
	PropertyBoolean PropertyType = "boolean"
)

type Property struct {
	Type        PropertyType
	Description string
}

// ToolDescriptor is the static metadata for one supported operation. The
// registry exposes it both for capability advertisement and for argument
// validation, so the two can never drift.
type ToolDescriptor struct {
	Name        string
	Description string
	Properties  map[string]Property
	Required    []string
	Defaults    map[string]any
}

// InputSchema renders the descriptor as a JSON schema object, the shape
// both transports advertise.
func (d ToolDescriptor) InputSchema() map[string]any {
	properties := make(map[string]any, len(d.Properties))

	for name, prop := range d.Properties {
		entry := map[string]any{
			"type":        string(prop.Type),
			"description": prop.Description,
		}

		if def, ok := d.Defaults[name]; ok {
			entry["default"] = def
		}

		properties[name] = entry
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(d.Required) > 0 {
		schema["required"] = d.Required
	}

	return schema
}

// IsRequired reports whether the named argument must be supplied by the caller.
func (d ToolDescriptor) IsRequired(arg string) bool {
	for _, r := range d.Required {
		if r == arg {
			return true
		}
	}

	return false
}
