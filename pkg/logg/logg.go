package logg

const (
	Layer     = "layer"
	Operation = "operation"
	Transport = "transport"
	Tool      = "tool"
	Method    = "method"
	Stage     = "stage"
	URL       = "url"
	Selector  = "selector"
	Path      = "path"
	RequestID = "request_id"
)
