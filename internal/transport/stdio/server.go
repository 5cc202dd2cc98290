package stdio

import (
	"context"
	"sort"

	"playwright-mcp/internal/config"
	"playwright-mcp/internal/entity"
	"playwright-mcp/internal/ports"
	"playwright-mcp/pkg/logg"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const stdioLayerName = "StdioTransport"

// Server serves the tool catalog over the MCP stdio protocol. The
// initialize handshake, framing, and tool advertisement come from mcp-go;
// every call funnels into the dispatcher.
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	dispatcher ports.Dispatcher
	mcp        *server.MCPServer
}

type Params struct {
	fx.In

	Config     *config.Config
	Logger     *zap.Logger
	Dispatcher ports.Dispatcher
}

func NewServer(params Params) *Server {
	s := &Server{
		config:     params.Config,
		logger:     params.Logger.With(zap.String(logg.Layer, stdioLayerName)),
		dispatcher: params.Dispatcher,
	}

	s.mcp = server.NewMCPServer(
		params.Config.ServerConfig.Name,
		params.Config.ServerConfig.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	for _, desc := range s.dispatcher.Catalog() {
		s.mcp.AddTool(buildTool(desc), s.toolHandler(desc.Name))
	}

	return s
}

// Run blocks serving stdin/stdout until the stream closes.
func (s *Server) Run() error {
	s.logger.Info("Serving MCP over stdio",
		zap.String("server", s.config.ServerConfig.Name),
		zap.String("version", s.config.ServerConfig.Version))

	return server.ServeStdio(s.mcp)
}

func (s *Server) toolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := s.dispatcher.Dispatch(ctx, entity.CommandRequest{
			Name:          name,
			Arguments:     request.GetArguments(),
			CorrelationID: uuid.NewString(),
		})

		if !result.Succeeded {
			return mcp.NewToolResultError(result.Message), nil
		}

		return mcp.NewToolResultText(result.Message), nil
	}
}

func buildTool(desc entity.ToolDescriptor) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(desc.Description)}

	names := make([]string, 0, len(desc.Properties))
	for name := range desc.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop := desc.Properties[name]

		propOpts := []mcp.PropertyOption{mcp.Description(prop.Description)}
		if desc.IsRequired(name) {
			propOpts = append(propOpts, mcp.Required())
		}

		switch prop.Type {
		case entity.PropertyNumber:
			if def, ok := desc.Defaults[name].(float64); ok {
				propOpts = append(propOpts, mcp.DefaultNumber(def))
			}

			opts = append(opts, mcp.WithNumber(name, propOpts...))
		case entity.PropertyBoolean:
			if def, ok := desc.Defaults[name].(bool); ok {
				propOpts = append(propOpts, mcp.DefaultBool(def))
			}

			opts = append(opts, mcp.WithBoolean(name, propOpts...))
		default:
			if def, ok := desc.Defaults[name].(string); ok {
				propOpts = append(propOpts, mcp.DefaultString(def))
			}

			opts = append(opts, mcp.WithString(name, propOpts...))
		}
	}

	return mcp.NewTool(desc.Name, opts...)
}
