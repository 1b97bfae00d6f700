package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmorgan81/vaultimage/internal/log"
	"github.com/dmorgan81/vaultimage/internal/tool"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/samber/do"
)

// Server exposes the generate_image tool over the Model Context Protocol.
type Server struct {
	tool    *tool.GenerateImage
	version string
}

func NewServer(i *do.Injector) (*Server, error) {
	return &Server{
		tool:    do.MustInvoke[*tool.GenerateImage](i),
		version: do.MustInvokeNamed[string](i, "version"),
	}, nil
}

// MCP builds a server advertising the same input schema as the tool's
// function descriptor.
func (s *Server) MCP() (*mcp.Server, error) {
	schema, err := inputSchema()
	if err != nil {
		return nil, err
	}
	server := mcp.NewServer(&mcp.Implementation{Name: "vaultimage", Version: s.version}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: schema,
	}, s.generateImage)
	return server, nil
}

// Run serves stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	server, err := s.MCP()
	if err != nil {
		return err
	}
	log.FromContextOrDiscard(ctx).Info("serving mcp over stdio", "tool", tool.Name)
	return server.Run(ctx, mcp.NewStdioTransport())
}

func inputSchema() (*jsonschema.Schema, error) {
	params, err := tool.Parameters()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("converting %s schema: %w", tool.Name, err)
	}
	return &schema, nil
}

// args carries the decoded arguments. It has no schema tags; the schema
// comes from tool.Parameters.
type args struct {
	ImageDescription string `json:"image_description"`
	BaseFilename     string `json:"base_filename"`
}

func (s *Server) generateImage(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[args]) (*mcp.CallToolResultFor[tool.Result], error) {
	res, err := s.tool.Run(ctx, tool.Args(params.Arguments))
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResultFor[tool.Result]{
		Content: []mcp.Content{&mcp.TextContent{Text: res.String()}},
		IsError: res.Failed(),
	}, nil
}
