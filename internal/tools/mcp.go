package tools

import (
	"context"
	"errors"

	"github.com/sells-group/market-intel/internal/resilience"
	"github.com/sells-group/market-intel/pkg/mcp"
)

// MCPDialer returns a Dialer for a remote MCP server. A missing endpoint
// or token is a configuration error.
func MCPDialer(endpoint, token string, opts ...mcp.Option) Dialer {
	return func(ctx context.Context) (Session, error) {
		if endpoint == "" {
			return nil, resilience.NewConfigError(errors.New("tools: mcp endpoint is not set"))
		}
		if token == "" {
			return nil, resilience.NewConfigError(errors.New("tools: mcp token is not set"))
		}
		c, err := mcp.Connect(ctx, endpoint, append([]mcp.Option{mcp.WithToken(token)}, opts...)...)
		if err != nil {
			return nil, err
		}
		return &mcpSession{client: c}, nil
	}
}

type mcpSession struct {
	client *mcp.Client
}

func (s *mcpSession) ListTools(ctx context.Context) ([]Tool, error) {
	infos, err := s.client.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	tools := make([]Tool, len(infos))
	for i, info := range infos {
		tools[i] = &mcpTool{client: s.client, name: info.Name}
	}
	return tools, nil
}

func (s *mcpSession) Close() error {
	return s.client.Close()
}

type mcpTool struct {
	client *mcp.Client
	name   string
}

func (t *mcpTool) Name() string { return t.name }

// Invoke returns the tool's concatenated text output.
func (t *mcpTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	res, err := t.client.CallTool(ctx, t.name, args)
	if err != nil {
		return nil, err
	}
	return res.Text(), nil
}
