package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-intel/internal/resilience"
)

type scrapeArgs struct {
	URL string `json:"url"`
}

type searchArgs struct {
	Query string `json:"query"`
}

// fakeServer is an SDK-backed MCP server behind a bearer check. Setting
// expire answers 404 to any request that carries a session id.
type fakeServer struct {
	expire atomic.Bool
	calls  atomic.Int32
	srv    *httptest.Server
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	f := &fakeServer{}

	server := sdk.NewServer(&sdk.Implementation{Name: "fake-brightdata", Version: "0.0.1"}, nil)
	sdk.AddTool(server, &sdk.Tool{Name: "search_engine", Description: "Search the web"},
		func(_ context.Context, _ *sdk.CallToolRequest, in searchArgs) (*sdk.CallToolResult, any, error) {
			f.calls.Add(1)
			return &sdk.CallToolResult{Content: []sdk.Content{&sdk.TextContent{Text: "results for " + in.Query}}}, nil, nil
		})
	sdk.AddTool(server, &sdk.Tool{Name: "scrape_as_markdown", Description: "Scrape a page"},
		func(_ context.Context, _ *sdk.CallToolRequest, in scrapeArgs) (*sdk.CallToolResult, any, error) {
			f.calls.Add(1)
			return &sdk.CallToolResult{Content: []sdk.Content{
				&sdk.TextContent{Text: "# " + in.URL},
				&sdk.TextContent{Text: "body"},
			}}, nil, nil
		})
	sdk.AddTool(server, &sdk.Tool{Name: "broken"},
		func(_ context.Context, _ *sdk.CallToolRequest, _ scrapeArgs) (*sdk.CallToolResult, any, error) {
			return &sdk.CallToolResult{IsError: true, Content: []sdk.Content{&sdk.TextContent{Text: "upstream blocked"}}}, nil, nil
		})

	handler := sdk.NewStreamableHTTPHandler(func(*http.Request) *sdk.Server { return server }, nil)
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.expire.Load() && r.Header.Get(SessionHeader) != "" {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func connectFake(t *testing.T, f *fakeServer) *Client {
	t.Helper()
	c, err := Connect(context.Background(), f.srv.URL, WithToken("tok"), WithHTTPClient(f.srv.Client()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnectAndListTools(t *testing.T) {
	c := connectFake(t, newFakeServer(t))
	assert.NotEmpty(t, c.SessionID())

	tools, err := c.ListTools(context.Background())
	require.NoError(t, err)
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}
	assert.ElementsMatch(t, []string{"search_engine", "scrape_as_markdown", "broken"}, names)
}

func TestCallTool(t *testing.T) {
	f := newFakeServer(t)
	c := connectFake(t, f)

	res, err := c.CallTool(context.Background(), "scrape_as_markdown", map[string]any{"url": "https://acme.com"})
	require.NoError(t, err)
	assert.Equal(t, "# https://acme.com\nbody", res.Text())

	res, err = c.CallTool(context.Background(), "search_engine", map[string]any{"query": "vector db"})
	require.NoError(t, err)
	assert.Equal(t, "results for vector db", res.Text())
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestCallTool_IsError(t *testing.T) {
	c := connectFake(t, newFakeServer(t))
	_, err := c.CallTool(context.Background(), "broken", map[string]any{"url": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mcp: tool broken failed: upstream blocked")
	assert.False(t, errors.Is(err, ErrSessionNotFound))
}

func TestCallTool_SessionLost(t *testing.T) {
	f := newFakeServer(t)
	c := connectFake(t, f)
	f.expire.Store(true)

	_, err := c.CallTool(context.Background(), "search_engine", map[string]any{"query": "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Zero(t, f.calls.Load())
}

func TestConnect_Unauthorized(t *testing.T) {
	f := newFakeServer(t)
	_, err := Connect(context.Background(), f.srv.URL, WithToken("wrong"))
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resilience.StatusCode(err))
	assert.True(t, resilience.IsFatal(err))
	assert.False(t, resilience.DefaultClassifier.IsRetryable(err))
}

func TestClose(t *testing.T) {
	c := connectFake(t, newFakeServer(t))
	require.NoError(t, c.Close())

	_, err := c.CallTool(context.Background(), "search_engine", map[string]any{"query": "x"})
	assert.Error(t, err)

	assert.NoError(t, (&Client{}).Close())
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	t.Run("session not found message", func(t *testing.T) {
		err := (&watchTransport{}).classify(ctx, errors.New(`calling "tools/call": Session not found`))
		assert.ErrorIs(t, err, ErrSessionNotFound)
		var rpc *RPCError
		require.True(t, errors.As(err, &rpc))
		assert.Equal(t, CodeSessionNotFound, rpc.Code)
		assert.Contains(t, rpc.Cause.Error(), "tools/call")
	})

	t.Run("closed connection", func(t *testing.T) {
		err := (&watchTransport{}).classify(ctx, fmt.Errorf("calling tools/call: %w", sdk.ErrConnectionClosed))
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("recorded 404", func(t *testing.T) {
		w := &watchTransport{}
		w.sessionGone.Store(true)
		assert.ErrorIs(t, w.classify(ctx, errors.New("broken pipe")), ErrSessionNotFound)
	})

	t.Run("recorded 403", func(t *testing.T) {
		w := &watchTransport{}
		w.authStatus.Store(http.StatusForbidden)
		err := eris.Wrap(w.classify(ctx, errors.New("bad response")), "mcp: connect")
		assert.Equal(t, http.StatusForbidden, resilience.StatusCode(err))
	})

	t.Run("cancellation passes through", func(t *testing.T) {
		w := &watchTransport{}
		w.sessionGone.Store(true)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := w.classify(cctx, context.Canceled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, errors.Is(err, ErrSessionNotFound))
	})

	t.Run("other errors unchanged", func(t *testing.T) {
		orig := errors.New("timeout")
		assert.Same(t, orig, (&watchTransport{}).classify(ctx, orig))
	})
}

func TestRPCError(t *testing.T) {
	lost := &RPCError{Code: CodeSessionNotFound, Message: "Session not found"}
	assert.ErrorIs(t, lost, ErrSessionNotFound)
	assert.Equal(t, `mcp: rpc error {"code":-32001,"message":"Session not found"}`, lost.Error())

	cause := errors.New("invalid params")
	other := &RPCError{Code: -32602, Message: "bad", Cause: cause}
	assert.ErrorIs(t, other, cause)
	assert.False(t, errors.Is(other, ErrSessionNotFound))
}
