// Package mcp adapts the Model Context Protocol Go SDK to the small
// connect, list, call and close surface the tool client needs. Rejected
// credentials surface as *resilience.StatusError and lost sessions as
// ErrSessionNotFound.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/market-intel/internal/resilience"
)

// SessionHeader carries the server-assigned session id.
const SessionHeader = "Mcp-Session-Id"

// CodeSessionNotFound is the JSON-RPC error code servers use for an
// unknown or expired session.
const CodeSessionNotFound = -32001

// ErrSessionNotFound is wrapped by every error caused by a lost session.
var ErrSessionNotFound = errors.New("mcp: session not found")

// RPCError is a JSON-RPC error raised by the server.
type RPCError struct {
	Code    int
	Message string
	// Cause is the SDK error the code was derived from, if any.
	Cause error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf(`mcp: rpc error {"code":%d,"message":%q}`, e.Code, e.Message)
}

// Unwrap lets errors.Is match ErrSessionNotFound for session-loss codes.
func (e *RPCError) Unwrap() error {
	if e.Code == CodeSessionNotFound {
		return ErrSessionNotFound
	}
	return e.Cause
}

// ToolInfo describes one tool advertised by the server.
type ToolInfo struct {
	Name        string
	Description string
}

// Content is one block of a tool result.
type Content struct {
	Type string
	Text string
}

// CallResult is the result of a tool call.
type CallResult struct {
	Content []Content
	IsError bool
}

// Text concatenates the text blocks of the result.
func (r *CallResult) Text() string {
	var parts []string
	for _, c := range r.Content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

type options struct {
	token string
	http  *http.Client
}

// Option configures Connect.
type Option func(*options)

// WithToken sets a bearer token sent on every request.
func WithToken(token string) Option {
	return func(o *options) { o.token = token }
}

// WithHTTPClient sets the HTTP client. Its Timeout bounds each call
// instead of the connection, which keeps a long-lived event stream open.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.http = hc }
}

// Client is one MCP session. It is safe for concurrent use.
type Client struct {
	session     *sdk.ClientSession
	watch       *watchTransport
	callTimeout time.Duration
}

// Connect opens a session on the streamable HTTP endpoint.
func Connect(ctx context.Context, endpoint string, opts ...Option) (*Client, error) {
	o := options{http: &http.Client{Timeout: 120 * time.Second}}
	for _, opt := range opts {
		opt(&o)
	}

	base := o.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	watch := &watchTransport{base: base, token: o.token}
	hc := *o.http
	hc.Transport = watch
	hc.Timeout = 0

	client := sdk.NewClient(&sdk.Implementation{Name: "market-intel", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &sdk.StreamableClientTransport{
		Endpoint:   endpoint,
		HTTPClient: &hc,
	}, nil)
	if err != nil {
		return nil, eris.Wrap(watch.classify(ctx, err), "mcp: connect")
	}
	return &Client{session: session, watch: watch, callTimeout: o.http.Timeout}, nil
}

// SessionID returns the server-assigned session id, if any.
func (c *Client) SessionID() string {
	if c.session == nil {
		return ""
	}
	return c.session.ID()
}

// ListTools returns every tool the server advertises, following cursors.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	var all []ToolInfo
	params := &sdk.ListToolsParams{}
	for {
		page, err := c.session.ListTools(ctx, params)
		if err != nil {
			return nil, eris.Wrap(c.watch.classify(ctx, err), "mcp: tools/list")
		}
		for _, t := range page.Tools {
			all = append(all, ToolInfo{Name: t.Name, Description: t.Description})
		}
		if page.NextCursor == "" {
			return all, nil
		}
		params = &sdk.ListToolsParams{Cursor: page.NextCursor}
	}
}

// CallTool invokes a tool. A result flagged isError is returned as an error.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	res, err := c.session.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, eris.Wrapf(c.watch.classify(ctx, err), "mcp: call %s", name)
	}
	out := &CallResult{IsError: res.IsError}
	for _, block := range res.Content {
		if tc, ok := block.(*sdk.TextContent); ok {
			out.Content = append(out.Content, Content{Type: "text", Text: tc.Text})
		}
	}
	if out.IsError {
		return nil, eris.Errorf("mcp: tool %s failed: %s", name, out.Text())
	}
	return out, nil
}

// Close terminates the session.
func (c *Client) Close() error {
	if c.session == nil {
		return nil
	}
	return c.session.Close()
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.callTimeout)
}

// watchTransport adds the bearer token and remembers the HTTP statuses the
// SDK folds into plain errors: rejected credentials and a 404 for a
// request that carried a session id.
type watchTransport struct {
	base  http.RoundTripper
	token string

	authStatus  atomic.Int32
	sessionGone atomic.Bool
}

func (w *watchTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if w.token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+w.token)
	}
	resp, err := w.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		w.authStatus.Store(int32(resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound && req.Header.Get(SessionHeader) != "":
		w.sessionGone.Store(true)
	}
	return resp, nil
}

// classify maps an SDK error onto the errors callers branch on.
func (w *watchTransport) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if code := w.authStatus.Load(); code != 0 && resilience.StatusCode(err) == 0 {
		return resilience.NewStatusError(int(code), err)
	}
	if w.sessionGone.Load() || errors.Is(err, sdk.ErrConnectionClosed) || sessionMissing(err) {
		return &RPCError{Code: CodeSessionNotFound, Message: "Session not found", Cause: err}
	}
	return err
}

func sessionMissing(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "session not found") || strings.Contains(msg, "-32001")
}
