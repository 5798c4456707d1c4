// Package tools resolves the "search" and "scrape" capabilities onto
// remote tools and recovers transparently from lost upstream sessions.
package tools

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/sells-group/market-intel/internal/resilience"
	"github.com/sells-group/market-intel/pkg/mcp"
)

// Capability is an abstract operation the pipeline needs.
type Capability string

const (
	CapabilitySearch Capability = "search"
	CapabilityScrape Capability = "scrape"
)

var (
	// ErrToolNotFound means no remote tool matched a capability.
	ErrToolNotFound = errors.New("tool not found")
	// ErrSessionLost marks an upstream session that must be re-established.
	ErrSessionLost = errors.New("session lost")
)

// Tool is one remote tool handle.
type Tool interface {
	Name() string
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// Session is a live connection exposing a set of tools.
type Session interface {
	ListTools(ctx context.Context) ([]Tool, error)
	Close() error
}

// Dialer opens a new Session.
type Dialer func(ctx context.Context) (Session, error)

// Invoker is the capability-level API consumed by pipeline stages.
type Invoker interface {
	Invoke(ctx context.Context, capability Capability, args map[string]any) (any, error)
}

// DefaultToolNames maps each capability to the substring used to find its tool.
var DefaultToolNames = map[Capability]string{
	CapabilitySearch: "search_engine",
	CapabilityScrape: "scrape_as_markdown",
}

// Option configures a Client.
type Option func(*Client)

// WithToolName overrides the tool-name substring for a capability.
func WithToolName(c Capability, substr string) Option {
	return func(cl *Client) {
		if substr != "" {
			cl.names[c] = strings.ToLower(substr)
		}
	}
}

// WithRateLimit throttles one capability to rps calls per second.
func WithRateLimit(c Capability, rps float64) Option {
	return func(cl *Client) {
		if rps > 0 {
			cl.limiters[c] = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithCircuitBreakers fails calls for a capability fast while its
// provider keeps failing. Breakers are named "tools.<capability>".
func WithCircuitBreakers(b *resilience.Breakers) Option {
	return func(cl *Client) {
		cl.breakers = b
	}
}

// Client resolves capabilities to tools on a lazily dialed Session.
// Resolved tools are cached per session. A session-loss error triggers one
// reconnect and one retry of the failed call; concurrent losses share a
// single reconnect.
type Client struct {
	dial     Dialer
	names    map[Capability]string
	limiters map[Capability]*rate.Limiter
	breakers *resilience.Breakers

	mu         sync.Mutex
	session    Session
	generation uint64
	tools      []Tool
	handles    map[Capability]Tool

	resets singleflight.Group
}

// NewClient returns a Client that dials on first use.
func NewClient(dial Dialer, opts ...Option) *Client {
	c := &Client{
		dial:     dial,
		names:    make(map[Capability]string, len(DefaultToolNames)),
		limiters: make(map[Capability]*rate.Limiter),
		handles:  make(map[Capability]Tool),
	}
	for k, v := range DefaultToolNames {
		c.names[k] = v
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Invoke runs the tool bound to capability with args.
func (c *Client) Invoke(ctx context.Context, capability Capability, args map[string]any) (any, error) {
	if lim := c.limiters[capability]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "tools: rate limit wait")
		}
	}

	return resilience.ExecuteVal(ctx, c.breakers.Get("tools."+string(capability)), func(ctx context.Context) (any, error) {
		return c.invoke(ctx, capability, args)
	})
}

func (c *Client) invoke(ctx context.Context, capability Capability, args map[string]any) (any, error) {
	tool, gen, err := c.resolve(ctx, capability)
	if err != nil {
		return nil, err
	}

	out, err := tool.Invoke(ctx, args)
	if err == nil || !IsSessionLost(err) {
		return out, err
	}

	zap.L().Warn("tools: session lost, reconnecting",
		zap.String("capability", string(capability)),
		zap.String("tool", tool.Name()),
		zap.Error(err),
	)
	c.reset(gen)

	tool, _, err = c.resolve(ctx, capability)
	if err != nil {
		return nil, err
	}
	return tool.Invoke(ctx, args)
}

// resolve returns the cached tool for capability, dialing and listing
// tools if needed, together with the session generation it belongs to.
func (c *Client) resolve(ctx context.Context, capability Capability) (Tool, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.handles[capability]; ok {
		return t, c.generation, nil
	}

	if c.session == nil {
		s, err := c.dial(ctx)
		if err != nil {
			return nil, 0, eris.Wrap(err, "tools: connect")
		}
		c.session = s
	}
	if c.tools == nil {
		tools, err := c.session.ListTools(ctx)
		if err != nil {
			return nil, 0, eris.Wrap(err, "tools: list tools")
		}
		c.tools = tools
	}

	substr, ok := c.names[capability]
	if !ok {
		return nil, 0, resilience.NewConfigError(eris.Wrapf(ErrToolNotFound, "tools: unknown capability %q", capability))
	}
	t := FindTool(c.tools, substr)
	if t == nil {
		names := make([]string, len(c.tools))
		for i, tool := range c.tools {
			names[i] = tool.Name()
		}
		return nil, 0, resilience.NewConfigError(eris.Wrapf(ErrToolNotFound,
			"tools: %q not found, available: %s", substr, strings.Join(names, ", ")))
	}
	c.handles[capability] = t
	return t, c.generation, nil
}

// reset drops the session seen at generation gen. Callers that observed an
// older generation find the reset already done and return immediately.
func (c *Client) reset(gen uint64) {
	_, _, _ = c.resets.Do("reset", func() (any, error) {
		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return nil, nil
		}
		old := c.session
		c.session = nil
		c.tools = nil
		c.handles = make(map[Capability]Tool)
		c.generation++
		c.mu.Unlock()

		if old != nil {
			if err := old.Close(); err != nil {
				zap.L().Debug("tools: close stale session", zap.Error(err))
			}
		}
		return nil, nil
	})
}

// Generation returns how many times the session has been reset.
func (c *Client) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Close closes the current session, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.tools = nil
	c.handles = make(map[Capability]Tool)
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Close()
}

// FindTool returns the first tool whose lowercased name contains substr.
func FindTool(tools []Tool, substr string) Tool {
	needle := strings.ToLower(substr)
	for _, t := range tools {
		if strings.Contains(strings.ToLower(t.Name()), needle) {
			return t
		}
	}
	return nil
}

// IsSessionLost reports whether err means the upstream session is gone.
func IsSessionLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSessionLost) || errors.Is(err, mcp.ErrSessionNotFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "session not found") || strings.Contains(msg, `code":-32001`)
}
