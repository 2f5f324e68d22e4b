// Package link sends motor commands and parameter updates to the rover's
// HTTP control endpoint.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ayusman/camrover/internal/control"
	"github.com/ayusman/camrover/internal/log"
)

// ErrLink is wrapped by every failed rover call.
var ErrLink = errors.New("robot link error")

// DefaultTimeout bounds every call so a stalled network cannot hang the frame loop.
const DefaultTimeout = 2 * time.Second

// Result describes one finished call, successful or not.
type Result struct {
	Command control.Command
	Param   control.Param
	Value   int
	Status  int
	Err     error
	Latency time.Duration
	At      time.Time
}

// OK reports whether the rover answered 200.
func (r Result) OK() bool {
	return r.Err == nil && r.Status == http.StatusOK
}

// Client talks to one control endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	observe  func(Result)
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithObserver registers a callback invoked after every call.
func WithObserver(fn func(Result)) Option {
	return func(c *Client) { c.observe = fn }
}

// New creates a client for endpoint (e.g. http://192.168.4.1:80/control)
// with the given per-call timeout.
func New(endpoint string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		endpoint: endpoint,
		logger:   log.With("component", "link", "endpoint", endpoint),
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the control URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SendCommand issues GET {endpoint}?command={code}.
func (c *Client) SendCommand(ctx context.Context, cmd control.Command) error {
	if !cmd.Valid() {
		return fmt.Errorf("%w: invalid command %d", ErrLink, int(cmd))
	}

	q := url.Values{}
	q.Set("command", strconv.Itoa(cmd.Code()))

	res := c.get(ctx, q)
	res.Command = cmd
	c.finish(res)

	if res.Err != nil {
		c.logger.Warn("command failed", "command", cmd.String(), "err", res.Err)
		return res.Err
	}
	c.logger.Debug("command sent", "command", cmd.String(), "latency", res.Latency)
	return nil
}

// SetParam issues GET {endpoint}?var={name}&val={value} with value clamped
// to the parameter's range. It returns the value actually sent.
func (c *Client) SetParam(ctx context.Context, p control.Param, value int) (int, error) {
	if _, err := control.ParseParam(string(p)); err != nil {
		return value, fmt.Errorf("%w: %v", ErrLink, err)
	}
	value = p.Clamp(value)

	q := url.Values{}
	q.Set("var", string(p))
	q.Set("val", strconv.Itoa(value))

	res := c.get(ctx, q)
	res.Param = p
	res.Value = value
	c.finish(res)

	if res.Err != nil {
		c.logger.Warn("parameter update failed", "param", string(p), "value", value, "err", res.Err)
		return value, res.Err
	}
	c.logger.Info("parameter updated", "param", string(p), "value", value)
	return value, nil
}

func (c *Client) get(ctx context.Context, q url.Values) Result {
	start := time.Now()
	res := Result{At: start}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		res.Err = fmt.Errorf("%w: build request: %v", ErrLink, err)
		return res
	}

	resp, err := c.http.Do(req)
	res.Latency = time.Since(start)
	if err != nil {
		res.Err = fmt.Errorf("%w: %v", ErrLink, err)
		return res
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	res.Status = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		res.Err = fmt.Errorf("%w: status %d", ErrLink, resp.StatusCode)
	}
	return res
}

func (c *Client) finish(res Result) {
	if c.observe != nil {
		c.observe(res)
	}
}
