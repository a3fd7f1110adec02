package shellinabox

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	// DefaultWidth and DefaultHeight are used until the local terminal
	// reports its real size.
	DefaultWidth  = 128
	DefaultHeight = 32

	// okMarker is the title of the HTML page ShellInABox answers a
	// successful keystroke upload with.
	okMarker = "<title>OK</title>"

	// maxOpenBody caps how much of the open response is read.
	maxOpenBody = 64 << 10
)

// Dimensions is the terminal size reported to the server with every request
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultDimensions returns the size used when none is known
func DefaultDimensions() Dimensions {
	return Dimensions{Width: DefaultWidth, Height: DefaultHeight}
}

// Valid reports whether both sides are positive
func (d Dimensions) Valid() bool {
	return d.Width > 0 && d.Height > 0
}

// Options configures a Client
type Options struct {
	// InsecureSkipVerify disables TLS certificate verification
	InsecureSkipVerify bool

	// OpenRetries is how many times open is retried after a
	// connection-level failure. Status responses are never retried.
	OpenRetries int

	// RetryWaitMin and RetryWaitMax bound the backoff between open attempts
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// RequestTimeout bounds open and send. Poll never times out on the
	// client side: the server holds it until output is available.
	RequestTimeout time.Duration

	// UserAgent is sent with every request when not empty
	UserAgent string
}

// DefaultOptions returns the options used by the CLI when nothing is configured
func DefaultOptions() Options {
	return Options{
		OpenRetries:    2,
		RetryWaitMin:   250 * time.Millisecond,
		RetryWaitMax:   2 * time.Second,
		RequestTimeout: 30 * time.Second,
		UserAgent:      "sibterm/1.0",
	}
}

// Client performs the three ShellInABox protocol operations against one
// endpoint. It keeps no session state, so it is safe for concurrent use by
// the poll and dispatch workers.
type Client struct {
	endpoint       string
	requestTimeout time.Duration
	transport      *http.Transport
	rest           *resty.Client
	opener         *retryablehttp.Client
	userAgent      string
}

// NewClient creates a client for the ShellInABox instance at endpoint
func NewClient(endpoint string, opts Options) *Client {
	transport := cleanhttp.DefaultPooledTransport()
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // user asked for it
	}
	httpClient := &http.Client{Transport: transport}

	rest := resty.NewWithClient(httpClient)
	if opts.UserAgent != "" {
		rest.SetHeader("User-Agent", opts.UserAgent)
	}

	opener := retryablehttp.NewClient()
	opener.HTTPClient = httpClient
	opener.RetryMax = opts.OpenRetries
	if opts.RetryWaitMin > 0 {
		opener.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		opener.RetryWaitMax = opts.RetryWaitMax
	}
	opener.Logger = retryLogger{}
	opener.CheckRetry = retryOnConnectionError
	opener.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		endpoint:       endpoint,
		requestTimeout: opts.RequestTimeout,
		transport:      transport,
		rest:           rest,
		opener:         opener,
		userAgent:      opts.UserAgent,
	}
}

// Endpoint returns the ShellInABox URL this client talks to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Open starts a new remote session and returns its id
func (c *Client) Open(ctx context.Context, dims Dimensions) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	form := url.Values{}
	form.Set("width", strconv.Itoa(dims.Width))
	form.Set("height", strconv.Itoa(dims.Height))
	form.Set("rooturl", c.endpoint)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, []byte(form.Encode()))
	if err != nil {
		return "", &TransportError{Op: "open", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.opener.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return "", &TransportError{Op: "open", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", NewHTTPStatusError("open", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOpenBody))
	if err != nil {
		return "", &TransportError{Op: "open", Err: err}
	}

	var payload struct {
		Session *string `json:"session"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", &ProtocolError{Op: "open", Reason: "invalid JSON response", Err: err}
	}
	if payload.Session == nil || *payload.Session == "" {
		return "", &ProtocolError{Op: "open", Reason: "response has no session"}
	}
	return *payload.Session, nil
}

// Poll waits for the next chunk of terminal output. The call blocks until
// the server has output or its own hold timeout fires, in which case the
// returned string may be empty.
func (c *Client) Poll(ctx context.Context, session string, dims Dimensions) (string, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetFormData(sessionForm(session, dims)).
		Post(c.endpoint)
	if err != nil {
		return "", &TransportError{Op: "poll", Err: err}
	}
	if !resp.IsSuccess() {
		return "", NewHTTPStatusError("poll", resp.StatusCode())
	}

	var payload struct {
		Data *string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return "", &ProtocolError{Op: "poll", Reason: "invalid JSON response", Err: err}
	}
	if payload.Data == nil {
		return "", &ProtocolError{Op: "poll", Reason: "response has no data"}
	}
	return *payload.Data, nil
}

// Send uploads keystrokes. An empty keys slice is valid and only refreshes
// the dimensions the server uses for the session.
func (c *Client) Send(ctx context.Context, session string, dims Dimensions, keys []byte) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	form := sessionForm(session, dims)
	form["keys"] = hex.EncodeToString(keys)

	resp, err := c.rest.R().
		SetContext(ctx).
		SetFormData(form).
		Post(c.endpoint)
	if err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	if !resp.IsSuccess() {
		return NewHTTPStatusError("send", resp.StatusCode())
	}
	if !strings.Contains(string(resp.Body()), okMarker) {
		return &ProtocolError{Op: "send", Reason: fmt.Sprintf("response lacks %s marker", okMarker)}
	}
	return nil
}

// Close releases idle pooled connections
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

func sessionForm(session string, dims Dimensions) map[string]string {
	return map[string]string{
		"width":   strconv.Itoa(dims.Width),
		"height":  strconv.Itoa(dims.Height),
		"session": session,
	}
}

// retryOnConnectionError retries only when no response was received.
// A status code is the server's answer and retrying it would open a
// second session.
func retryOnConnectionError(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
