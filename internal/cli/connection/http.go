package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds one HTTP exchange.
const DefaultTimeout = 30 * time.Second

// userAgent identifies the CLI to the server.
const userAgent = "chaingate-cli/1.0"

// ErrNoSessionCookie is returned when a login succeeds at the HTTP level
// but the server set no session cookie, i.e. the credentials were refused.
var ErrNoSessionCookie = errors.New("login refused: no session cookie")

// RPCRequest is the JSON-RPC request body posted to /rpc.
type RPCRequest struct {
	JSONRPC string   `json:"jsonrpc"`
	ID      int      `json:"id"`
	Method  string   `json:"method"`
	Params  []string `json:"params"`
}

// unixScheme selects the local command socket: unix:///run/chaingate.sock.
const unixScheme = "unix://"

// unixHost stands in for the host part of URLs sent over a Unix socket.
const unixHost = "http://localhost"

// HTTPClient talks to the HTTP surfaces of one server.
type HTTPClient struct {
	baseURL    string
	client     *http.Client
	transport  *http.Transport
	cookieName string
	cookie     string
}

// NewHTTPClient creates a client for server: host:port, an http:// or
// https:// URL, or a unix:// socket path. A non-positive timeout uses
// DefaultTimeout.
func NewHTTPClient(server string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	baseURL, socket := splitServer(server)
	if socket != "" {
		transport.Proxy = nil
		transport.DialContext = unixDialer(socket)
	}
	return &HTTPClient{
		baseURL:   baseURL,
		transport: transport,
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			// Login and logout answer with redirects carrying the cookie.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// WithSession sends the session cookie name=value on every request.
func (c *HTTPClient) WithSession(name, value string) *HTTPClient {
	c.cookieName = name
	c.cookie = value
	return c
}

// WithTLSConfig sets the TLS config used for https servers.
func (c *HTTPClient) WithTLSConfig(cfg *tls.Config) *HTTPClient {
	if cfg != nil {
		c.transport.TLSClientConfig = cfg
	}
	return c
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Call posts {jsonrpc:"2.0", id:1, method, params} to /rpc and returns the
// raw response body.
func (c *HTTPClient) Call(ctx context.Context, method string, params []string) ([]byte, error) {
	if params == nil {
		params = []string{}
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/rpc", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// Get fetches path and returns the body. Statuses of 400 and above are
// errors carrying the body text.
func (c *HTTPClient) Get(ctx context.Context, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// Login posts the credentials to /login and returns the session cookie
// value the server set.
func (c *HTTPClient) Login(ctx context.Context, user, pass string) (string, error) {
	form := url.Values{"user": {user}, "pass": {pass}}
	req, err := c.newRequest(ctx, http.MethodPost, "/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	for _, ck := range resp.Cookies() {
		if ck.Name == c.cookieName && ck.Value != "" {
			c.cookie = ck.Value
			return ck.Value, nil
		}
	}
	return "", ErrNoSessionCookie
}

// Logout asks the server to drop the current session.
func (c *HTTPClient) Logout(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/logout", nil)
	if err != nil {
		return err
	}
	if _, err := c.do(req); err != nil {
		return err
	}
	c.cookie = ""
	return nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if c.cookieName != "" && c.cookie != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: c.cookie})
	}
	return req, nil
}

func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, msg)
	}
	return data, nil
}

// splitServer returns the base URL for server and, for unix:// servers,
// the socket path.
func splitServer(server string) (baseURL, socket string) {
	if path, ok := strings.CutPrefix(server, unixScheme); ok {
		return unixHost, path
	}
	return normalizeBaseURL(server), ""
}

func unixDialer(socket string) func(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	return func(ctx context.Context, _, _ string) (net.Conn, error) {
		return d.DialContext(ctx, "unix", socket)
	}
}

func normalizeBaseURL(server string) string {
	base := strings.TrimRight(server, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base
}
