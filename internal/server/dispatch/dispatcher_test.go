package dispatch

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/chaingate/internal/bridge"
	"github.com/yndnr/chaingate/internal/core/domain"
	"github.com/yndnr/chaingate/internal/core/service"
	"github.com/yndnr/chaingate/internal/server/shardserver"
	"github.com/yndnr/chaingate/internal/telemetry/metric"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	addr     string
	sessions *service.SessionRegistry
	bridge   *bridge.Registry
	clock    *fakeClock
	d        *Dispatcher
}

func newFixture(t *testing.T, cfg Config, startBridge bool, opts ...Option) *fixture {
	t.Helper()
	clock := newFakeClock()
	sessions := service.NewSessionRegistry(30*time.Minute,
		service.WithClock(clock.Now),
		service.WithSessionLogger(discard),
	)
	b := bridge.NewRegistry(nil, bridge.WithLogger(discard))
	if startBridge {
		b.Start()
	}
	d := New(cfg, sessions, b, append([]Option{WithLogger(discard)}, opts...)...)

	ln, err := shardserver.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	scfg := shardserver.DefaultConfig()
	scfg.Workers = 1
	pool := shardserver.NewWorkerPool(scfg, d, shardserver.WithLogger(discard))
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	acc := shardserver.NewAcceptor(ln, pool, shardserver.WithLogger(discard))
	served := make(chan error, 1)
	go func() { served <- acc.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-served
		pool.Stop()
	})
	return &fixture{addr: ln.Addr().String(), sessions: sessions, bridge: b, clock: clock, d: d}
}

func (f *fixture) client() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (f *fixture) do(t *testing.T, method, path, body, cookie string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, "http://"+f.addr+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if method == http.MethodPost && strings.Contains(body, "=") && !strings.HasPrefix(body, "{") {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: cookie})
	}
	return f.send(t, req)
}

func (f *fixture) send(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := f.client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(data)
}

func sessionCookie(t *testing.T, resp *http.Response) string {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == DefaultCookieName {
			return c.Value
		}
	}
	t.Fatalf("no %s cookie in %v", DefaultCookieName, resp.Header["Set-Cookie"])
	return ""
}

type rpcReply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

func decodeRPC(t *testing.T, body string) rpcReply {
	t.Helper()
	var r rpcReply
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	return r
}

func TestDispatcher_LoginLookupLogout(t *testing.T) {
	f := newFixture(t, DefaultConfig(), true)

	form := url.Values{"user": {"alice"}, "pass": {"x"}}.Encode()
	resp, _ := f.do(t, http.MethodPost, "/login", form, "")
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/" {
		t.Fatalf("login Location = %q", loc)
	}
	if !resp.Close {
		t.Error("login response should close the connection")
	}
	cookie := sessionCookie(t, resp)
	if f.sessions.Len() != 1 {
		t.Fatalf("sessions = %d, want 1", f.sessions.Len())
	}
	created := f.sessions.Snapshot()[0]

	f.clock.Advance(time.Minute)
	resp, body := f.do(t, http.MethodGet, "/api/session", "", cookie)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"user":"alice"`) {
		t.Fatalf("session lookup = %d %s", resp.StatusCode, body)
	}
	if got := f.sessions.Snapshot()[0].LastUsed; !got.After(created.LastUsed) {
		t.Errorf("LastUsed = %v, want after %v", got, created.LastUsed)
	}

	resp, _ = f.do(t, http.MethodGet, "/logout", "", cookie)
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != loginPage {
		t.Fatalf("logout = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	if !strings.Contains(strings.Join(resp.Header["Set-Cookie"], ";"), "Max-Age=0") {
		t.Errorf("logout should clear the cookie, got %v", resp.Header["Set-Cookie"])
	}
	if _, ok := f.sessions.LookupByCookie(cookie); ok {
		t.Error("session still resolvable after logout")
	}

	// A second logout is harmless.
	resp, _ = f.do(t, http.MethodGet, "/logout", "", cookie)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("second logout = %d", resp.StatusCode)
	}
}

func TestDispatcher_LoginRejected(t *testing.T) {
	f := newFixture(t, DefaultConfig(), true)

	resp, _ := f.do(t, http.MethodPost, "/login", "user=alice&pass=", "")
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != loginPage {
		t.Fatalf("login = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	if len(resp.Cookies()) != 0 {
		t.Errorf("rejected login set cookies: %v", resp.Cookies())
	}
	if f.sessions.Len() != 0 {
		t.Errorf("sessions = %d, want 0", f.sessions.Len())
	}
}

func TestDispatcher_LoginIgnoresContentType(t *testing.T) {
	f := newFixture(t, DefaultConfig(), true)

	for _, ct := range []string{"", "text/plain", "application/x-www-form-urlencoded"} {
		req, err := http.NewRequest(http.MethodPost, "http://"+f.addr+"/login", strings.NewReader("user=alice&pass=x"))
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		resp, _ := f.send(t, req)
		if loc := resp.Header.Get("Location"); loc != "/" {
			t.Fatalf("Content-Type %q: Location = %q", ct, loc)
		}
		if _, ok := f.sessions.LookupByCookie(sessionCookie(t, resp)); !ok {
			t.Fatalf("Content-Type %q: session not created", ct)
		}
	}
	if n := f.sessions.Len(); n != 3 {
		t.Errorf("sessions = %d, want 3", n)
	}
}

func TestDispatcher_LoginWithStaticAuthenticator(t *testing.T) {
	hash, err := service.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	auth, err := service.NewStaticAuthenticator(map[string]string{"alice": hash})
	if err != nil {
		t.Fatalf("NewStaticAuthenticator: %v", err)
	}
	f := newFixture(t, DefaultConfig(), true, WithAuthenticator(auth))

	resp, _ := f.do(t, http.MethodPost, "/login", "user=alice&pass=wrong", "")
	if resp.Header.Get("Location") != loginPage {
		t.Fatalf("wrong password Location = %q", resp.Header.Get("Location"))
	}
	resp, _ = f.do(t, http.MethodPost, "/login", "user=alice&pass=s3cret", "")
	if resp.Header.Get("Location") != "/" {
		t.Fatalf("right password Location = %q", resp.Header.Get("Location"))
	}
}

func TestDispatcher_RPCBridgeNotStarted(t *testing.T) {
	f := newFixture(t, DefaultConfig(), false)

	nc, err := net.Dial("tcp", f.addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer nc.Close()
	_ = nc.SetDeadline(time.Now().Add(5 * time.Second))

	body := `{"jsonrpc":"2.0","id":7,"method":"help","params":[]}`
	req := "POST /rpc HTTP/1.1\r\nHost: x\r\nContent-Type: application/json\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
	if _, err := io.WriteString(nc, req); err != nil {
		t.Fatalf("write: %v", err)
	}

	br := bufio.NewReader(nc)
	resp, err := http.ReadResponse(br, &http.Request{Method: http.MethodPost})
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	r := decodeRPC(t, string(data))
	if r.Error == nil || r.Error.Message != domain.ErrBridgeNotStarted.Text() {
		t.Fatalf("reply = %s", data)
	}
	if r.Error.Code != rpcErrorCode || string(r.ID) != "7" {
		t.Errorf("reply = %s", data)
	}
	if !resp.Close {
		t.Error("rpc response should carry Connection: close")
	}
	if _, err := br.ReadByte(); err != io.EOF {
		t.Errorf("expected EOF after send-and-close, got %v", err)
	}
}

func TestDispatcher_RPCCommands(t *testing.T) {
	f := newFixture(t, DefaultConfig(), true)

	_, body := f.do(t, http.MethodPost, "/rpc", `{"jsonrpc":"2.0","id":1,"method":"ping","params":[]}`, "")
	if r := decodeRPC(t, body); string(r.Result) != `"pong"` || string(r.ID) != "1" {
		t.Errorf("ping = %s", body)
	}

	_, body = f.do(t, http.MethodGet, "/rpc/echo/hello/world", "", "")
	if r := decodeRPC(t, body); string(r.Result) != `"hello world"` || string(r.ID) != "null" {
		t.Errorf("echo = %s", body)
	}

	_, body = f.do(t, http.MethodPost, "/rpc", `{"jsonrpc":"2.0","id":"a","method":"nope"}`, "")
	r := decodeRPC(t, body)
	if r.Error == nil || r.Error.Message != domain.ErrUnknownCommand.WithDetails("nope").Text() {
		t.Errorf("unknown = %s", body)
	}

	_, body = f.do(t, http.MethodPost, "/rpc", `{"jsonrpc":`, "")
	if r := decodeRPC(t, body); r.Error == nil {
		t.Errorf("malformed = %s", body)
	}
}

func TestDispatcher_RPCForbidden(t *testing.T) {
	f := newFixture(t, DefaultConfig(), true)

	for _, path := range []string{"/rpcx", "/RPC", "/rpc2/ping"} {
		resp, body := f.do(t, http.MethodPost, path, `{"method":"ping"}`, "")
		if resp.StatusCode != http.StatusOK || body != domain.ErrForbidden.Text() {
			t.Errorf("%s = %d %q", path, resp.StatusCode, body)
		}
		if !resp.Close {
			t.Errorf("%s should close the connection", path)
		}
	}
}

func TestDispatcher_RPCRequireSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireSession = true
	f := newFixture(t, cfg, true)

	_, body := f.do(t, http.MethodPost, "/rpc", `{"method":"ping"}`, "")
	if r := decodeRPC(t, body); r.Error == nil || r.Error.Message != domain.ErrNotAuthenticated.Text() {
		t.Fatalf("anonymous = %s", body)
	}

	resp, _ := f.do(t, http.MethodPost, "/login", "user=bob&pass=pw", "")
	cookie := sessionCookie(t, resp)
	_, body = f.do(t, http.MethodPost, "/rpc", `{"method":"ping"}`, cookie)
	if r := decodeRPC(t, body); string(r.Result) != `"pong"` {
		t.Fatalf("authenticated = %s", body)
	}
}

func TestDispatcher_RPCRateLimit(t *testing.T) {
	limiter := service.NewClientLimiter(0.001, 1, 0)
	f := newFixture(t, DefaultConfig(), true, WithRateLimiter(limiter))

	_, body := f.do(t, http.MethodPost, "/rpc", `{"method":"ping"}`, "")
	if r := decodeRPC(t, body); r.Error != nil {
		t.Fatalf("first = %s", body)
	}
	_, body = f.do(t, http.MethodPost, "/rpc", `{"method":"ping"}`, "")
	if r := decodeRPC(t, body); r.Error == nil || r.Error.Message != domain.ErrRateLimited.Text() {
		t.Fatalf("second = %s", body)
	}
}

func TestDispatcher_APIStatsKeepAlive(t *testing.T) {
	f := newFixture(t, DefaultConfig(), true)

	resp, body := f.do(t, http.MethodGet, "/api/stats", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Close {
		t.Error("/api should keep the connection open")
	}
	for _, want := range []string{`"workers":2`, `"bridge_started":true`, `"shard":0`} {
		if !strings.Contains(body, want) {
			t.Errorf("stats %s missing %s", body, want)
		}
	}

	_, body = f.do(t, http.MethodGet, "/api/nothing", "", "")
	if body != domain.ErrForbidden.Text() {
		t.Errorf("unknown api route = %q", body)
	}
}

func TestDispatcher_Static(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "login.html"), []byte("<form>login</form>"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.DocumentRoot = root
	f := newFixture(t, cfg, true)

	resp, body := f.do(t, http.MethodGet, "/login", "", "")
	if resp.StatusCode != http.StatusOK || body != "<form>login</form>" {
		t.Fatalf("login page = %d %q", resp.StatusCode, body)
	}
	if !resp.Close {
		t.Error("static response should close the connection")
	}

	resp, _ = f.do(t, http.MethodGet, "/missing.txt", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing file status = %d", resp.StatusCode)
	}
}

func TestDispatcher_StaticWithoutRoot(t *testing.T) {
	f := newFixture(t, DefaultConfig(), true)

	resp, body := f.do(t, http.MethodGet, "/index.html", "", "")
	if resp.StatusCode != http.StatusForbidden || body != domain.ErrForbidden.Text() {
		t.Fatalf("static = %d %q", resp.StatusCode, body)
	}
}

func TestDispatcher_Metrics(t *testing.T) {
	reg := metric.NewRegistry()
	f := newFixture(t, DefaultConfig(), true, WithMetrics(reg))

	f.do(t, http.MethodPost, "/rpc", `{"method":"ping"}`, "")
	resp, body := f.do(t, http.MethodGet, DefaultMetricsPath, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, `chaingate_requests_total{outcome="ok",surface="rpc"} 1`) {
		t.Errorf("metrics missing rpc counter:\n%s", body)
	}
}

func dialWS(t *testing.T, addr string, header http.Header) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", header)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, msg, err := ws.ReadMessage(); err != nil || string(msg) != connectedText {
		t.Fatalf("ack = %q, %v", msg, err)
	}
	return ws
}

func exchange(t *testing.T, ws *websocket.Conn, msg string) string {
	t.Helper()
	if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	_, reply, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return string(reply)
}

func TestDispatcher_WebSocketCommands(t *testing.T) {
	f := newFixture(t, DefaultConfig(), true)
	ws := dialWS(t, f.addr, nil)

	tests := []struct {
		frame string
		want  string
	}{
		{"ping", `"pong"`},
		{"echo  a   b", `"a b"`},
		{"help ping", `"ping"`},
		{"nope", domain.ErrUnknownCommand.WithDetails("nope").Text()},
		{"   ", domain.ErrNoCommand.Text()},
	}
	for _, tt := range tests {
		if got := exchange(t, ws, tt.frame); got != tt.want {
			t.Errorf("frame %q = %q, want %q", tt.frame, got, tt.want)
		}
	}
}

func TestDispatcher_WebSocketRequireSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireSession = true
	f := newFixture(t, cfg, true)

	anon := dialWS(t, f.addr, nil)
	if got := exchange(t, anon, "ping"); got != domain.ErrNotAuthenticated.Text() {
		t.Errorf("anonymous = %q", got)
	}

	resp, _ := f.do(t, http.MethodPost, "/login", "user=carol&pass=pw", "")
	header := http.Header{}
	header.Set("Cookie", DefaultCookieName+"="+sessionCookie(t, resp))
	authed := dialWS(t, f.addr, header)
	if got := exchange(t, authed, "ping"); got != `"pong"` {
		t.Errorf("authenticated = %q", got)
	}
}

func TestDispatcher_WebSocketDepartures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BroadcastDepartures = true
	f := newFixture(t, cfg, true)

	a := dialWS(t, f.addr, nil)
	b := dialWS(t, f.addr, nil)

	_ = a.Close()
	if _, msg, err := b.ReadMessage(); err != nil || string(msg) != leftText {
		t.Fatalf("broadcast = %q, %v", msg, err)
	}
}

func TestDispatcher_OnTimerSweeps(t *testing.T) {
	clock := newFakeClock()
	sessions := service.NewSessionRegistry(time.Minute, service.WithClock(clock.Now))
	d := New(Config{CheckInterval: 2 * time.Second}, sessions, nil, WithLogger(discard))

	if _, err := sessions.Create("alice", "x"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	now := clock.Now().Add(time.Minute)
	if next := d.OnTimer(context.Background(), now); !next.Equal(now.Add(2 * time.Second)) {
		t.Errorf("next = %v", next)
	}
	if sessions.Len() != 1 {
		t.Fatal("session idle for exactly the TTL must survive")
	}
	d.OnTimer(context.Background(), now.Add(time.Second))
	if sessions.Len() != 0 {
		t.Errorf("sessions = %d, want 0", sessions.Len())
	}
}
