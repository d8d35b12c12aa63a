package connection

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// WSPath is the path the CLI upgrades on. The server accepts the upgrade
// on any path.
const WSPath = "/ws"

// ConnectedText is the acknowledgement the server sends after the handshake.
const ConnectedText = "connected"

// WSClient is a WebSocket command session. Each Send writes one text frame
// and waits for the one reply frame.
type WSClient struct {
	conn    *websocket.Conn
	timeout time.Duration
}

// DialWS opens a WebSocket session and waits for the acknowledgement.
// cookieName and cookie may be empty. tlsConfig is used for https servers
// and may be nil.
func DialWS(ctx context.Context, server, cookieName, cookie string, timeout time.Duration, tlsConfig *tls.Config) (*WSClient, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base, socket := splitServer(server)
	wsURL := "ws" + strings.TrimPrefix(base, "http") + WSPath

	header := http.Header{}
	header.Set("User-Agent", userAgent)
	if cookieName != "" && cookie != "" {
		header.Set("Cookie", (&http.Cookie{Name: cookieName, Value: cookie}).String())
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout, TLSClientConfig: tlsConfig}
	if socket != "" {
		dialer.NetDialContext = unixDialer(socket)
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &WSClient{conn: conn, timeout: timeout}
	ack, err := c.read()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read acknowledgement: %w", err)
	}
	if ack != ConnectedText {
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected acknowledgement %q", ack)
	}
	return c, nil
}

// Send writes line as one frame and returns the reply.
func (c *WSClient) Send(line string) (string, error) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	return c.read()
}

// Close sends a close frame and closes the connection.
func (c *WSClient) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

func (c *WSClient) read() (string, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(msg), nil
}
