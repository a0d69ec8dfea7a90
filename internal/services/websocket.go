package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vraagmijnoverheid/woo-web/internal/realtime"
)

// WebSocketDialer opens the live conversation connection to the backend.
type WebSocketDialer struct {
	url    string
	dialer *websocket.Dialer
}

const conversationSocketPath = "/ws/conversation/"

// NewWebSocketDialer derives the socket URL from the backend base URL: http becomes ws and https
// becomes wss.
func NewWebSocketDialer(baseURL string) (WebSocketDialer, error) {
	u, err := SocketURL(baseURL)
	if err != nil {
		return WebSocketDialer{}, err
	}
	return WebSocketDialer{
		url: u,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}, nil
}

// SocketURL returns the conversation socket URL for a backend base URL.
func SocketURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid backend url %q: unsupported scheme %q", baseURL, u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + conversationSocketPath
	return u.String(), nil
}

// URL returns the socket URL this dialer connects to.
func (d WebSocketDialer) URL() string {
	return d.url
}

// Dial implements realtime.Dialer.
func (d WebSocketDialer) Dial(ctx context.Context) (realtime.Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, d.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", d.url, err)
	}
	return conn, nil
}
