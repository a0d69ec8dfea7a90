package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vraagmijnoverheid/woo-web/internal/services"
)

func TestSocketURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{base: "http://localhost:8000", want: "ws://localhost:8000/ws/conversation/"},
		{base: "https://api.example.nl/", want: "wss://api.example.nl/ws/conversation/"},
		{base: "https://example.nl/backend", want: "wss://example.nl/backend/ws/conversation/"},
		{base: "ftp://example.nl", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := services.SocketURL(tt.base)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SocketURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SocketURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWebSocketDialer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/conversation/" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		received <- msg
		conn.WriteJSON(map[string]any{"message": "Dag"})
		conn.ReadMessage()
	}))
	defer srv.Close()

	dialer, err := services.NewWebSocketDialer(srv.URL)
	if err != nil {
		t.Fatalf("NewWebSocketDialer() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := dialer.Dial(ctx)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"conversation_id": nil, "message": "Hallo"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	select {
	case msg := <-received:
		if msg["message"] != "Hallo" {
			t.Errorf("server received %v", msg)
		}
	case <-ctx.Done():
		t.Fatal("server did not receive the message")
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil || frame["message"] != "Dag" {
		t.Errorf("frame = %q, err = %v", data, err)
	}
}
