package capture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fernandocchaves/tabtalk/internal/audio"
)

func newTestWebsocket(t *testing.T) (*Websocket, *httptest.Server) {
	t.Helper()
	cfg := DefaultWebsocketConfig()
	cfg.SampleRate = 16000
	src := NewWebsocket(cfg, zerolog.Nop())
	srv := httptest.NewServer(src.Handler())
	t.Cleanup(srv.Close)
	return src, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebsocketDeliversFrames(t *testing.T) {
	src, srv := newTestWebsocket(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames, errs, err := src.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(wsHello{SampleRate: 16000, Channels: 1}); err != nil {
		t.Fatalf("hello: %v", err)
	}

	samples := []float32{0.25, -0.25, 0.5}
	if err := conn.WriteMessage(websocket.BinaryMessage, audio.EncodeFloat32(samples)); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	select {
	case frame := <-frames:
		if len(frame.Samples) != len(samples) {
			t.Fatalf("expected %d samples, got %d", len(samples), len(frame.Samples))
		}
		for i := range samples {
			if frame.Samples[i] != samples[i] {
				t.Errorf("sample %d: got %v, want %v", i, frame.Samples[i], samples[i])
			}
		}
	case err := <-errs:
		t.Fatalf("capture error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestWebsocketRejectsWithoutSession(t *testing.T) {
	_, srv := newTestWebsocket(t)

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 with no session, got %d", resp.StatusCode)
	}
}

func TestWebsocketRejectsFormatMismatch(t *testing.T) {
	src, srv := newTestWebsocket(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames, _, err := src.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(wsHello{SampleRate: 8000, Channels: 2}); err != nil {
		t.Fatalf("hello: %v", err)
	}

	// server closes the connection; the next read reports it
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected close after format mismatch")
	}

	select {
	case f := <-frames:
		t.Errorf("unexpected frame after rejected hello: %v", f.Samples)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWebsocketStartStop(t *testing.T) {
	cfg := DefaultWebsocketConfig()
	src := NewWebsocket(cfg, zerolog.Nop())

	frames, errs, err := src.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, _, err := src.Start(context.Background()); err == nil {
		t.Error("second start should fail while capturing")
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	// both channels close after stop
	deadline := time.After(2 * time.Second)
	for frames != nil || errs != nil {
		select {
		case _, ok := <-frames:
			if !ok {
				frames = nil
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		case <-deadline:
			t.Fatal("channels did not close after stop")
		}
	}

	// source is reusable after a full stop
	if _, _, err := src.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	src.Stop()
}

func TestWebsocketInvalidConfig(t *testing.T) {
	src := NewWebsocket(WebsocketConfig{}, zerolog.Nop())
	if _, _, err := src.Start(context.Background()); err == nil {
		t.Error("expected error for zero config")
	}
}
