package capture

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fernandocchaves/tabtalk/internal/audio"
)

// wsHello is the first message a publisher sends after connecting. The
// advertised format must match the configured capture format; frames are
// raw float32 little-endian binary messages after that.
type wsHello struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

// WebsocketConfig configures the websocket ingest source.
type WebsocketConfig struct {
	SampleRate        int
	Channels          int
	ChannelBufferSize int
	HelloTimeout      time.Duration
}

// DefaultWebsocketConfig returns ingest defaults.
func DefaultWebsocketConfig() WebsocketConfig {
	return WebsocketConfig{
		SampleRate:        48000,
		Channels:          1,
		ChannelBufferSize: 32,
		HelloTimeout:      5 * time.Second,
	}
}

// Websocket is a capture source fed by an HTTP endpoint: a browser
// extension (or any client) connects, announces its format, and pushes
// float32 frames. The source is idle until a capture session starts; a
// publisher connecting with no session running is turned away.
type Websocket struct {
	config WebsocketConfig
	log    zerolog.Logger

	upgrader websocket.Upgrader

	mu     sync.Mutex
	sess   *wsSession
	cancel context.CancelFunc
}

type wsSession struct {
	pub    chan Frame    // publishers -> forwarder, never closed
	frames chan Frame    // forwarder -> consumer, closed by forwarder
	errs   chan error    // closed by forwarder
	done   chan struct{} // closed by forwarder on exit
	busy   atomic.Bool   // at most one publisher per session
}

// NewWebsocket returns an idle websocket ingest source.
func NewWebsocket(config WebsocketConfig, log zerolog.Logger) *Websocket {
	return &Websocket{
		config: config,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 4 * 1024,
			// the daemon listens on loopback only
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (w *Websocket) SampleRate() int { return w.config.SampleRate }
func (w *Websocket) Channels() int   { return w.config.Channels }

func (w *Websocket) Start(ctx context.Context) (<-chan Frame, <-chan error, error) {
	if w.config.SampleRate <= 0 || w.config.Channels <= 0 || w.config.ChannelBufferSize <= 0 {
		return nil, nil, fmt.Errorf("invalid websocket capture config: rate=%d channels=%d buffer=%d",
			w.config.SampleRate, w.config.Channels, w.config.ChannelBufferSize)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sess != nil {
		return nil, nil, fmt.Errorf("already capturing")
	}

	captureCtx, cancel := context.WithCancel(ctx)
	sess := &wsSession{
		pub:    make(chan Frame, w.config.ChannelBufferSize),
		frames: make(chan Frame, w.config.ChannelBufferSize),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	w.sess = sess
	w.cancel = cancel

	go w.forward(captureCtx, sess)

	return sess.frames, sess.errs, nil
}

// Stop ends the session and blocks until the forwarder has released it.
func (w *Websocket) Stop() error {
	w.mu.Lock()
	cancel := w.cancel
	sess := w.sess
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sess != nil {
		<-sess.done
	}
	return nil
}

// forward is the single goroutine that owns the consumer-facing channels.
// Publishers only ever send to sess.pub, so channel closes cannot race.
func (w *Websocket) forward(ctx context.Context, sess *wsSession) {
	defer func() {
		w.mu.Lock()
		if w.sess == sess {
			w.sess = nil
			w.cancel = nil
		}
		w.mu.Unlock()

		close(sess.done)
		close(sess.frames)
		close(sess.errs)
	}()

	var droppedCount int
	lastDropLog := time.Now()

	for {
		select {
		case frame := <-sess.pub:
			select {
			case sess.frames <- frame:
			default:
				droppedCount++
				if time.Since(lastDropLog) > time.Second {
					w.log.Warn().Int("dropped", droppedCount).Msg("ingest backpressure, dropping frames")
					lastDropLog = time.Now()
					droppedCount = 0
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// Handler returns the HTTP handler publishers connect to.
func (w *Websocket) Handler() http.Handler {
	return http.HandlerFunc(w.serveIngest)
}

func (w *Websocket) serveIngest(rw http.ResponseWriter, r *http.Request) {
	w.mu.Lock()
	sess := w.sess
	w.mu.Unlock()

	if sess == nil {
		http.Error(rw, "no capture session active", http.StatusConflict)
		return
	}
	if !sess.busy.CompareAndSwap(false, true) {
		http.Error(rw, "another publisher is connected", http.StatusConflict)
		return
	}
	defer sess.busy.Store(false)

	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.log.Warn().Err(err).Msg("ingest upgrade failed")
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(w.config.HelloTimeout))
	var hello wsHello
	if err := conn.ReadJSON(&hello); err != nil {
		w.log.Warn().Err(err).Msg("ingest hello not received")
		return
	}
	if hello.SampleRate != w.config.SampleRate || hello.Channels != w.config.Channels {
		msg := fmt.Sprintf("format mismatch: want %d Hz %d ch, got %d Hz %d ch",
			w.config.SampleRate, w.config.Channels, hello.SampleRate, hello.Channels)
		w.log.Warn().Msg("ingest " + msg)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseUnsupportedData, msg),
			time.Now().Add(time.Second))
		return
	}
	conn.SetReadDeadline(time.Time{})

	w.log.Info().Str("remote", r.RemoteAddr).Int("rate", hello.SampleRate).
		Int("channels", hello.Channels).Msg("ingest publisher connected")

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			w.log.Info().Err(err).Msg("ingest publisher disconnected")
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}

		payload := audio.Payload{Format: audio.FormatFloat32, Data: data}
		if !payload.Valid() {
			w.log.Warn().Int("bytes", len(data)).Msg("ingest frame not float32-aligned, dropped")
			continue
		}
		samples, err := payload.Samples()
		if err != nil {
			w.log.Warn().Err(err).Msg("ingest frame rejected")
			continue
		}

		select {
		case sess.pub <- Frame{Samples: samples, Timestamp: time.Now()}:
		case <-sess.done:
			return
		}
	}
}
