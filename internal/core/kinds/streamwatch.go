package kinds

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/entsync/entsync/internal/core/entity"
	"github.com/entsync/entsync/internal/core/observability/log"
)

// StreamWatcher follows a live feed over a websocket. It reconnects with
// exponential backoff while alive and tears the connection down on kill,
// which makes it the kind that actually exercises the "callbacks after
// logical death are no-ops" part of the contract.
type StreamWatcher struct {
	entity.Core
	log        log.Log
	url        string
	dialer     *websocket.Dialer
	maxBackoff time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
	done chan struct{}

	connects uint64
	messages uint64
}

// StreamWatchFactory builds the factory for streamwatch records. Records
// carry a "url" attribute pointing at a ws:// or wss:// endpoint.
func StreamWatchFactory(deps Deps) entity.Factory {
	deps = deps.withDefaults()
	return func(_ context.Context, rec entity.Record) (entity.Entity, error) {
		raw := rec.StringAttr("url")
		if raw == "" {
			return nil, fmt.Errorf("streamwatch record needs a url attribute")
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("streamwatch url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return nil, fmt.Errorf("streamwatch url scheme must be ws or wss, got %q", u.Scheme)
		}
		w := &StreamWatcher{
			Core:       entity.NewCore(rec, deps.Clock),
			log:        deps.Log,
			url:        u.String(),
			dialer:     &websocket.Dialer{HandshakeTimeout: deps.DialTimeout},
			maxBackoff: deps.MaxBackoff,
			done:       make(chan struct{}),
		}
		go w.watch()
		return w, nil
	}
}

// URL returns the watched endpoint.
func (w *StreamWatcher) URL() string { return w.url }

// Connected reports whether a connection is currently open.
func (w *StreamWatcher) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil
}

// Stats returns how often the watcher connected and how many messages it
// has read.
func (w *StreamWatcher) Stats() (connects, messages uint64) {
	return atomic.LoadUint64(&w.connects), atomic.LoadUint64(&w.messages)
}

func (w *StreamWatcher) watch() {
	backoff := time.Second
	for {
		if w.Killed() {
			return
		}
		conn, _, err := w.dialer.Dial(w.url, nil)
		if err != nil {
			w.log.Warn("stream dial failed",
				log.String("id", w.ID()), log.String("url", w.url),
				log.Duration("retry_in", backoff), log.Error(err))
			select {
			case <-w.done:
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, w.maxBackoff)
			continue
		}
		backoff = time.Second
		atomic.AddUint64(&w.connects, 1)

		w.mu.Lock()
		if w.Killed() {
			w.mu.Unlock()
			conn.Close()
			return
		}
		w.conn = conn
		w.mu.Unlock()

		w.log.Info("stream connected", log.String("id", w.ID()), log.String("url", w.url))
		w.readLoop(conn)

		w.mu.Lock()
		w.conn = nil
		w.mu.Unlock()
	}
}

func (w *StreamWatcher) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if !w.Killed() && websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.log.Warn("stream read failed",
					log.String("id", w.ID()), log.Error(err))
			}
			return
		}
		atomic.AddUint64(&w.messages, 1)
	}
}

// OnKill closes the live connection and stops the reconnect loop.
func (w *StreamWatcher) OnKill() {
	close(w.done)
	w.mu.Lock()
	conn := w.conn
	w.conn = nil
	w.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (w *StreamWatcher) SaveData() entity.Record {
	return w.Core.SaveData().WithAttr("url", w.url)
}
