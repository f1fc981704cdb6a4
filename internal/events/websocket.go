package events

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	broadcastQueue = 256
	writeTimeout   = 10 * time.Second
)

// WebSocketBroadcaster streams events as JSON text frames to every connected
// client. Attach it to a Bus with bus.SubscribeAll(b.Handle).
//
// A single goroutine owns all writes. Handle never blocks: when the queue is
// full the event is dropped and logged.
type WebSocketBroadcaster struct {
	mu         sync.RWMutex
	clients    map[*websocket.Conn]struct{}
	upgrader   websocket.Upgrader
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// NewWebSocketBroadcaster creates a broadcaster and starts its writer goroutine.
func NewWebSocketBroadcaster(logger *slog.Logger) *WebSocketBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	b := &WebSocketBroadcaster{
		clients:    make(map[*websocket.Conn]struct{}),
		broadcast:  make(chan []byte, broadcastQueue),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
	b.wg.Add(1)
	go b.run()
	return b
}

// Upgrade upgrades an HTTP request and registers the connection.
func (b *WebSocketBroadcaster) Upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	select {
	case b.register <- conn:
	case <-b.done:
		conn.Close()
		return nil, websocket.ErrCloseSent
	}
	return conn, nil
}

// Unregister removes and closes a connection.
func (b *WebSocketBroadcaster) Unregister(conn *websocket.Conn) {
	select {
	case b.unregister <- conn:
	case <-b.done:
	}
}

// Handle queues e for every client. It matches the Handler signature.
func (b *WebSocketBroadcaster) Handle(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		b.logger.Error("failed to encode event", "topic", e.Topic, "error", err)
		return
	}
	select {
	case <-b.done:
	case b.broadcast <- data:
	default:
		b.logger.Warn("websocket queue full, dropping event", "topic", e.Topic)
	}
}

// Clients returns the number of connected clients.
func (b *WebSocketBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *WebSocketBroadcaster) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			return

		case conn := <-b.register:
			b.mu.Lock()
			b.clients[conn] = struct{}{}
			b.mu.Unlock()

		case conn := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[conn]; ok {
				delete(b.clients, conn)
				conn.Close()
			}
			b.mu.Unlock()

		case data := <-b.broadcast:
			b.write(data)
		}
	}
}

func (b *WebSocketBroadcaster) write(data []byte) {
	b.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for conn := range b.clients {
		conns = append(conns, conn)
	}
	b.mu.RUnlock()

	var failed []*websocket.Conn
	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			b.logger.Debug("dropping websocket client", "remote", conn.RemoteAddr().String(), "error", err)
			failed = append(failed, conn)
		}
	}
	if len(failed) == 0 {
		return
	}
	b.mu.Lock()
	for _, conn := range failed {
		delete(b.clients, conn)
		conn.Close()
	}
	b.mu.Unlock()
}

// Close disconnects every client and stops the writer goroutine.
func (b *WebSocketBroadcaster) Close() error {
	b.closeOnce.Do(func() {
		close(b.done)
		b.wg.Wait()
		b.mu.Lock()
		for conn := range b.clients {
			conn.Close()
			delete(b.clients, conn)
		}
		b.mu.Unlock()
	})
	return nil
}
