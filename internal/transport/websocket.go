// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"spectrum/internal/log"
)

// WebSocketPath is the endpoint clients connect to.
const WebSocketPath = "/ws"

const (
	broadcastQueue = 256
	clientQueue    = 32
	writeTimeout   = 2 * time.Second
)

// Hello is the first message every client receives.
type Hello struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// WebSocketTransport implements the Transport interface for WebSocket
// connections. Send only queues the message; a broadcast goroutine encodes
// it once and hands it to a writer goroutine per client. Slow clients lose
// messages instead of stalling the others.
type WebSocketTransport struct {
	logger   log.Logger
	upgrader websocket.Upgrader
	listener net.Listener
	server   *http.Server

	mu      sync.Mutex
	clients map[uuid.UUID]*wsClient
	closed  bool

	broadcast chan any
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	dropped   atomic.Uint64
}

type wsClient struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// NewWebSocketTransport listens on addr (e.g. ":8080") and starts serving
// WebSocketPath.
func NewWebSocketTransport(addr string) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	wst := &WebSocketTransport{
		logger: log.With("transport/ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Visualisers are served from anywhere.
			},
		},
		listener:  ln,
		clients:   make(map[uuid.UUID]*wsClient),
		broadcast: make(chan any, broadcastQueue),
		done:      make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, wst.handleWebSocket)
	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	wst.wg.Add(2)
	go func() {
		defer wst.wg.Done()
		wst.logger.Infof("serving ws://%s%s", ln.Addr(), WebSocketPath)
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wst.logger.Errorf("server error: %v", err)
		}
	}()
	go func() {
		defer wst.wg.Done()
		wst.handleBroadcasts()
	}()
	return wst, nil
}

// Addr returns the address the server listens on.
func (wst *WebSocketTransport) Addr() net.Addr {
	return wst.listener.Addr()
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.mu.Lock()
	defer wst.mu.Unlock()
	return len(wst.clients)
}

// Dropped returns the number of messages lost to full queues.
func (wst *WebSocketTransport) Dropped() uint64 {
	return wst.dropped.Load()
}

// handleWebSocket upgrades HTTP connections to WebSocket.
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.logger.Warnf("upgrade error: %v", err)
		return
	}

	c := &wsClient{id: uuid.New(), conn: conn, send: make(chan []byte, clientQueue)}
	hello, _ := json.Marshal(Hello{Type: "hello", ID: c.id.String()})
	c.send <- hello

	wst.mu.Lock()
	if wst.closed {
		wst.mu.Unlock()
		conn.Close()
		return
	}
	wst.clients[c.id] = c
	total := len(wst.clients)
	wst.wg.Add(2)
	wst.mu.Unlock()

	wst.logger.Infof("client %s connected from %s, total: %d", c.id, r.RemoteAddr, total)
	go wst.writeLoop(c)
	go wst.readLoop(c)
}

// readLoop discards client messages and drops the client once its
// connection fails.
func (wst *WebSocketTransport) readLoop(c *wsClient) {
	defer wst.wg.Done()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			wst.drop(c)
			return
		}
	}
}

func (wst *WebSocketTransport) writeLoop(c *wsClient) {
	defer wst.wg.Done()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			wst.logger.Debugf("client %s write error: %v", c.id, err)
			wst.drop(c)
			// Drain so drop never blocks on a full queue.
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	c.conn.Close()
}

// drop unregisters c, closing its queue exactly once.
func (wst *WebSocketTransport) drop(c *wsClient) {
	wst.mu.Lock()
	_, ok := wst.clients[c.id]
	if ok {
		delete(wst.clients, c.id)
		close(c.send)
	}
	total := len(wst.clients)
	wst.mu.Unlock()

	if ok {
		c.conn.Close()
		wst.logger.Infof("client %s disconnected, total: %d", c.id, total)
	}
}

// handleBroadcasts encodes queued messages and fans them out to clients.
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			msg, err := json.Marshal(data)
			if err != nil {
				wst.logger.Errorf("encoding %T: %v", data, err)
				continue
			}
			wst.mu.Lock()
			for _, c := range wst.clients {
				select {
				case c.send <- msg:
				default:
					wst.dropped.Add(1)
				}
			}
			wst.mu.Unlock()
		}
	}
}

// Send queues data for all connected clients. When the queue is full the
// message is dropped and Send still returns nil.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case <-wst.done:
		return ErrClosed
	default:
	}
	select {
	case wst.broadcast <- data:
	default:
		wst.dropped.Add(1)
	}
	return nil
}

// Close shuts down the server, disconnects every client and waits for all
// goroutines to exit.
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		wst.logger.Infof("closing server")

		wst.mu.Lock()
		wst.closed = true
		clients := make([]*wsClient, 0, len(wst.clients))
		for _, c := range wst.clients {
			clients = append(clients, c)
		}
		wst.mu.Unlock()

		close(wst.done)
		err = wst.server.Close()
		for _, c := range clients {
			wst.drop(c)
		}
		wst.wg.Wait()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
