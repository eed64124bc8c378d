// Package push fans enriched shots out to connected viewers over WebSocket.
package push

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/okian/shotmatch/internal/domain/model"
	"github.com/okian/shotmatch/pkg/logger"
	"github.com/okian/shotmatch/pkg/metrics"
)

const (
	defaultClientBuffer    = 256
	defaultBroadcastBuffer = 256
)

// Counter reports the reference index size announced to new clients.
type Counter interface {
	Len() int
}

// Option configures a Hub.
type Option func(*Hub)

// WithCounter sets the source of the ready message's shot count.
func WithCounter(c Counter) Option {
	return func(h *Hub) { h.counter = c }
}

// WithClientBuffer sets the per-client outbound buffer.
func WithClientBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.clientBuffer = n
		}
	}
}

// WithAllowedOrigins restricts browser origins. "*" or an empty list allows all.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) { h.origins = origins }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// Hub tracks connected clients and broadcasts to them.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}

	broadcast chan []byte
	pong      []byte

	upgrader     websocket.Upgrader
	origins      []string
	counter      Counter
	clientBuffer int
	log          logger.Logger
}

// NewHub creates a hub. Serve must be running for broadcasts to go out.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:      make(map[*Client]struct{}),
		broadcast:    make(chan []byte, defaultBroadcastBuffer),
		clientBuffer: defaultClientBuffer,
		log:          logger.Get().Named("push"),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.pong, _ = json.Marshal(controlMessage{Type: TypePong})
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: writeWait,
		CheckOrigin:      h.checkOrigin,
	}
	return h
}

// Serve runs the broadcast loop until ctx ends, then disconnects every client.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			n := h.closeAll()
			h.log.Info(ctx, "push hub stopped", logger.Int("clients", n))
			return ctx.Err()
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) String() string { return "push-hub" }

// Publish queues a shot for every connected client.
func (h *Hub) Publish(ctx context.Context, shot *model.EnrichedShot) error {
	b, err := json.Marshal(ShotMessage{Type: TypeShot, Shot: shot})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	select {
	case h.broadcast <- b:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrBroadcastTimeout, ctx.Err())
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and greets the client with the index size.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		metrics.RecordErrorByEndpoint("/ws", r.Method, "upgrade")
		return
	}

	total := 0
	if h.counter != nil {
		total = h.counter.Len()
	}
	ready, err := json.Marshal(ReadyMessage{Type: TypeReady, TotalShots: total})
	if err != nil {
		_ = conn.Close()
		return
	}

	c := newClient(h, conn, h.clientBuffer)
	c.send <- ready
	metrics.RecordPushMessage(TypeReady)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.UpdatePushClients(n)
	h.log.Info(r.Context(), "push client connected",
		logger.Any("client", c.id), logger.String("remote", r.RemoteAddr), logger.Int("clients", n))

	c.start()
}

// deliver sends msg to every client in connection order. A client whose
// buffer is full is disconnected.
func (h *Hub) deliver(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ordered := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		ordered = append(ordered, c)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].id < ordered[j].id })

	for _, c := range ordered {
		select {
		case c.send <- msg:
			metrics.RecordPushMessage(TypeShot)
		default:
			metrics.RecordPushDropped()
			h.log.Warn(context.Background(), "push client too slow, disconnecting", logger.Any("client", c.id))
			delete(h.clients, c)
			close(c.send)
		}
	}
	metrics.UpdatePushClients(len(h.clients))
}

// reply queues msg for c alone. send is only closed under h.mu, so a client
// that was evicted or shut down is skipped instead of written to.
func (h *Hub) reply(c *Client, msg []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		metrics.UpdatePushClients(n)
		h.log.Info(context.Background(), "push client disconnected", logger.Any("client", c.id), logger.Int("clients", n))
	}
}

func (h *Hub) closeAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.clients)
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	metrics.UpdatePushClients(0)
	return n
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.origins) == 0 {
		return true
	}
	for _, o := range h.origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
