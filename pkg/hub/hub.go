package hub

import (
	"log"
	"strconv"
	"sync"

	"technobug/pkg/envelope"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type writer interface {
	WriteMessage(messageType int, data []byte) error
}

type clientConn struct {
	out    writer
	userID int
	mu     sync.Mutex
	postID int // 0 receives every post's events
}

func (cc *clientConn) send(data []byte) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if err := cc.out.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[HUB] send error user=%d: %v", cc.userID, err)
	}
}

func (cc *clientConn) watching(postID int) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.postID == 0 || postID == 0 || cc.postID == postID
}

// Hub keeps the open page connections of this instance and pushes thread
// events to the ones watching the affected post.
type Hub struct {
	mu      sync.RWMutex
	clients map[*clientConn]struct{}
	byUser  map[int][]*clientConn
}

func New() *Hub {
	return &Hub{
		clients: make(map[*clientConn]struct{}),
		byUser:  make(map[int][]*clientConn),
	}
}

// Handler upgrades /ws requests. The optional post_id query parameter scopes
// the connection to a single thread.
func (h *Hub) Handler() fiber.Handler {
	upgrade := websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("user_id").(int)
		postID, _ := strconv.Atoi(c.Query("post_id"))
		h.HandleConn(c, userID, postID)
	})
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}

type reader interface {
	writer
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

func (h *Hub) HandleConn(c reader, userID, postID int) {
	cc := h.register(c, userID, postID)
	log.Printf("[HUB] Client connected: user_id=%d post_id=%d total=%d", userID, postID, h.ClientCount())

	defer func() {
		h.unregister(cc)
		c.Close()
		log.Printf("[HUB] Client disconnected: user_id=%d total=%d", userID, h.ClientCount())
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			return
		}

		env, err := envelope.Unmarshal(raw)
		if err != nil {
			h.reply(cc, envelope.NewError("message", "hub", 400, "JSON inválido"))
			continue
		}

		switch env.Action {
		case "ping":
			h.reply(cc, envelope.New("pong", "hub"))
		case "subscribe":
			cc.mu.Lock()
			cc.postID = env.PostID
			cc.mu.Unlock()
			h.reply(cc, envelope.New("subscribed", "hub"))
		default:
			h.reply(cc, envelope.NewError(env.Action, "hub", 404, "ação não encontrada: "+env.Action))
		}
	}
}

func (h *Hub) register(c writer, userID, postID int) *clientConn {
	cc := &clientConn{out: c, userID: userID, postID: postID}
	h.mu.Lock()
	h.clients[cc] = struct{}{}
	if userID > 0 {
		h.byUser[userID] = append(h.byUser[userID], cc)
	}
	h.mu.Unlock()
	return cc
}

func (h *Hub) unregister(cc *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, cc)
	if cc.userID > 0 {
		conns := h.byUser[cc.userID]
		for i, conn := range conns {
			if conn == cc {
				h.byUser[cc.userID] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.byUser[cc.userID]) == 0 {
			delete(h.byUser, cc.userID)
		}
	}
}

func (h *Hub) reply(cc *clientConn, env envelope.Envelope) {
	raw, err := env.Marshal()
	if err != nil {
		return
	}
	cc.send(raw)
}

// Deliver pushes an event to every local connection watching its post. It is
// registered on the broker so events from any instance reach this one.
// Events addressed to a user go only to that user's connections.
func (h *Hub) Deliver(env envelope.Envelope) {
	if env.UserID > 0 {
		h.SendToUser(env.UserID, env)
		return
	}
	raw, err := env.Marshal()
	if err != nil {
		log.Printf("[HUB] marshal error: %v", err)
		return
	}
	h.mu.RLock()
	targets := make([]*clientConn, 0, len(h.clients))
	for cc := range h.clients {
		if cc.watching(env.PostID) {
			targets = append(targets, cc)
		}
	}
	h.mu.RUnlock()

	for _, cc := range targets {
		cc.send(raw)
	}
}

// SendToUser delivers to every connection of one user.
func (h *Hub) SendToUser(userID int, env envelope.Envelope) {
	raw, err := env.Marshal()
	if err != nil {
		return
	}
	h.mu.RLock()
	conns := append([]*clientConn(nil), h.byUser[userID]...)
	h.mu.RUnlock()
	for _, cc := range conns {
		cc.send(raw)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) AuthenticatedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}
