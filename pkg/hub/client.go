package hub

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"technobug/pkg/envelope"

	"github.com/fasthttp/websocket"
)

// Client follows a thread's live events from the page side, reconnecting
// whenever the socket drops.
type Client struct {
	wsURL   string
	token   string
	postID  int
	dialer  *websocket.Dialer
	retry   time.Duration
	mu      sync.Mutex
	conn    *websocket.Conn
	onEvent func(envelope.Envelope)
}

// NewClient builds a subscriber for baseURL (http or https) scoped to postID;
// postID 0 follows every post.
func NewClient(baseURL, token string, postID int) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	if postID > 0 {
		q := u.Query()
		q.Set("post_id", strconv.Itoa(postID))
		u.RawQuery = q.Encode()
	}
	return &Client{
		wsURL:  u.String(),
		token:  token,
		postID: postID,
		dialer: websocket.DefaultDialer,
		retry:  3 * time.Second,
	}, nil
}

func (c *Client) OnEvent(fn func(envelope.Envelope)) {
	c.onEvent = fn
}

// Run dials and reads until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.dial(ctx); err != nil {
			log.Printf("[HUB-CLIENT] erro conexão: %v, retry em %s", err, c.retry)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retry):
			}
			continue
		}

		log.Printf("[HUB-CLIENT] conectado a %s", c.wsURL)
		c.readLoop(ctx)
		log.Printf("[HUB-CLIENT] desconectado, reconectando")

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (c *Client) dial(ctx context.Context) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, header)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	postID := c.postID
	c.mu.Unlock()

	if postID > 0 {
		if err := c.Subscribe(postID); err != nil {
			c.drop(conn)
			return err
		}
	}
	return nil
}

// drop closes conn and forgets it if it is still the live connection.
func (c *Client) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
}

func (c *Client) readLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	defer c.drop(conn)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := envelope.Unmarshal(raw)
		if err != nil || env.Error != nil {
			continue
		}
		if c.onEvent != nil {
			c.onEvent(env)
		}
	}
}

// Subscribe rescopes the live connection to another post.
func (c *Client) Subscribe(postID int) error {
	env := envelope.New("subscribe", "hub")
	env.PostID = postID
	data, err := env.Marshal()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.postID = postID
	if c.conn == nil {
		return nil
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()
}
