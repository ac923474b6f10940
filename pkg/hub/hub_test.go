package hub

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"technobug/pkg/envelope"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	in     chan []byte
	mu     sync.Mutex
	out    [][]byte
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 8)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	raw, ok := <-f.in
	if !ok {
		return 0, nil, errors.New("closed")
	}
	return 1, raw, nil
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	f.out = append(f.out, data)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, raw := range f.out {
		env, _ := envelope.Unmarshal(raw)
		out = append(out, env.Action)
	}
	return out
}

func TestDeliverRespectsPostScope(t *testing.T) {
	h := New()
	all := newFakeConn()
	post1 := newFakeConn()
	post2 := newFakeConn()
	h.register(all, 1, 0)
	h.register(post1, 2, 1)
	h.register(post2, 0, 2)

	env, err := envelope.NewEvent(envelope.NewComment, "social", 1, map[string]int{"id": 10})
	require.NoError(t, err)
	h.Deliver(env)

	assert.Equal(t, []string{envelope.NewComment}, all.actions())
	assert.Equal(t, []string{envelope.NewComment}, post1.actions())
	assert.Empty(t, post2.actions())
	assert.Equal(t, 3, h.ClientCount())
	assert.Equal(t, 2, h.AuthenticatedCount())
}

func TestAddressedEventsReachOnlyTheirUser(t *testing.T) {
	h := New()
	phone := newFakeConn()
	laptop := newFakeConn()
	other := newFakeConn()
	anon := newFakeConn()
	h.register(phone, 4, 0)
	h.register(laptop, 4, 9)
	h.register(other, 5, 0)
	h.register(anon, 0, 0)

	env, err := envelope.NewEvent(envelope.ReplyReceived, "social", 1, map[string]int{"id": 30})
	require.NoError(t, err)
	env.UserID = 4
	h.Deliver(env)

	assert.Equal(t, []string{envelope.ReplyReceived}, phone.actions())
	assert.Equal(t, []string{envelope.ReplyReceived}, laptop.actions())
	assert.Empty(t, other.actions())
	assert.Empty(t, anon.actions())
}

func TestHandleConnPingSubscribeAndCleanup(t *testing.T) {
	h := New()
	c := newFakeConn()
	done := make(chan struct{})
	go func() {
		h.HandleConn(c, 7, 0)
		close(done)
	}()

	ping, _ := envelope.New("ping", "page").Marshal()
	sub := envelope.New("subscribe", "page")
	sub.PostID = 3
	subRaw, _ := sub.Marshal()
	c.in <- ping
	c.in <- subRaw
	c.in <- []byte("{bad")

	require.Eventually(t, func() bool { return len(c.actions()) == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"pong", "subscribed", "message.error"}, c.actions())

	other, _ := envelope.NewEvent(envelope.LikeUpdated, "social", 4, envelope.LikePayload{})
	h.Deliver(other)
	assert.Len(t, c.actions(), 3)

	close(c.in)
	<-done
	assert.Equal(t, 0, h.ClientCount())
	assert.True(t, c.closed)
}

func TestClientReceivesDeliveredEvents(t *testing.T) {
	h := New()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", h.Handler())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	defer app.Shutdown()

	cl, err := NewClient("http://"+ln.Addr().String(), "", 5)
	require.NoError(t, err)

	got := make(chan envelope.Envelope, 4)
	cl.OnEvent(func(e envelope.Envelope) {
		if e.Action == envelope.CommentDeleted {
			got <- e
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cl.Run(ctx)

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// the subscribe sent after dialing must land before the event
	time.Sleep(50 * time.Millisecond)
	env, _ := envelope.NewEvent(envelope.CommentDeleted, "social", 5, envelope.DeletePayload{ID: 42})
	h.Deliver(env)

	select {
	case e := <-got:
		p, err := envelope.ParseData[envelope.DeletePayload](e)
		require.NoError(t, err)
		assert.Equal(t, 42, p.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("evento não recebido")
	}
}

func TestClientReleasesConnOnExit(t *testing.T) {
	h := New()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", h.Handler())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	defer app.Shutdown()

	cl, err := NewClient("http://"+ln.Addr().String(), "", 5)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cl.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run não retornou")
	}

	cl.mu.Lock()
	assert.Nil(t, cl.conn)
	cl.mu.Unlock()
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	// rescoping while offline only records the post
	require.NoError(t, cl.Subscribe(8))
	cl.mu.Lock()
	assert.Equal(t, 8, cl.postID)
	cl.mu.Unlock()
}
