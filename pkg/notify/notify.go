// Package notify holds the transient toasts shown to the user.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Info    Kind = "info"
)

const DefaultTTL = 4 * time.Second

type Toast struct {
	ID        string
	Kind      Kind
	Message   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Notifier interface {
	Notify(kind Kind, message string) string
}

// Center keeps the active toasts and drops each one when its TTL elapses.
type Center struct {
	ttl      time.Duration
	onChange func([]Toast)

	mu     sync.Mutex
	toasts []Toast
	timers map[string]*time.Timer
}

func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{ttl: ttl, timers: make(map[string]*time.Timer)}
}

// OnChange registers a render callback invoked with a snapshot after every
// change.
func (c *Center) OnChange(fn func([]Toast)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Center) Notify(kind Kind, message string) string {
	now := time.Now()
	t := Toast{ID: uuid.NewString(), Kind: kind, Message: message, CreatedAt: now, ExpiresAt: now.Add(c.ttl)}

	c.mu.Lock()
	c.toasts = append(c.toasts, t)
	c.timers[t.ID] = time.AfterFunc(c.ttl, func() { c.Dismiss(t.ID) })
	c.mu.Unlock()

	c.changed()
	return t.ID
}

func (c *Center) Success(message string) string { return c.Notify(Success, message) }
func (c *Center) Error(message string) string   { return c.Notify(Error, message) }
func (c *Center) Info(message string) string    { return c.Notify(Info, message) }

// Dismiss removes a toast before it expires. Unknown ids are ignored.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	found := false
	for i, t := range c.toasts {
		if t.ID == id {
			c.toasts = append(c.toasts[:i], c.toasts[i+1:]...)
			found = true
			break
		}
	}
	if timer, ok := c.timers[id]; ok {
		timer.Stop()
		delete(c.timers, id)
	}
	c.mu.Unlock()

	if found {
		c.changed()
	}
}

func (c *Center) Active() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Toast(nil), c.toasts...)
}

func (c *Center) changed() {
	c.mu.Lock()
	fn := c.onChange
	snapshot := append([]Toast(nil), c.toasts...)
	c.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}
