package broker

import (
	"context"
	"log"
	"sync"

	"technobug/pkg/envelope"

	"github.com/redis/go-redis/v9"
)

// Channel is the pub/sub channel every instance listens on for thread events.
const Channel = "technobug:events"

// Wildcard registers a handler that receives every action.
const Wildcard = "*"

type HandlerFunc func(envelope.Envelope)

type Broker struct {
	rdb      *redis.Client
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
	wg       sync.WaitGroup
}

func New(rdb *redis.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		rdb:      rdb,
		ctx:      ctx,
		cancel:   cancel,
		handlers: make(map[string][]HandlerFunc),
	}
}

func (b *Broker) Publish(ctx context.Context, env envelope.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, Channel, data).Err()
}

// Broadcast builds an event envelope and publishes it.
func (b *Broker) Broadcast(ctx context.Context, action string, postID int, data interface{}) error {
	env, err := envelope.NewEvent(action, "social", postID, data)
	if err != nil {
		return err
	}
	return b.Publish(ctx, env)
}

// Notify publishes an event addressed to a single user.
func (b *Broker) Notify(ctx context.Context, userID int, action string, postID int, data interface{}) error {
	env, err := envelope.NewEvent(action, "social", postID, data)
	if err != nil {
		return err
	}
	env.UserID = userID
	return b.Publish(ctx, env)
}

func (b *Broker) On(action string, fn HandlerFunc) {
	b.mu.Lock()
	b.handlers[action] = append(b.handlers[action], fn)
	b.mu.Unlock()
}

// Subscribe starts the receive loop. It returns once the subscription is
// confirmed so a Publish right after it is not lost.
func (b *Broker) Subscribe() error {
	sub := b.rdb.Subscribe(b.ctx, Channel)
	if _, err := sub.Receive(b.ctx); err != nil {
		sub.Close()
		return err
	}
	ch := sub.Channel()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer sub.Close()
		for {
			select {
			case <-b.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				env, err := envelope.Unmarshal([]byte(msg.Payload))
				if err != nil {
					log.Printf("[BROKER] payload inválido: %v", err)
					continue
				}
				b.dispatch(env)
			}
		}
	}()
	return nil
}

func (b *Broker) dispatch(env envelope.Envelope) {
	b.mu.RLock()
	fns := append([]HandlerFunc(nil), b.handlers[env.Action]...)
	fns = append(fns, b.handlers[Wildcard]...)
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(env)
	}
}

func (b *Broker) Close() {
	b.cancel()
	b.wg.Wait()
}
