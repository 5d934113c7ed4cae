// Package notification fans playback events out to connected clients.
package notification

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	"github.com/sonobox/sonobox/internal/app/playback"
)

const (
	defaultBufferSize = 16
	redisQueueSize    = 64
	redisSendTimeout  = 500 * time.Millisecond
)

// Message is the wire envelope around an event payload.
type Message struct {
	Seq     uint64    `json:"seq"`
	Event   string    `json:"event"`
	Payload any       `json:"payload"`
	TS      time.Time `json:"ts"`
}

// subscription represents a subscriber's delivery channel.
type subscription struct {
	id string
	ch chan []byte
}

// Config holds the notification manager configuration.
type Config struct {
	// BufferSize is the per-subscriber channel depth. A subscriber that
	// falls this far behind starts losing messages.
	BufferSize int
	// Redis mirrors every message to a pub/sub channel when set.
	Redis *redis.Client
	// Channel is the Redis channel messages are mirrored to.
	Channel string
}

// Manager broadcasts playback events to subscribers. Publish never
// blocks: slow subscribers drop messages, and the Redis mirror runs on
// its own goroutine. It implements playback.Sink.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	closed        bool

	seqMu sync.Mutex
	seq   uint64

	bufSize int
	redisCh chan []byte
	channel string
	done    chan struct{}
}

// NewManager creates a notification manager. The Redis mirror pump is
// started here when configured.
func NewManager(cfg Config) *Manager {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	m := &Manager{
		subscriptions: make(map[string]*subscription),
		bufSize:       cfg.BufferSize,
		channel:       cfg.Channel,
		done:          make(chan struct{}),
	}
	if cfg.Redis != nil {
		m.redisCh = make(chan []byte, redisQueueSize)
		go m.pump(cfg.Redis)
	}
	return m
}

// Subscribe registers a new subscriber and returns its ID and delivery
// channel. The channel is closed by Close, not by Unsubscribe.
func (m *Manager) Subscribe() (string, <-chan []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	sub := &subscription{id: id, ch: make(chan []byte, m.bufSize)}
	m.subscriptions[id] = sub
	zlog.Debug().Msgf("notification: subscriber added: %s (%d total)", id, len(m.subscriptions))
	return id, sub.ch
}

// Unsubscribe removes a subscriber. Safe to call after Close.
func (m *Manager) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, id)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Publish implements playback.Sink. The event is marshaled once and the
// same frame is handed to every subscriber and the Redis mirror.
func (m *Manager) Publish(e playback.Event) {
	m.seqMu.Lock()
	m.seq++
	seq := m.seq
	m.seqMu.Unlock()

	msg := Message{
		Seq:     seq,
		Event:   e.Type.String(),
		Payload: e.Payload(),
		TS:      time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		zlog.Error().Err(err).Msgf("notification: marshal failed: %s", msg.Event)
		return
	}

	// Sends are nonblocking, so holding the read lock here is what keeps
	// Close from closing a channel mid-send.
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	for _, sub := range m.subscriptions {
		select {
		case sub.ch <- data:
		default:
			zlog.Debug().Msgf("notification: subscriber %s lagging, dropped %s", sub.id, msg.Event)
		}
	}
	if m.redisCh != nil {
		select {
		case m.redisCh <- data:
		default:
			zlog.Debug().Msgf("notification: redis mirror lagging, dropped %s", msg.Event)
		}
	}
}

// pump forwards frames to Redis in publish order.
func (m *Manager) pump(client *redis.Client) {
	for {
		select {
		case data := <-m.redisCh:
			ctx, cancel := context.WithTimeout(context.Background(), redisSendTimeout)
			if err := client.Publish(ctx, m.channel, data).Err(); err != nil {
				zlog.Debug().Err(err).Msg("notification: redis publish failed")
			}
			cancel()
		case <-m.done:
			return
		}
	}
}

// Close shuts the manager down: the Redis pump stops and every
// subscriber channel is closed so range loops over them end.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
	for _, sub := range m.subscriptions {
		close(sub.ch)
	}
	m.subscriptions = make(map[string]*subscription)
}
