// Package realtime fans notification events out to the live channels of connected users.
package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/notification"
)

var ErrHubClosed = errors.New("realtime hub is shut down")

// Conn is the part of *websocket.Conn used by a Channel.
type Conn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

var _ Conn = (*websocket.Conn)(nil) // interface compliance check

// frame is an inbound client message.
type frame struct {
	Type string `json:"type"`
}

type Options struct {
	QueueSize    int
	WriteTimeout time.Duration
	PingInterval time.Duration // 0 disables pings
}

// Hub keeps the open channels of every user. Events are delivered at most once:
// when a channel's queue is full the event is dropped.
type Hub struct {
	opts   Options
	logger core.Logger

	mu       sync.RWMutex
	channels map[int64]map[string]*Channel // {userID: {channelID: channel}}
	closed   bool
	wg       sync.WaitGroup
}

var _ notification.Pusher = (*Hub)(nil) // interface compliance check

func NewHub(conf *core.Config, logger core.Logger) *Hub {
	return NewHubWithOptions(Options{
		QueueSize:    conf.Realtime.QueueSize,
		WriteTimeout: conf.Realtime.WriteTimeout,
		PingInterval: conf.Realtime.PingInterval,
	}, logger)
}

func NewHubWithOptions(opts Options, logger core.Logger) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 32
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &Hub{
		opts:     opts,
		logger:   logger,
		channels: make(map[int64]map[string]*Channel),
	}
}

// Open registers conn as a live channel of userID and starts its writer.
func (h *Hub) Open(userID int64, conn Conn) (*Channel, error) {
	ch := &Channel{
		ID:     uuid.New().String(),
		UserID: userID,
		conn:   conn,
		queue:  make(chan interface{}, h.opts.QueueSize),
		done:   make(chan struct{}),
		hub:    h,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil, ErrHubClosed
	}
	if h.channels[userID] == nil {
		h.channels[userID] = make(map[string]*Channel)
	}
	h.channels[userID][ch.ID] = ch
	h.wg.Add(1)
	h.mu.Unlock()

	go ch.writeLoop()
	return ch, nil
}

// Send queues event on every channel of userID. It never blocks.
func (h *Hub) Send(userID int64, event interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.channels[userID] {
		ch.push(event)
	}
}

// Broadcast queues event on every open channel. It never blocks.
func (h *Hub) Broadcast(event interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, chans := range h.channels {
		for _, ch := range chans {
			ch.push(event)
		}
	}
}

// Close unregisters ch and stops its writer. Closing twice is a no-op.
func (h *Hub) Close(ch *Channel) {
	h.mu.Lock()
	if chans, ok := h.channels[ch.UserID]; ok {
		delete(chans, ch.ID)
		if len(chans) == 0 {
			delete(h.channels, ch.UserID)
		}
	}
	h.mu.Unlock()
	ch.stop()
}

// Count returns the number of open channels.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var n int
	for _, chans := range h.channels {
		n += len(chans)
	}
	return n
}

// Shutdown refuses new channels, flushes the queued events and closes every channel.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	chans := make([]*Channel, 0)
	for _, userChans := range h.channels {
		for _, ch := range userChans {
			chans = append(chans, ch)
		}
	}
	h.channels = make(map[int64]map[string]*Channel)
	h.mu.Unlock()

	for _, ch := range chans {
		ch.stop()
	}
	h.wg.Wait()
}

// Channel is one live connection of a user. Only its writer goroutine writes to conn.
type Channel struct {
	ID     string
	UserID int64

	conn     Conn
	queue    chan interface{}
	done     chan struct{}
	stopOnce sync.Once
	hub      *Hub
}

func (ch *Channel) push(event interface{}) {
	select {
	case <-ch.done:
		return
	default:
	}
	select {
	case ch.queue <- event:
	default:
		ch.hub.logger.Warn("realtime: queue full, event dropped", map[string]interface{}{
			"user_id":    ch.UserID,
			"channel_id": ch.ID,
		})
	}
}

func (ch *Channel) stop() {
	ch.stopOnce.Do(func() { close(ch.done) })
}

func (ch *Channel) write(event interface{}) error {
	if err := ch.conn.SetWriteDeadline(time.Now().Add(ch.hub.opts.WriteTimeout)); err != nil {
		return err
	}
	return ch.conn.WriteJSON(event)
}

func (ch *Channel) writeLoop() {
	defer ch.hub.wg.Done()
	defer ch.conn.Close()

	var ping <-chan time.Time
	if ch.hub.opts.PingInterval > 0 {
		ticker := time.NewTicker(ch.hub.opts.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case event := <-ch.queue:
			if err := ch.write(event); err != nil {
				ch.hub.logger.Warn("realtime: writing event", err)
				go ch.hub.Close(ch)
				return
			}
		case <-ping:
			deadline := time.Now().Add(ch.hub.opts.WriteTimeout)
			if err := ch.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				go ch.hub.Close(ch)
				return
			}
		case <-ch.done:
			ch.flush()
			return
		}
	}
}

// flush writes the events still queued, giving up at the first failure.
func (ch *Channel) flush() {
	for {
		select {
		case event := <-ch.queue:
			if err := ch.write(event); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Serve reads client frames until the connection fails or the channel is closed,
// answering {"type":"ping"} with {"type":"pong"}. It blocks, and closes the channel when it returns.
func (ch *Channel) Serve() {
	defer ch.hub.Close(ch)
	for {
		var f frame
		if err := ch.conn.ReadJSON(&f); err != nil {
			return
		}
		if f.Type == "ping" {
			ch.push(notification.Event{Type: "pong"})
		}
	}
}

// Done is closed once the channel is closed.
func (ch *Channel) Done() <-chan struct{} {
	return ch.done
}
