package testutil

import (
	"sync"

	"github.com/trezcool/campus/core/notification"
)

type Push struct {
	UserID    int64 // 0 for broadcasts
	Broadcast bool
	Event     interface{}
}

// Pusher records live pushes.
type Pusher struct {
	mu     sync.Mutex
	pushes []Push
}

var _ notification.Pusher = (*Pusher)(nil) // interface compliance check

func (p *Pusher) Send(userID int64, event interface{}) {
	p.mu.Lock()
	p.pushes = append(p.pushes, Push{UserID: userID, Event: event})
	p.mu.Unlock()
}

func (p *Pusher) Broadcast(event interface{}) {
	p.mu.Lock()
	p.pushes = append(p.pushes, Push{Broadcast: true, Event: event})
	p.mu.Unlock()
}

func (p *Pusher) Pushes() []Push {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Push(nil), p.pushes...)
}

// SentTo returns the user ids events were sent to, in order.
func (p *Pusher) SentTo() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]int64, 0, len(p.pushes))
	for _, push := range p.pushes {
		if !push.Broadcast {
			ids = append(ids, push.UserID)
		}
	}
	return ids
}
