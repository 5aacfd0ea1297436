package core

import (
	"context"
	"sync"
)

type (
	// Transactor runs fn inside a single Record Store transaction.
	// The transaction travels in the context passed to fn; repositories pick it up from there.
	// Any error returned by fn rolls back every write made through that context.
	Transactor interface {
		InTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	DBOrdering struct {
		Field     string
		Ascending bool
	}

	Page struct {
		Limit  int `query:"limit"`
		Offset int `query:"offset"`
	}
)

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// Clean bounds the page limit and offset.
func (p *Page) Clean() {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	} else if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// TxHooks collects callbacks to run once the surrounding transaction has committed.
type TxHooks struct {
	mu    sync.Mutex
	hooks []func()
}

type txHooksKey struct{}

// WithTxHooks attaches a fresh TxHooks to ctx.
// Transactor implementations call it when opening a transaction and call Run after commit.
func WithTxHooks(ctx context.Context) (context.Context, *TxHooks) {
	h := new(TxHooks)
	return context.WithValue(ctx, txHooksKey{}, h), h
}

func (h *TxHooks) add(fn func()) {
	h.mu.Lock()
	h.hooks = append(h.hooks, fn)
	h.mu.Unlock()
}

// Run executes the collected callbacks in registration order.
func (h *TxHooks) Run() {
	h.mu.Lock()
	hooks := h.hooks
	h.hooks = nil
	h.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// AfterCommit defers fn until the transaction carried by ctx commits; fn is dropped on rollback.
// Outside of a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if h, ok := ctx.Value(txHooksKey{}).(*TxHooks); ok {
		h.add(fn)
		return
	}
	fn()
}
