package bus

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds a Request when the caller's context carries no
// deadline of its own.
const DefaultTimeout = 30 * time.Second

const defaultMailboxBuffer = 64

// Handler consumes one delivery and produces at most one reply.
type Handler func(ctx context.Context, body any) (any, error)

type result struct {
	body any
	err  error
}

type delivery struct {
	ctx   context.Context
	body  any
	reply chan result
}

type mailbox struct {
	addr       string
	deliveries chan delivery
}

// Registry is an in-process mailbox registry. Each registered address is
// consumed by exactly one goroutine, so deliveries to a mailbox are handled
// in FIFO order. Senders address a mailbox by name and receive at most one
// reply.
type Registry struct {
	mu        sync.RWMutex
	mailboxes map[string]*mailbox
	log       *zap.Logger

	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		mailboxes: make(map[string]*mailbox),
		log:       log,
		closed:    make(chan struct{}),
	}
}

// Register binds a handler to an address and starts its consumer goroutine.
// Registering the same address twice is a programming error.
func (r *Registry) Register(addr string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.mailboxes[addr]; exists {
		return fmt.Errorf("mailbox %q already registered", addr)
	}

	m := &mailbox{
		addr:       addr,
		deliveries: make(chan delivery, defaultMailboxBuffer),
	}
	r.mailboxes[addr] = m

	r.wg.Add(1)
	go r.consume(m, h)
	return nil
}

// Request sends body to the named mailbox and waits for the single reply.
// On context expiry the caller receives a KindTimeout failure; the handler's
// work is not cancelled but its reply is dropped.
func (r *Registry) Request(ctx context.Context, addr string, body any) (any, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	r.mu.RLock()
	m, ok := r.mailboxes[addr]
	r.mu.RUnlock()
	if !ok {
		return nil, NewFailure(KindInternal, "no consumer registered at %q", addr)
	}

	d := delivery{ctx: ctx, body: body, reply: make(chan result, 1)}

	select {
	case m.deliveries <- d:
	case <-ctx.Done():
		return nil, NewFailure(KindTimeout, "delivery to %q timed out", addr)
	case <-r.closed:
		return nil, NewFailure(KindInternal, "bus closed")
	}

	select {
	case res := <-d.reply:
		return res.body, res.err
	case <-ctx.Done():
		return nil, NewFailure(KindTimeout, "no reply from %q within deadline", addr)
	case <-r.closed:
		return nil, NewFailure(KindInternal, "bus closed")
	}
}

// Close stops all mailbox consumers after draining queued deliveries. The
// delivery channels are never closed, so a sender racing Close gets the
// "bus closed" failure rather than a send on a closed channel.
func (r *Registry) Close() {
	r.once.Do(func() {
		close(r.closed)
	})
	r.wg.Wait()
	r.mu.Lock()
	r.mailboxes = make(map[string]*mailbox)
	r.mu.Unlock()
}

func (r *Registry) consume(m *mailbox, h Handler) {
	defer r.wg.Done()
	for {
		select {
		case d := <-m.deliveries:
			body, err := r.invoke(m.addr, h, d)
			d.reply <- result{body: body, err: err}
		case <-r.closed:
			r.drain(m, h)
			return
		}
	}
}

// drain serves deliveries that were already queued when Close was called so
// their senders still get a reply.
func (r *Registry) drain(m *mailbox, h Handler) {
	for {
		select {
		case d := <-m.deliveries:
			body, err := r.invoke(m.addr, h, d)
			d.reply <- result{body: body, err: err}
		default:
			return
		}
	}
}

// invoke runs the handler with panic recovery so one misbehaving handler
// cannot take down another mailbox.
func (r *Registry) invoke(addr string, h Handler, d delivery) (body any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("mailbox handler panicked",
				zap.String("address", addr),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
			body, err = nil, NewFailure(KindInternal, "handler panic at %q: %v", addr, rec)
		}
	}()
	return h(d.ctx, d.body)
}
