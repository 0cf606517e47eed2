// Package delivery hands asynchronously produced answers to exactly one
// consumer per client: a push subscription when one is open, otherwise a
// FIFO queue drained by polling.
package delivery

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taskpilot/internal/metrics"
)

var (
	// ErrSlowConsumer terminates a subscription whose buffer is full.
	ErrSlowConsumer = errors.New("subscription buffer full")
	// ErrStreamTimeout terminates a subscription open longer than the stream timeout.
	ErrStreamTimeout = errors.New("subscription timed out")
	// ErrShutdown terminates subscriptions when the registry closes.
	ErrShutdown = errors.New("delivery registry closed")
)

// DefaultBuffer is the per-subscription channel capacity when Options.Buffer is zero.
const DefaultBuffer = 16

// Options tunes the registry.
type Options struct {
	// Buffer is the subscription channel capacity on top of replayed messages.
	Buffer int
	// StreamTimeout ends a subscription after this long. Zero disables it.
	StreamTimeout time.Duration
}

type mailbox struct {
	queue []Message
	sub   *Subscription
}

// Registry maps client ids to mailboxes. All state is guarded by one mutex,
// so creation, replacement, publish and drain are atomic with respect to
// each other.
type Registry struct {
	mu     sync.Mutex
	boxes  map[string]*mailbox
	opts   Options
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options, logger *zap.Logger) *Registry {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{boxes: make(map[string]*mailbox), opts: opts, logger: logger}
}

// Publish delivers msg to the client's subscription, or queues it when none
// is open. Blank messages are ignored. A subscription that cannot accept the
// message without blocking is failed and the message is queued instead.
func (r *Registry) Publish(clientID string, msg Message) {
	if msg.IsBlank() {
		metrics.DeliveryTotal.WithLabelValues(metrics.DeliveryDroppedBlank).Inc()
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	box := r.boxLocked(clientID)
	if sub := box.sub; sub != nil {
		select {
		case sub.ch <- msg:
			metrics.DeliveryTotal.WithLabelValues(metrics.DeliveryPushed).Inc()
			return
		default:
		}
		metrics.DeliveryTotal.WithLabelValues(metrics.DeliverySlowConsumer).Inc()
		r.logger.Warn("Slow consumer, falling back to queue", zap.String("client_id", clientID))
		r.terminateLocked(sub, ErrSlowConsumer)
		box = r.boxLocked(clientID)
	}

	box.queue = append(box.queue, msg)
	metrics.DeliveryTotal.WithLabelValues(metrics.DeliveryQueued).Inc()
}

// Subscribe opens the push subscription for clientID. A previous subscription
// for the same client is completed first; messages queued while no one was
// connected are replayed into the new one in FIFO order.
func (r *Registry) Subscribe(clientID string) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	if box, ok := r.boxes[clientID]; ok && box.sub != nil {
		r.terminateLocked(box.sub, nil)
	}

	box := r.boxLocked(clientID)
	sub := &Subscription{
		registry: r,
		clientID: clientID,
		ch:       make(chan Message, r.opts.Buffer+len(box.queue)),
		done:     make(chan struct{}),
	}
	for _, m := range box.queue {
		sub.ch <- m
	}
	box.queue = nil
	box.sub = sub

	if r.opts.StreamTimeout > 0 {
		sub.timer = time.AfterFunc(r.opts.StreamTimeout, func() {
			r.terminate(sub, ErrStreamTimeout)
		})
	}

	metrics.ActiveSubscriptions.Inc()
	return sub
}

// Drain removes and returns the client's queued messages in FIFO order.
// Unknown or empty clients yield an empty slice.
func (r *Registry) Drain(clientID string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	box, ok := r.boxes[clientID]
	if !ok {
		return []Message{}
	}

	out := box.queue
	box.queue = nil
	if box.sub == nil {
		delete(r.boxes, clientID)
	}
	if out == nil {
		return []Message{}
	}
	metrics.DeliveryDrainedTotal.Add(float64(len(out)))
	return out
}

// Close completes every open subscription. Queued messages are kept.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, box := range r.boxes {
		if box.sub != nil {
			r.terminateLocked(box.sub, ErrShutdown)
		}
	}
}

// Len returns the number of clients holding a queue or a subscription.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boxes)
}

func (r *Registry) boxLocked(clientID string) *mailbox {
	box, ok := r.boxes[clientID]
	if !ok {
		box = &mailbox{}
		r.boxes[clientID] = box
	}
	return box
}

func (r *Registry) terminate(s *Subscription, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminateLocked(s, err)
}

// requeue ends s and returns msg to the head of the client's backlog. When s
// already ended, msg goes back ahead of whatever its termination queued.
func (r *Registry) requeue(s *Subscription, msg Message, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !s.closed {
		r.terminateLocked(s, err, msg)
		return
	}

	box := r.boxLocked(s.clientID)
	if sub := box.sub; sub != nil {
		select {
		case sub.ch <- msg:
			return
		default:
		}
		r.terminateLocked(sub, ErrSlowConsumer)
		box = r.boxLocked(s.clientID)
	}
	box.queue = append([]Message{msg}, box.queue...)
}

// terminateLocked ends s exactly once. head and then the messages still
// buffered in its channel go back to the front of the client queue when s is
// the current mapping.
func (r *Registry) terminateLocked(s *Subscription, err error, head ...Message) {
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	if s.timer != nil {
		s.timer.Stop()
	}

	unread := append([]Message(nil), head...)
	for drained := false; !drained; {
		select {
		case m := <-s.ch:
			unread = append(unread, m)
		default:
			drained = true
		}
	}
	close(s.ch)
	close(s.done)
	metrics.ActiveSubscriptions.Dec()

	box, ok := r.boxes[s.clientID]
	if !ok || box.sub != s {
		return
	}
	box.sub = nil
	if len(unread) > 0 {
		box.queue = append(unread, box.queue...)
	}
	if len(box.queue) == 0 {
		delete(r.boxes, s.clientID)
	}
}
