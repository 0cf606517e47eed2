package delivery

import "time"

// Subscription is one push consumer for a client. Messages arrive on
// Messages until the subscription ends, at which point the channel closes.
type Subscription struct {
	registry *Registry
	clientID string
	ch       chan Message
	done     chan struct{}
	timer    *time.Timer

	// guarded by registry.mu
	closed bool
	err    error
}

// ClientID returns the client the subscription belongs to.
func (s *Subscription) ClientID() string { return s.clientID }

// Messages returns the delivery channel. It is closed on termination.
func (s *Subscription) Messages() <-chan Message { return s.ch }

// Done is closed when the subscription ends for any reason.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns why the subscription ended: nil when it was closed or
// superseded, otherwise the failure.
func (s *Subscription) Err() error {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	return s.err
}

// Close completes the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.registry.terminate(s, nil)
}

// Fail ends the subscription after a transport failure.
func (s *Subscription) Fail(err error) {
	s.registry.terminate(s, err)
}

// Requeue ends the subscription after msg was taken from Messages but could
// not be handed to the client. msg is kept at the head of the client's queue.
func (s *Subscription) Requeue(msg Message, err error) {
	s.registry.requeue(s, msg, err)
}
