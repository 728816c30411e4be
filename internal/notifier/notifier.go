// Package notifier tracks two boolean conditions and reports edge
// transitions of their logical AND to a single subscriber.
package notifier

import "sync"

// Listener receives combined-state transitions.
type Listener interface {
	OnActivated()
	OnDeactivated()
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	n             *Notifier
	onActivated   func()
	onDeactivated func()
}

// Unsubscribe removes the subscription if it is still the active one.
// Calling it more than once, or after a newer Subscribe, does nothing.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.n == nil {
		return
	}
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	if s.n.sub == s {
		s.n.sub = nil
	}
}

// Notifier combines an "enabled" and a "connected" condition.
//
// Callbacks run synchronously on the goroutine calling SetEnabled or
// SetConnected, with the update lock held. They may call Enabled,
// Connected and Combined but must not call any other Notifier method.
type Notifier struct {
	// mu serializes updates, edge detection, callback delivery and
	// subscription changes.
	mu       sync.Mutex
	sub      *Subscription
	previous bool

	stateMu   sync.RWMutex
	enabled   bool
	connected bool
}

// New returns a Notifier with both conditions false and no subscriber.
func New() *Notifier {
	return &Notifier{}
}

// Subscribe registers the callbacks, replacing any existing subscription.
// Either callback may be nil. The current state is not reported.
func (n *Notifier) Subscribe(onActivated, onDeactivated func()) *Subscription {
	s := &Subscription{n: n, onActivated: onActivated, onDeactivated: onDeactivated}
	n.mu.Lock()
	n.sub = s
	n.mu.Unlock()
	return s
}

// SubscribeListener is Subscribe for a Listener value.
func (n *Notifier) SubscribeListener(l Listener) *Subscription {
	if l == nil {
		return n.Subscribe(nil, nil)
	}
	return n.Subscribe(l.OnActivated, l.OnDeactivated)
}

// Unsubscribe clears the active subscription, if any.
func (n *Notifier) Unsubscribe() {
	n.mu.Lock()
	n.sub = nil
	n.mu.Unlock()
}

// SetEnabled records the enabled condition.
func (n *Notifier) SetEnabled(v bool) {
	n.update(func() { n.enabled = v })
}

// SetConnected records the connected condition.
func (n *Notifier) SetConnected(v bool) {
	n.update(func() { n.connected = v })
}

// Enabled returns the last value passed to SetEnabled.
func (n *Notifier) Enabled() bool {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return n.enabled
}

// Connected returns the last value passed to SetConnected.
func (n *Notifier) Connected() bool {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return n.connected
}

// Combined reports enabled AND connected.
func (n *Notifier) Combined() bool {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return n.enabled && n.connected
}

func (n *Notifier) update(set func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.stateMu.Lock()
	set()
	combined := n.enabled && n.connected
	n.stateMu.Unlock()

	if combined == n.previous {
		return
	}
	n.previous = combined

	if n.sub == nil {
		return
	}
	if combined {
		if n.sub.onActivated != nil {
			n.sub.onActivated()
		}
	} else if n.sub.onDeactivated != nil {
		n.sub.onDeactivated()
	}
}
