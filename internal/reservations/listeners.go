package reservations

import (
	"context"
	"fmt"
	"sync"
)

// ReleaseListener reacts to a reservation giving up its seats. It runs inside
// the releasing transaction; an error rolls the release back.
type ReleaseListener interface {
	OnReservationReleased(ctx context.Context, reservation *SeatReservation, reason DeactivationReason) error
}

// Listeners is the set of release listeners shared by the holder and system services
type Listeners struct {
	mu        sync.RWMutex
	listeners []ReleaseListener
}

func NewListeners() *Listeners {
	return &Listeners{}
}

// Register adds a listener
func (l *Listeners) Register(listener ReleaseListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, listener)
}

// Notify calls every listener in registration order, stopping at the first error
func (l *Listeners) Notify(ctx context.Context, reservation *SeatReservation, reason DeactivationReason) error {
	if l == nil {
		return nil
	}

	l.mu.RLock()
	listeners := append([]ReleaseListener(nil), l.listeners...)
	l.mu.RUnlock()

	for _, listener := range listeners {
		if err := listener.OnReservationReleased(ctx, reservation, reason); err != nil {
			return fmt.Errorf("release listener: %w", err)
		}
	}
	return nil
}
