// Package hooks delivers settlement side effects (mission progress,
// achievements) to external collaborators. Delivery is best effort: events
// go through a bounded queue, failures are logged and swallowed, and the
// settle path never waits for a notifier.
package hooks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventKind tags a notification.
type EventKind string

const (
	EventStakePlaced  EventKind = "stake_placed"
	EventRoundSettled EventKind = "round_settled"
	EventDepositMade  EventKind = "deposit_made"
)

// Event describes one balance-affecting occurrence. Amounts are minor units.
type Event struct {
	Kind      EventKind
	AccountID int64
	GameTag   string
	Stake     int64
	Payout    int64
}

// Notifier is an external collaborator. It returns the ids it unlocked for
// the account (achievements, missions); the caller only logs them.
type Notifier interface {
	Notify(ctx context.Context, ev Event) ([]string, error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) ([]string, error)

func (f NotifierFunc) Notify(ctx context.Context, ev Event) ([]string, error) {
	return f(ctx, ev)
}

// Dispatcher fans events out to the registered notifiers from a single
// worker goroutine. Enqueue never blocks: when the queue is full the event
// is dropped and logged.
type Dispatcher struct {
	notifiers []Notifier
	queue     chan Event
	timeout   time.Duration

	once sync.Once
	done chan struct{}
}

func NewDispatcher(buffer int, notifiers ...Notifier) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Dispatcher{
		notifiers: notifiers,
		queue:     make(chan Event, buffer),
		timeout:   5 * time.Second,
		done:      make(chan struct{}),
	}
}

// Start launches the worker. Call once.
func (d *Dispatcher) Start() {
	go d.run()
}

// Enqueue hands an event to the worker without blocking the caller.
func (d *Dispatcher) Enqueue(ev Event) {
	select {
	case d.queue <- ev:
	default:
		slog.Warn("hook queue full, event dropped",
			"kind", ev.Kind, "account_id", ev.AccountID)
	}
}

// Drain stops intake, waits for the queued events to be delivered and
// returns. Meant to run from the shutdown queue; ctx bounds the wait.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.once.Do(func() { close(d.queue) })

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	for _, n := range d.notifiers {
		unlocked, err := n.Notify(ctx, ev)
		if err != nil {
			slog.Error("hook notify failed",
				"kind", ev.Kind, "account_id", ev.AccountID, "error", err)
			continue
		}
		if len(unlocked) > 0 {
			slog.Info("hook unlocked ids",
				"account_id", ev.AccountID, "ids", unlocked)
		}
	}
}
