package translator

import (
	"context"
	"time"

	"github.com/dimkroon/translate-subs/internal/apperr"
	"github.com/dimkroon/translate-subs/internal/merge"
	"github.com/dimkroon/translate-subs/pkg/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
)

const (
	DefaultConcurrency = 4
	DefaultTimeout     = 30 * time.Second
	DefaultBackoff     = 500 * time.Millisecond
)

// Dispatcher issues one Translate call per unit with bounded concurrency.
type Dispatcher struct {
	client      Client
	concurrency int
	timeout     time.Duration
	backoff     time.Duration
}

type DispatcherOption func(*Dispatcher)

func WithConcurrency(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithBackoff(backoff time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if backoff >= 0 {
			d.backoff = backoff
		}
	}
}

func NewDispatcher(client Client, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		client:      client,
		concurrency: DefaultConcurrency,
		timeout:     DefaultTimeout,
		backoff:     DefaultBackoff,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// TranslateUnits translates every unit and returns results in input order.
// A failed unit never affects the others. When ctx is cancelled, calls not
// yet finished are abandoned and their results carry ctx.Err().
func (d *Dispatcher) TranslateUnits(ctx context.Context, units []merge.Unit, target language.Tag) []Result {
	results := make([]Result, len(units))

	// A plain Group: one unit's failure must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for i, unit := range units {
		results[i].UnitID = unit.ID
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			results[i].Text, results[i].Err = d.translate(ctx, unit, target)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// translate makes at most two attempts, the second after the backoff.
func (d *Dispatcher) translate(ctx context.Context, unit merge.Unit, target language.Tag) (string, error) {
	if unit.Plain == "" {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 {
			log.Warn("Retrying unit %d after error: %v", unit.ID, lastErr)
			timer := time.NewTimer(d.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		text, err := d.client.Translate(callCtx, unit.Plain, target)
		cancel()
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
	}

	return "", apperr.TranslationFailure("unit translation failed", lastErr).
		WithContext("unit", unit.ID).
		WithContext("target", target.String())
}
