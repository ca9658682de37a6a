package collection

import (
	"time"

	"github.com/vecora/vecora/model"
)

// Observer receives operational telemetry from the collection core.
// Optimizer failures are reported here and through logs only; they never
// propagate to callers.
type Observer interface {
	// OnUpdate is called after each update operation is applied.
	OnUpdate(kind model.OperationKind, duration time.Duration, err error)

	// OnRead is called after each read operation (search, recommend,
	// scroll, retrieve).
	OnRead(op string, duration time.Duration, err error)

	// OnOptimize is called after each optimization task reaches a
	// terminal state. sources is the number of merged segments.
	OnOptimize(duration time.Duration, sources int, err error)
}

// NoopObserver is a no-op implementation of Observer.
type NoopObserver struct{}

// OnUpdate implements Observer.
func (NoopObserver) OnUpdate(model.OperationKind, time.Duration, error) {}

// OnRead implements Observer.
func (NoopObserver) OnRead(string, time.Duration, error) {}

// OnOptimize implements Observer.
func (NoopObserver) OnOptimize(time.Duration, int, error) {}
