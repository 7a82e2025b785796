// Package input relays decoded client input events to the host's input
// injection facilities.
package input

import (
	"log/slog"

	"github.com/lmittmann/tint"

	"remotedesk/internal/types"
)

// Dispatcher applies input batches through an Injector.
type Dispatcher struct {
	injector Injector
	log      *slog.Logger
}

// NewDispatcher returns a Dispatcher. A nil logger discards.
func NewDispatcher(inj Injector, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{injector: inj, log: log}
}

// Dispatch applies events in order and returns how many reached the
// injector. Batches from sessions without control access are ignored
// entirely. Mouse buttons other than left, middle and right are dropped.
// Key state in keys is updated whether or not injection succeeds, and an
// injection failure never stops the rest of the batch.
func (d *Dispatcher) Dispatch(access types.AccessLevel, geo Geometry, keys KeySet, events []types.InputEvent) int {
	if !access.CanControl() {
		if len(events) > 0 {
			d.log.Warn("input rejected", "access", access, "events", len(events))
		}
		return 0
	}

	injected := 0
	for _, ev := range events {
		if (ev.Kind == types.MouseDown || ev.Kind == types.MouseUp) && !ev.Button.Valid() {
			d.log.Debug("dropping mouse button", "button", int(ev.Button))
			continue
		}
		if err := d.apply(geo, keys, ev); err != nil {
			d.log.Warn("input injection failed", "event", ev.Kind, tint.Err(err))
		}
		injected++
	}
	return injected
}

func (d *Dispatcher) apply(geo Geometry, keys KeySet, ev types.InputEvent) error {
	var x, y int
	if ev.HasPosition() {
		x, y = geo.Map(ev.X, ev.Y)
	}
	switch ev.Kind {
	case types.MouseMove:
		return d.injector.MouseMove(x, y)
	case types.MouseDown:
		return d.injector.MouseDown(x, y, ev.Button)
	case types.MouseUp:
		return d.injector.MouseUp(x, y, ev.Button)
	case types.MouseScroll:
		return d.injector.MouseScroll(x, y, ev.DeltaY)
	case types.KeyDown:
		keys.Press(ev.Code)
		return d.injector.KeyDown(ev.Code)
	case types.KeyUp:
		keys.Release(ev.Code)
		return d.injector.KeyUp(ev.Code)
	}
	return nil
}
