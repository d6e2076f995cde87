package triage

import (
	"context"

	"github.com/rs/zerolog"
)

// FallMonitor exposes the fall-detection flow: a suspected fall opens a
// longer confirmation window, and the patient either dismisses it or
// asks for help. Silence escalates.
type FallMonitor struct {
	flow *Flow
	log  zerolog.Logger
}

// NewFallMonitor creates a monitor on top of the shared flow.
func NewFallMonitor(flow *Flow, log zerolog.Logger) *FallMonitor {
	return &FallMonitor{
		flow: flow,
		log:  log.With().Str("component", "fall").Logger(),
	}
}

// OnFall reports a suspected fall from the motion sensor layer.
func (m *FallMonitor) OnFall(ctx context.Context) error {
	m.log.Warn().Msg("Possible fall detected")
	_, err := m.flow.HandleFall(ctx)
	return err
}

// ImOkay dismisses the fall prompt.
func (m *FallMonitor) ImOkay(ctx context.Context) error {
	return m.flow.Dismiss(ctx)
}

// NeedHelp confirms the fall prompt and escalates.
func (m *FallMonitor) NeedHelp(ctx context.Context) error {
	return m.flow.Confirm(ctx)
}
