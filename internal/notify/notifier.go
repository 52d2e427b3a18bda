// Package notify delivers monitor events to chat channels. Every event is
// fanned out to all configured senders; one failing sender does not stop the
// others.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elys-network/clmm-monitor/internal/logger"
	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/rs/zerolog"
)

// Dispatcher formats monitor events and sends them to every Sender.
// A Dispatcher without senders is valid and drops everything.
type Dispatcher struct {
	senders []Sender
	logger  zerolog.Logger
}

func NewDispatcher(senders ...Sender) *Dispatcher {
	d := &Dispatcher{
		senders: senders,
		logger:  logger.GetForComponent("notifier"),
	}
	if len(senders) == 0 {
		d.logger.Warn().Msg("Notifications disabled (no channels configured)")
	}
	for _, s := range senders {
		d.logger.Info().Str("sender", s.Name()).Msg("Notification channel enabled")
	}
	return d
}

// Enabled reports whether at least one sender is configured.
func (d *Dispatcher) Enabled() bool {
	return len(d.senders) > 0
}

func (d *Dispatcher) SendStartup(ctx context.Context, wallet string, interval time.Duration, autoRebalance bool) error {
	title, body := StartupMessage(wallet, interval, autoRebalance)
	return d.dispatch(ctx, title, body)
}

func (d *Dispatcher) SendCheckSummary(ctx context.Context, summary types.CycleSummary) error {
	title, body := CheckSummaryMessage(summary)
	return d.dispatch(ctx, title, body)
}

func (d *Dispatcher) SendRebalanceAlert(ctx context.Context, position types.PositionSnapshot, decision types.RebalanceDecision) error {
	title, body := RebalanceAlertMessage(position, decision)
	return d.dispatch(ctx, title, body)
}

func (d *Dispatcher) SendRebalanceExecuted(ctx context.Context, position types.PositionSnapshot, result types.ExecutionResult) error {
	title, body := RebalanceExecutedMessage(position, result)
	return d.dispatch(ctx, title, body)
}

func (d *Dispatcher) SendError(ctx context.Context, err error) error {
	title, body := ErrorMessage(err)
	return d.dispatch(ctx, title, body)
}

func (d *Dispatcher) SendTest(ctx context.Context) error {
	if !d.Enabled() {
		return errors.New("no notification channels configured")
	}
	title, body := TestMessage()
	return d.dispatch(ctx, title, body)
}

func (d *Dispatcher) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range d.senders {
		if err := s.Send(ctx, title, message); err != nil {
			d.logger.Error().Err(err).Str("sender", s.Name()).Str("title", title).Msg("Sender failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		d.logger.Debug().Str("sender", s.Name()).Str("title", title).Msg("Notification sent")
	}
	return errors.Join(errs...)
}
