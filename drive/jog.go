package drive

import (
	"context"
	"fmt"
)

// DefaultJogIncrement is the relative move per jog command, in encoder counts
const DefaultJogIncrement int64 = 5000

// JogDispatcher applies jog commands to an axis one at a time. A command is
// only taken from the source once the previous move has been tracked to an
// end, so requests queue behind the active move.
type JogDispatcher struct {
	Axis      *Axis
	Tracker   *Tracker
	Increment int64
	Sink      DiagnosticsSink
	Logger    Logger
}

// Run consumes commands until ctx is done or the source ends
func (d *JogDispatcher) Run(ctx context.Context, source JogSource) error {
	logger := orNop(d.Logger)
	commands := source.Commands(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-commands:
			if !ok {
				return nil
			}
			if err := d.Dispatch(ctx, cmd); err != nil {
				logger.Error("Jog %s failed: %v", cmd, err)
			}
		}
	}
}

// Dispatch executes a single command and waits for it to complete
func (d *JogDispatcher) Dispatch(ctx context.Context, cmd JogCommand) error {
	logger := orNop(d.Logger)
	increment := d.Increment
	if increment == 0 {
		increment = DefaultJogIncrement
	}

	var err error
	switch cmd {
	case JogPositive:
		err = d.jog(ctx, increment)
	case JogNegative:
		err = d.jog(ctx, -increment)
	case ResetReference:
		err = d.Axis.ResetPositionReference(ctx)
	default:
		return fmt.Errorf("unknown jog command %d", cmd)
	}

	if d.Sink != nil {
		status, serr := d.Axis.Status(ctx)
		if serr != nil {
			logger.Warn("Failed to read axis status: %v", serr)
		} else if serr = d.Sink.ReportState(status); serr != nil {
			logger.Warn("Failed to report axis status: %v", serr)
		}
	}
	return err
}

func (d *JogDispatcher) jog(ctx context.Context, offset int64) error {
	h, err := d.Axis.MoveRelative(ctx, offset)
	if err != nil {
		return err
	}
	report := Follow(ctx, d.Axis, h, d.Tracker)
	if d.Sink != nil {
		if err := d.Sink.ReportMove(report); err != nil {
			orNop(d.Logger).Warn("Failed to report move: %v", err)
		}
	}
	return report.Err
}
