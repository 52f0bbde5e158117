package drive

import (
	"context"
	"fmt"
)

// WithSession opens a session, hands body an Axis on its port and always
// leaves the drive disabled and the session closed, whether body returns,
// fails, panics or ctx is cancelled. Shutdown errors are logged only.
func WithSession[T any](ctx context.Context, transport Transport, config TransportConfig, logger Logger,
	body func(ctx context.Context, axis *Axis) (T, error), opts ...AxisOption) (result T, err error) {
	logger = orNop(logger)

	logger.Info("Opening session on %s, node %d", config.Channel, config.NodeID)
	session, err := transport.Open(ctx, config)
	if err != nil {
		return result, &SessionError{Op: "open", Err: err}
	}

	axis := NewAxis(session.Port(), append([]AxisOption{WithLogger(logger)}, opts...)...)

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()

		axis.Disable(cleanupCtx)
		axis.Close()
		if cerr := session.Close(); cerr != nil {
			logger.Error("Failed to close session: %v", cerr)
		} else {
			logger.Info("Session on %s closed", config.Channel)
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Session body panicked: %v", r)
			err = fmt.Errorf("session body panicked: %v", r)
		}
	}()

	return body(ctx, axis)
}
