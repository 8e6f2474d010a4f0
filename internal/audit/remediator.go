// internal/audit/remediator.go
package audit

import (
	"context"

	"github.com/clinovault/sentinel/internal/faults"
	"github.com/clinovault/sentinel/internal/recovery"
	"go.uber.org/zap"
)

// Remediator matches the recovery entry point shared by the diagnostic
// engine and the alert manager.
type Remediator interface {
	ExecuteRecovery(ctx context.Context, perr *faults.ProcessedError) recovery.Result
}

// RecordingRemediator persists every classified error in the sink before
// delegating recovery. Sink failures are logged and never block recovery.
type RecordingRemediator struct {
	next   Remediator
	sink   Sink
	logger *zap.Logger
}

// NewRecordingRemediator wraps next so each error routed through it leaves
// an audit record.
func NewRecordingRemediator(next Remediator, sink Sink, logger *zap.Logger) *RecordingRemediator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordingRemediator{next: next, sink: sink, logger: logger}
}

func (r *RecordingRemediator) ExecuteRecovery(ctx context.Context, perr *faults.ProcessedError) recovery.Result {
	if err := r.sink.RecordError(ctx, perr); err != nil {
		r.logger.Warn("failed to persist processed error",
			zap.String("component", perr.Context.Component),
			zap.Error(err))
	}
	return r.next.ExecuteRecovery(ctx, perr)
}
