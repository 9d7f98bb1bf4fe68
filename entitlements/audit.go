package entitlements

import (
	"context"

	"github.com/sirupsen/logrus"
)

// DecisionLogger records access decisions to an external sink.
// Implementations should be non-blocking and best-effort.
type DecisionLogger interface {
	LogDecision(ctx context.Context, identity string, d Decision)
}

// LogrusDecisionLogger emits one structured line per decision.
type LogrusDecisionLogger struct {
	Log *logrus.Logger
}

func (l LogrusDecisionLogger) LogDecision(_ context.Context, identity string, d Decision) {
	if l.Log == nil {
		return
	}
	l.Log.WithFields(logrus.Fields{
		"identity":       identity,
		"classification": d.Classification,
		"request_count":  d.Record.RequestCount,
	}).Info("access decision")
}
