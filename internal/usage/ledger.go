// Package usage records cost-attributed events for external generation
// calls. Recording is best-effort: a ledger failure never fails the
// operation that produced the event.
package usage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/brightline/composer/internal/cost"
	"github.com/brightline/composer/internal/model"
	"github.com/brightline/composer/internal/store"
)

// Entry describes one billable call to record.
type Entry struct {
	OrganizationID string
	ProjectID      string
	Action         string
	Model          string
	TokensIn       int
	TokensOut      int
	Duration       time.Duration
	Meta           map[string]any
}

// Ledger persists usage events with cost attribution.
type Ledger struct {
	store store.Store
	calc  *cost.Calculator
}

func NewLedger(st store.Store, calc *cost.Calculator) *Ledger {
	return &Ledger{store: st, calc: calc}
}

// Record writes one usage event. Errors are logged and swallowed so a
// broken ledger cannot take the pipeline down with it.
func (l *Ledger) Record(ctx context.Context, e Entry) {
	ev := &model.UsageEvent{
		OrganizationID: e.OrganizationID,
		ProjectID:      e.ProjectID,
		Action:         e.Action,
		Model:          e.Model,
		TokensIn:       e.TokensIn,
		TokensOut:      e.TokensOut,
		TokensTotal:    e.TokensIn + e.TokensOut,
		DurationMs:     e.Duration.Milliseconds(),
		CostUSD:        l.calc.Claude(e.Model, e.TokensIn, e.TokensOut),
		Meta:           e.Meta,
	}
	if err := l.store.InsertUsageEvent(ctx, ev); err != nil {
		zap.L().Warn("usage event not recorded",
			zap.String("action", e.Action),
			zap.String("organizationId", e.OrganizationID),
			zap.Error(err))
	}
}
