package usage

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brightline/composer/internal/cost"
	"github.com/brightline/composer/internal/model"
)

func TestLedgerRecord(t *testing.T) {
	st := &mockStore{}
	var captured *model.UsageEvent
	st.On("InsertUsageEvent", mock.Anything, mock.AnythingOfType("*model.UsageEvent")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*model.UsageEvent)
		}).
		Return(nil)

	ledger := NewLedger(st, cost.NewCalculator(cost.DefaultRates()))
	ledger.Record(context.Background(), Entry{
		OrganizationID: "org-1",
		ProjectID:      "proj-1",
		Action:         model.UsageActionGrouping,
		Model:          "claude-sonnet-4-5-20250929",
		TokensIn:       1_000_000,
		TokensOut:      1_000_000,
		Duration:       1500 * time.Millisecond,
		Meta:           map[string]any{"groupCount": 4},
	})

	require.NotNil(t, captured)
	assert.Equal(t, 2_000_000, captured.TokensTotal)
	assert.Equal(t, int64(1500), captured.DurationMs)
	assert.InDelta(t, 18.0, captured.CostUSD, 1e-9)
	assert.Equal(t, 4, captured.Meta["groupCount"])
	st.AssertExpectations(t)
}

func TestLedgerRecordUnknownModelCostsZero(t *testing.T) {
	st := &mockStore{}
	var captured *model.UsageEvent
	st.On("InsertUsageEvent", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*model.UsageEvent)
		}).
		Return(nil)

	ledger := NewLedger(st, cost.NewCalculator(cost.DefaultRates()))
	ledger.Record(context.Background(), Entry{
		OrganizationID: "org-1",
		Action:         model.UsageActionGrouping,
		Model:          "some-future-model",
		TokensIn:       500,
		TokensOut:      200,
	})

	require.NotNil(t, captured)
	assert.Zero(t, captured.CostUSD)
	assert.Equal(t, 700, captured.TokensTotal)
}

func TestLedgerRecordSwallowsStoreError(t *testing.T) {
	st := &mockStore{}
	st.On("InsertUsageEvent", mock.Anything, mock.Anything).
		Return(eris.New("connection refused"))

	ledger := NewLedger(st, cost.NewCalculator(cost.DefaultRates()))
	assert.NotPanics(t, func() {
		ledger.Record(context.Background(), Entry{
			OrganizationID: "org-1",
			Action:         model.UsageActionGrouping,
		})
	})
	st.AssertExpectations(t)
}
