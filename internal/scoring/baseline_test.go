package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sia/internal/worldmodel"
)

func TestNewBaselineCalculatorClampsWeeks(t *testing.T) {
	assert.Equal(t, DefaultBaselineWeeks, NewBaselineCalculator(0).weeks)
	assert.Equal(t, MinBaselineWeeks, NewBaselineCalculator(1).weeks)
	assert.Equal(t, MaxBaselineWeeks, NewBaselineCalculator(9).weeks)
	assert.Equal(t, 3, NewBaselineCalculator(3).weeks)
}

func TestCalculateEmptyHistory(t *testing.T) {
	m := worldmodel.Default()
	assert.Nil(t, NewBaselineCalculator(3).Calculate("email", m))
	assert.Nil(t, NewBaselineCalculator(3).Calculate("health", nil))
}

func TestCalculateHealthBaseline(t *testing.T) {
	m := worldmodel.Default()
	now := time.Now()
	m.History["health"] = []worldmodel.HistoryRecord{
		{Date: now.AddDate(0, 0, -3), AvgSleepHours: 7.0},
		{Date: now.AddDate(0, 0, -2), AvgSleepHours: 6.5},
		{Date: now.AddDate(0, 0, -1)}, // missing observation, skipped
		{Date: now, AvgSleepHours: 6.0},
	}

	baseline := NewBaselineCalculator(3).Calculate("health", m)
	require.NotNil(t, baseline)
	assert.Equal(t, "health", baseline.Domain)
	assert.Equal(t, 3, baseline.PeriodWeeks)
	assert.InDelta(t, (7.0+6.5+6.0)/3, baseline.Value, 1e-9)
	assert.Equal(t, 4.0, baseline.Metrics["sample_size"])
}

func TestCalculateWindowsHistory(t *testing.T) {
	m := worldmodel.Default()
	// 30 daily records; a 2-week calculator sees only the last 14.
	for i := 0; i < 30; i++ {
		value := 1.0
		if i >= 16 {
			value = 3.0
		}
		m.History["email"] = append(m.History["email"], worldmodel.HistoryRecord{
			Date:               time.Now().AddDate(0, 0, i-30),
			AvgResponseTimeHrs: value,
		})
	}

	baseline := NewBaselineCalculator(2).Calculate("email", m)
	require.NotNil(t, baseline)
	assert.InDelta(t, 3.0, baseline.Value, 1e-9)
}

func TestCalculateFinancePrefersCategorySpend(t *testing.T) {
	m := worldmodel.Default()
	m.History["finance"] = []worldmodel.HistoryRecord{
		{Date: time.Now(), WeeklyCategorySpend: 50000, DeliverySpending: 12000},
		{Date: time.Now(), DeliverySpending: 30000},
	}

	baseline := NewBaselineCalculator(3).Calculate("finance", m)
	require.NotNil(t, baseline)
	assert.InDelta(t, (50000.0+30000.0)/2, baseline.Value, 1e-9)
}

func TestCalculateUnknownDomain(t *testing.T) {
	m := worldmodel.Default()
	m.History["crypto"] = []worldmodel.HistoryRecord{{Date: time.Now()}}
	assert.Nil(t, NewBaselineCalculator(3).Calculate("crypto", m))
}
