package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gold-portfolio/internal/errors"
	"github.com/gold-portfolio/internal/models"
	"github.com/gold-portfolio/internal/storage"
)

func metricMap(metrics []models.Metric) map[string]models.Metric {
	out := make(map[string]models.Metric, len(metrics))
	for _, m := range metrics {
		out[m.Key] = m
	}
	return out
}

func TestInstanceMetrics(t *testing.T) {
	inst := newTestInstance(t, "main", withPrice(2000))
	entry, err := inst.Ledger.Add(storage.AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: 10, PurchasePriceEUR: ptr(600.0)})
	require.NoError(t, err)

	metrics, err := inst.Metrics()
	require.NoError(t, err)
	require.Len(t, metrics, 9)

	byKey := metricMap(metrics)
	assert.Equal(t, models.Metric{Key: "main_price", Value: 2000, Unit: UnitEURPerOunce}, byKey["main_price"])
	assert.Equal(t, 10.0, byKey["main_total_grams"].Value)
	assert.Equal(t, 643.01, byKey["main_current_value"].Value)
	assert.Equal(t, 43.01, byKey["main_total_gain_eur"].Value)
	assert.Equal(t, 7.17, byKey["main_total_gain_percent"].Value)

	prefix := "main_entry_" + entry.ID + "_"
	assert.Equal(t, 10.0, byKey[prefix+"grams"].Value)
	assert.Equal(t, UnitGrams, byKey[prefix+"grams"].Unit)
	assert.Equal(t, 643.01, byKey[prefix+"current_value"].Value)
	assert.Equal(t, 43.01, byKey[prefix+"gain_eur"].Value)
	assert.Equal(t, UnitPercent, byKey[prefix+"gain_percent"].Unit)
}

func TestInstanceValuations_NoSnapshot(t *testing.T) {
	inst := newTestInstance(t, "main", &stubPrices{})

	_, err := inst.Portfolio()
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryProvider))

	_, err = inst.Metrics()
	assert.Error(t, err)
}

func TestInstanceEntryValuation(t *testing.T) {
	inst := newTestInstance(t, "main", withPrice(2000))
	entry, err := inst.Ledger.Add(storage.AddEntryInput{PurchaseDate: "2024-01-01", AmountGrams: 10, PurchasePriceEUR: ptr(600.0)})
	require.NoError(t, err)

	v, err := inst.EntryValuation(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 643.01, v.CurrentValueEUR)

	_, err = inst.EntryValuation("missing")
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNotFound))

	pv, err := inst.Portfolio()
	require.NoError(t, err)
	assert.Equal(t, 1, pv.EntryCount)
}

func TestBuildMetrics_KeysStable(t *testing.T) {
	entries := []models.Entry{{ID: "a", AmountGrams: 1, PurchasePriceEUR: 50}}
	first := BuildMetrics("vault", models.PriceSnapshot{Price: 2000}, entries, 64)
	second := BuildMetrics("vault", models.PriceSnapshot{Price: 2100}, entries, 67)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Key, second[i].Key)
	}
	assert.Equal(t, "vault_entry_a_gain_percent", first[len(first)-1].Key)
}
