package service

import (
	apperrors "github.com/gold-portfolio/internal/errors"
	"github.com/gold-portfolio/internal/models"
	"github.com/gold-portfolio/internal/types"
)

// Units attached to metrics
const (
	UnitEURPerOunce = "EUR/oz"
	UnitEUR         = "EUR"
	UnitGrams       = "g"
	UnitPercent     = "%"
)

func (inst *Instance) currentPerGram() (models.PriceSnapshot, float64, error) {
	snap, ok := inst.Prices.Current()
	if !ok {
		return models.PriceSnapshot{}, 0, apperrors.NewPriceUnavailableError("no gold price has been fetched yet")
	}
	return snap, PricePerGram(snap.Price), nil
}

// Portfolio values the instance's ledger at the current snapshot
func (inst *Instance) Portfolio() (models.PortfolioValuation, error) {
	_, perGram, err := inst.currentPerGram()
	if err != nil {
		return models.PortfolioValuation{}, err
	}
	return PortfolioValue(inst.Ledger.List(), perGram), nil
}

// EntryValuation values one ledger entry at the current snapshot
func (inst *Instance) EntryValuation(entryID string) (models.EntryValuation, error) {
	entry, ok := inst.Ledger.Get(entryID)
	if !ok {
		return models.EntryValuation{}, apperrors.NewNotFoundError("portfolio entry", entryID)
	}
	_, perGram, err := inst.currentPerGram()
	if err != nil {
		return models.EntryValuation{}, err
	}
	return EntryValue(entry, perGram), nil
}

// Metrics flattens the snapshot, portfolio totals and per-entry values into
// keyed values. Keys are stable across restarts for a given entry id.
func (inst *Instance) Metrics() ([]models.Metric, error) {
	snap, perGram, err := inst.currentPerGram()
	if err != nil {
		return nil, err
	}
	return BuildMetrics(inst.ID, snap, inst.Ledger.List(), perGram), nil
}

// BuildMetrics is the pure form of Instance.Metrics
func BuildMetrics(instanceID string, snap models.PriceSnapshot, entries []models.Entry, perGram float64) []models.Metric {
	pv := PortfolioValue(entries, perGram)

	metrics := make([]models.Metric, 0, 5+4*len(entries))
	add := func(entryID string, field types.MetricField, value float64, unit string) {
		metrics = append(metrics, models.Metric{
			Key:   types.MetricKey(instanceID, entryID, field),
			Value: value,
			Unit:  unit,
		})
	}

	add("", types.MetricPrice, snap.Price, UnitEURPerOunce)
	add("", types.MetricTotalGrams, pv.TotalGrams, UnitGrams)
	add("", types.MetricCurrentValue, pv.CurrentValueEUR, UnitEUR)
	add("", types.MetricTotalGainEUR, pv.GainEUR, UnitEUR)
	add("", types.MetricTotalGainPct, pv.GainPercent, UnitPercent)

	for _, e := range entries {
		v := EntryValue(e, perGram)
		add(e.ID, types.MetricEntryGrams, e.AmountGrams, UnitGrams)
		add(e.ID, types.MetricEntryValue, v.CurrentValueEUR, UnitEUR)
		add(e.ID, types.MetricEntryGainEUR, v.GainEUR, UnitEUR)
		add(e.ID, types.MetricEntryGainPct, v.GainPercent, UnitPercent)
	}
	return metrics
}
