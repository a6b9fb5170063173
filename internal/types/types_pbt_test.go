package types

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestMetricKeyProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("keys are unique per (instance, entry)", prop.ForAll(
		func(instance, a, b string) bool {
			if a == b {
				return true
			}
			return MetricKey(instance, a, MetricEntryGrams) != MetricKey(instance, b, MetricEntryGrams)
		},
		gen.Identifier(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("keys start with the instance and end with the field", prop.ForAll(
		func(instance, entry string) bool {
			key := MetricKey(instance, entry, MetricEntryGainPct)
			return strings.HasPrefix(key, instance+"_") && strings.HasSuffix(key, "_"+string(MetricEntryGainPct))
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
