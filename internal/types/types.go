// Package types provides common type definitions for the gold portfolio tracker.
package types

import (
	"strings"
)

// AuthMode selects how the price source credential is delivered
type AuthMode string

const (
	// AuthModeHeader sends the credential in the x-access-token header
	AuthModeHeader AuthMode = "header"
	// AuthModeQuery sends the credential as the api_key query parameter
	AuthModeQuery AuthMode = "query"
)

// Valid reports whether the auth mode is one of the supported variants
func (m AuthMode) Valid() bool {
	return m == AuthModeHeader || m == AuthModeQuery
}

// RefreshState represents the lifecycle state of a price refresher
type RefreshState string

const (
	// RefreshUninitialized means no fetch has completed yet
	RefreshUninitialized RefreshState = "uninitialized"
	// RefreshIdle means the refresher is waiting for the next tick
	RefreshIdle RefreshState = "idle"
	// RefreshFetching means a fetch is in flight
	RefreshFetching RefreshState = "fetching"
)

// MetricField names a derived metric exposed to the presentation layer
type MetricField string

const (
	MetricPrice          MetricField = "price"
	MetricTotalGrams     MetricField = "total_grams"
	MetricCurrentValue   MetricField = "current_value"
	MetricTotalGainEUR   MetricField = "total_gain_eur"
	MetricTotalGainPct   MetricField = "total_gain_percent"
	MetricEntryGrams     MetricField = "grams"
	MetricEntryValue     MetricField = "current_value"
	MetricEntryGainEUR   MetricField = "gain_eur"
	MetricEntryGainPct   MetricField = "gain_percent"
	metricKeySeparator               = "_"
	metricKeyEntryMarker             = "entry"
)

// MetricKey derives the stable composite key for a metric.
// Portfolio-level metrics pass an empty entryID.
//
//	MetricKey("main", "", MetricPrice)        -> "main_price"
//	MetricKey("main", "abc", MetricEntryGrams) -> "main_entry_abc_grams"
func MetricKey(instanceID, entryID string, field MetricField) string {
	parts := []string{instanceID}
	if entryID != "" {
		parts = append(parts, metricKeyEntryMarker, entryID)
	}
	parts = append(parts, string(field))
	return strings.Join(parts, metricKeySeparator)
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
