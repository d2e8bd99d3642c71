package alert

import "gas-alert-bot/internal/types"

// Evaluate returns the alerts that fire for a fetched fee. It has no side
// effects: the same input always yields the same result.
//
// The current fee is the lowest of the three tiers and an alert fires when
// it is at or below the alert's threshold. A failed fetch never fires
// anything, and alerts that are already notified or belong to another chain
// are ignored.
func Evaluate(alerts []types.Alert, result types.FeeResult) []types.Alert {
	if !result.OK() || !result.Estimate.Valid() {
		return nil
	}

	current := result.Estimate.Current()

	var fire []types.Alert
	for _, a := range alerts {
		if a.Notified || a.Chain != result.Chain {
			continue
		}
		if current <= a.Threshold {
			fire = append(fire, a)
		}
	}
	return fire
}
