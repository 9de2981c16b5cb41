package checklist

import (
	"fmt"
	"slices"
	"strings"
)

// Phase is a coarse stage of the relocation timeline.
type Phase string

const (
	PhasePreDeparture       Phase = "pre_departure"
	PhaseArrival            Phase = "arrival"
	PhaseEarlySettlement    Phase = "early_settlement"
	PhaseSettlementComplete Phase = "settlement_complete"

	// PhaseUnknown marks catalog entries whose category has no mapping.
	PhaseUnknown Phase = "unknown"
)

var orderedPhases = []Phase{
	PhasePreDeparture,
	PhaseArrival,
	PhaseEarlySettlement,
	PhaseSettlementComplete,
}

// Phases returns the known phases in timeline order.
func Phases() []Phase {
	out := make([]Phase, len(orderedPhases))
	copy(out, orderedPhases)
	return out
}

// Keys are normalised category spellings, see normalizeCategory.
var categoryPhases = map[string]Phase{
	"pre_departure":       PhasePreDeparture,
	"predeparture":        PhasePreDeparture,
	"before_arrival":      PhasePreDeparture,
	"before_departure":    PhasePreDeparture,
	"arrival":             PhaseArrival,
	"on_arrival":          PhaseArrival,
	"upon_arrival":        PhaseArrival,
	"early_settlement":    PhaseEarlySettlement,
	"first_weeks":         PhaseEarlySettlement,
	"first_month":         PhaseEarlySettlement,
	"settling_in":         PhaseEarlySettlement,
	"settlement_complete": PhaseSettlementComplete,
	"settled":             PhaseSettlementComplete,
	"complete":            PhaseSettlementComplete,
}

func normalizeCategory(category string) string {
	normalized := strings.ToLower(strings.TrimSpace(category))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	return normalized
}

// PhaseForCategory maps a catalog category onto its phase. Categories outside
// the table return ErrUnknownCategory.
func PhaseForCategory(category string) (Phase, error) {
	if phase, ok := categoryPhases[normalizeCategory(category)]; ok {
		return phase, nil
	}
	return PhaseUnknown, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
}

// ParsePhase accepts only the canonical phase names returned by Phases.
// Legacy category spellings are rejected here; use PhaseForCategory for those.
func ParsePhase(value string) (Phase, error) {
	candidate := Phase(strings.ToLower(strings.TrimSpace(value)))
	if slices.Contains(orderedPhases, candidate) {
		return candidate, nil
	}
	return PhaseUnknown, fmt.Errorf("%w: %q", ErrUnknownPhase, value)
}

// CategoriesForPhase lists every normalised category spelling that maps onto
// phase, sorted. Unknown phases yield nil.
func CategoriesForPhase(phase Phase) []string {
	var out []string
	for category, mapped := range categoryPhases {
		if mapped == phase {
			out = append(out, category)
		}
	}
	slices.Sort(out)
	return out
}

// GroupByPhase buckets items by phase, keeping their relative order.
func GroupByPhase(items []MergedItem) map[Phase][]MergedItem {
	grouped := make(map[Phase][]MergedItem)
	for _, item := range items {
		grouped[item.Phase] = append(grouped[item.Phase], item)
	}
	return grouped
}
