package services

import (
	"fmt"

	"github.com/safetrace/safetrace/internal/database"
)

const (
	defaultResponsibility = "To be assigned"
	defaultTimeline       = "To be determined"
	defaultPriority       = "medium"
)

// NormalizeCorrectiveAction converts a raw corrective action entry into a
// structured object. The analysis model sometimes returns bare strings
// instead of objects; those get placeholder ownership fields so the report
// renders uniformly. Object entries keep their fields and only missing
// ones are filled.
func NormalizeCorrectiveAction(raw interface{}) map[string]interface{} {
	switch v := raw.(type) {
	case string:
		return map[string]interface{}{
			"action":         v,
			"responsibility": defaultResponsibility,
			"timeline":       defaultTimeline,
			"priority":       defaultPriority,
		}
	case map[string]interface{}:
		if _, ok := v["responsibility"]; !ok {
			v["responsibility"] = defaultResponsibility
		}
		if _, ok := v["timeline"]; !ok {
			v["timeline"] = defaultTimeline
		}
		if _, ok := v["priority"]; !ok {
			v["priority"] = defaultPriority
		}
		return v
	default:
		return map[string]interface{}{
			"action":         fmt.Sprint(raw),
			"responsibility": defaultResponsibility,
			"timeline":       defaultTimeline,
			"priority":       defaultPriority,
		}
	}
}

// NormalizePreventiveAction converts a raw preventive action entry into a
// structured object. Bare strings are tagged as preventive; objects pass
// through unchanged.
func NormalizePreventiveAction(raw interface{}) map[string]interface{} {
	switch v := raw.(type) {
	case string:
		return map[string]interface{}{
			"action": v,
			"type":   "preventive",
		}
	case map[string]interface{}:
		return v
	default:
		return map[string]interface{}{
			"action": fmt.Sprint(raw),
			"type":   "preventive",
		}
	}
}

// NormalizeCorrectiveActions applies NormalizeCorrectiveAction across a list
func NormalizeCorrectiveActions(raw database.RawList) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(raw))
	for _, r := range raw {
		out = append(out, NormalizeCorrectiveAction(r))
	}
	return out
}

// NormalizePreventiveActions applies NormalizePreventiveAction across a list
func NormalizePreventiveActions(raw database.RawList) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(raw))
	for _, r := range raw {
		out = append(out, NormalizePreventiveAction(r))
	}
	return out
}
