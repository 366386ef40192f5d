package normalize

import (
	"strings"

	"cronista/internal/config"
	"cronista/internal/store"
)

type TypeFix struct {
	EventID string `json:"event_id"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// NormalizeEventTypes folds event types onto the declared enum: exact
// values are kept, known aliases and case variants are rewritten, anything
// else is left alone for the checker to report.
func NormalizeEventTypes(events *store.Events, h *config.Heuristics) []TypeFix {
	canonical := make(map[string]string, len(h.EventTypes.Values))
	for _, v := range h.EventTypes.Values {
		canonical[strings.ToLower(v)] = v
	}

	var fixes []TypeFix
	for i := range events.Records {
		ev := &events.Records[i]
		lower := strings.ToLower(strings.TrimSpace(ev.Type))
		target := ""
		if v, ok := canonical[lower]; ok {
			target = v
		} else if alias, ok := h.EventTypes.Aliases[lower]; ok {
			if v, ok := canonical[strings.ToLower(alias)]; ok {
				target = v
			}
		}
		if target == "" || target == ev.Type {
			continue
		}
		fixes = append(fixes, TypeFix{EventID: ev.ID, From: ev.Type, To: target})
		ev.Type = target
	}
	return fixes
}
