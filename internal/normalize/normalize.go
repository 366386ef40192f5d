// Package normalize canonicalizes roll records produced by heterogeneous
// extraction passes. After a run, every surviving roll carries a numeric
// canonical band and, when present, a rolled value inside it.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"cronista/internal/config"
	"cronista/internal/store"
)

// EstimatedMarker is appended to the evaluation text whenever a rolled
// value was reconstructed rather than recorded, so downstream consumers can
// tell the two apart.
const EstimatedMarker = "[estimated roll value]"

type Change struct {
	RollID string `json:"roll_id"`
	Field  string `json:"field"`
	From   string `json:"from"`
	To     string `json:"to"`
}

type Result struct {
	Changes []Change `json:"changes"`
	Dropped []string `json:"dropped"`
	Errors  []error  `json:"-"`
}

type Normalizer struct {
	h *config.Heuristics
}

func New(h *config.Heuristics) *Normalizer {
	return &Normalizer{h: h}
}

var numericBand = regexp.MustCompile(`^\s*(\d{1,3})\s*-\s*(\d{1,3})\s*$`)

// Run normalizes the rolls collection in place and returns what changed.
// Records that cannot be mapped to any band and carry no rolled value are
// not genuine stochastic draws; they are removed and the collection's roll
// counter is updated to match. A failure on one record never aborts the
// rest of the batch.
func (n *Normalizer) Run(rolls *store.Rolls) *Result {
	result := &Result{}
	kept := rolls.Records[:0]

	for i := range rolls.Records {
		roll := rolls.Records[i]
		keep, err := n.normalizeOne(&roll, result)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("roll %s: %w", roll.ID, err))
			kept = append(kept, roll)
			continue
		}
		if !keep {
			result.Dropped = append(result.Dropped, roll.ID)
			continue
		}
		kept = append(kept, roll)
	}

	rolls.Records = kept
	if rolls.Meta != nil {
		rolls.Meta.TotalRolls = len(kept)
	}
	return result
}

func (n *Normalizer) normalizeOne(roll *store.Roll, result *Result) (keep bool, err error) {
	band, numeric := n.parseNumericBand(roll.OutcomeRange)

	switch {
	case numeric && band != nil:
		// Canonical band already; only the rolled value may need work.
	case roll.Rolled != nil:
		// The recorded numeric value is ground truth; derive the band from
		// it rather than from whatever label or range the extractor wrote.
		b, ok := n.h.BandForValue(*roll.Rolled)
		if !ok {
			return false, fmt.Errorf("rolled value %d outside 1-100", *roll.Rolled)
		}
		n.setRange(roll, b, result)
		band = b
	case numeric:
		// Numeric but off-grid (e.g. "60-80"): snap to the canonical band
		// enclosing the written range's midpoint.
		m := numericBand.FindStringSubmatch(roll.OutcomeRange)
		lo, _ := strconv.Atoi(m[1])
		hi, _ := strconv.Atoi(m[2])
		b, ok := n.h.BandForValue((lo + hi) / 2)
		if !ok {
			return false, nil
		}
		n.setRange(roll, b, result)
		band = b
	default:
		// No rolled value: the label is all there is.
		b, ok := n.h.BandForLabel(roll.OutcomeRange)
		if !ok {
			return false, nil
		}
		n.setRange(roll, b, result)
		band = b
	}

	if roll.Rolled == nil {
		mid := band.Midpoint()
		roll.Rolled = &mid
		result.Changes = append(result.Changes, Change{
			RollID: roll.ID,
			Field:  "rolled",
			From:   "",
			To:     strconv.Itoa(mid),
		})
		n.markEstimated(roll, result)
	} else if *roll.Rolled < band.Min || *roll.Rolled > band.Max {
		// Numeric-but-wrong band: the rolled value wins.
		b, ok := n.h.BandForValue(*roll.Rolled)
		if !ok {
			return false, fmt.Errorf("rolled value %d outside 1-100", *roll.Rolled)
		}
		n.setRange(roll, b, result)
	}

	return true, nil
}

// parseNumericBand reports whether the range is numeric, and returns the
// canonical band when it matches one exactly.
func (n *Normalizer) parseNumericBand(s string) (*config.Band, bool) {
	m := numericBand.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	lo, _ := strconv.Atoi(m[1])
	hi, _ := strconv.Atoi(m[2])
	for i := range n.h.Bands {
		if n.h.Bands[i].Min == lo && n.h.Bands[i].Max == hi {
			return &n.h.Bands[i], true
		}
	}
	return nil, true
}

func (n *Normalizer) setRange(roll *store.Roll, band *config.Band, result *Result) {
	to := band.String()
	if roll.OutcomeRange == to {
		return
	}
	result.Changes = append(result.Changes, Change{
		RollID: roll.ID,
		Field:  "outcome_range",
		From:   roll.OutcomeRange,
		To:     to,
	})
	roll.OutcomeRange = to
}

func (n *Normalizer) markEstimated(roll *store.Roll, result *Result) {
	if strings.HasSuffix(strings.TrimSpace(roll.Evaluation), EstimatedMarker) {
		return
	}
	from := roll.Evaluation
	if roll.Evaluation == "" {
		roll.Evaluation = EstimatedMarker
	} else {
		roll.Evaluation = strings.TrimRight(roll.Evaluation, " ") + " " + EstimatedMarker
	}
	result.Changes = append(result.Changes, Change{
		RollID: roll.ID,
		Field:  "evaluation",
		From:   from,
		To:     roll.Evaluation,
	})
}

// Log writes one entry per applied change and drop.
func Log(result *Result, logger *zap.Logger) {
	for _, ch := range result.Changes {
		logger.Info("roll normalized",
			zap.String("roll", ch.RollID),
			zap.String("field", ch.Field),
			zap.String("from", ch.From),
			zap.String("to", ch.To),
		)
	}
	for _, id := range result.Dropped {
		logger.Info("roll dropped", zap.String("roll", id), zap.String("reason", "not a genuine stochastic draw"))
	}
}
