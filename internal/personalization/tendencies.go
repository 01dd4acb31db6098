package personalization

import (
	"time"

	"github.com/fyrsmithlabs/companiond/internal/domain"
	"github.com/fyrsmithlabs/companiond/internal/patterns"
)

// minTendencyConfidence is the confidence below which a decayed tendency is
// dropped.
const minTendencyConfidence = 0.3

// mergeTendencies folds observed patterns into existing tendencies, keyed by
// pattern string. A re-observed tendency has its frequency, sample size and
// confidence updated; confidence becomes the mean over all observations. A
// tendency not observed this time decays by decayRate and is dropped below
// minTendencyConfidence.
func mergeTendencies(existing []domain.BehavioralTendency, observed []patterns.UserPattern, decayRate float64, now time.Time) []domain.BehavioralTendency {
	seen := make(map[string]patterns.UserPattern, len(observed))
	for _, p := range observed {
		if _, dup := seen[p.Pattern]; !dup {
			seen[p.Pattern] = p
		}
	}

	out := make([]domain.BehavioralTendency, 0, len(existing)+len(observed))
	known := make(map[string]bool, len(existing))
	for _, t := range existing {
		known[t.Pattern] = true
		p, ok := seen[t.Pattern]
		if !ok {
			t.Confidence *= 1 - decayRate
			if t.Confidence < minTendencyConfidence {
				continue
			}
			out = append(out, t)
			continue
		}
		t.Confidence = (t.Confidence*float64(t.Frequency) + p.Confidence) / float64(t.Frequency+1)
		t.Frequency++
		t.SampleSize += sampleSize(p)
		t.LastObserved = now
		out = append(out, t)
	}

	for _, p := range observed {
		if known[p.Pattern] {
			continue
		}
		known[p.Pattern] = true
		out = append(out, domain.BehavioralTendency{
			Pattern:       p.Pattern,
			Type:          string(p.Type),
			Frequency:     1,
			Confidence:    p.Confidence,
			SampleSize:    sampleSize(p),
			FirstObserved: now,
			LastObserved:  now,
		})
	}
	return out
}

func sampleSize(p patterns.UserPattern) int {
	if p.Frequency > 0 {
		return p.Frequency
	}
	if n := len(p.Evidence); n > 0 {
		return n
	}
	return 1
}
