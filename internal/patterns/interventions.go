package patterns

import (
	"fmt"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

const (
	minInterventionRecords = 2
	minPreferredCount      = 2
	minCompletionRecords   = 3
	lowCompletionRate      = 0.3
	highCompletionRate     = 0.7
	goodRating             = 7.0
	minGoodRatings         = 2
)

// InterventionPatterns extracts usage patterns from progress records. It
// needs at least two records.
//
// The preferred type is the plurality type with at least two records; on a
// tie the type seen first in records wins. Its evidence has one line per
// record of that type.
func InterventionPatterns(records []domain.InterventionProgress) []UserPattern {
	if len(records) < minInterventionRecords {
		return nil
	}

	var order []domain.InterventionType
	byType := make(map[domain.InterventionType][]domain.InterventionProgress)
	completed, good := 0, 0
	for _, r := range records {
		if _, seen := byType[r.InterventionType]; !seen {
			order = append(order, r.InterventionType)
		}
		byType[r.InterventionType] = append(byType[r.InterventionType], r)
		if r.IsCompleted() {
			completed++
		}
		if rating, ok := r.EffectiveRating(); ok && rating >= goodRating {
			good++
		}
	}

	var out []UserPattern

	var preferred domain.InterventionType
	for _, t := range order {
		if len(byType[t]) > len(byType[preferred]) {
			preferred = t
		}
	}
	if instances := byType[preferred]; len(instances) >= minPreferredCount {
		p := UserPattern{
			Type:       SourceIntervention,
			Pattern:    PatternPreferredTypePrefix + string(preferred) + "_interventions",
			Confidence: 0.7,
			Insight:    fmt.Sprintf("Gravitates toward %s interventions", preferred),
			Frequency:  len(instances),
		}
		for _, r := range instances {
			p.Evidence = append(p.Evidence, fmt.Sprintf("%s (%s) started %s", interventionLabel(r), r.Status, r.StartedAt.Format("2006-01-02")))
		}
		out = append(out, p)
	}

	if n := len(records); n >= minCompletionRecords {
		rate := float64(completed) / float64(n)
		evidence := []string{fmt.Sprintf("completed %d of %d interventions (%.0f%%)", completed, n, rate*100)}
		switch {
		case rate < lowCompletionRate:
			out = append(out, UserPattern{
				Type:       SourceIntervention,
				Pattern:    PatternLowCompletion,
				Confidence: 0.7,
				Evidence:   evidence,
				Insight:    "Often stops interventions before finishing",
			})
		case rate > highCompletionRate:
			out = append(out, UserPattern{
				Type:       SourceIntervention,
				Pattern:    PatternHighCompletion,
				Confidence: 0.8,
				Evidence:   evidence,
				Insight:    "Usually finishes interventions",
			})
		}
	}

	if good >= minGoodRatings {
		out = append(out, UserPattern{
			Type:       SourceIntervention,
			Pattern:    PatternRespondsWell,
			Confidence: 0.75,
			Evidence:   []string{fmt.Sprintf("%d interventions rated %.0f or higher", good, goodRating)},
			Insight:    "Finds structured interventions helpful",
			Frequency:  good,
		})
	}

	return out
}

func interventionLabel(r domain.InterventionProgress) string {
	if r.InterventionName != "" {
		return r.InterventionName
	}
	return r.InterventionID
}
