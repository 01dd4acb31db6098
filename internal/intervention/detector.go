package intervention

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

// DetectedNeed is the need the detector settled on.
type DetectedNeed struct {
	Type       domain.InterventionType `json:"type"`
	Severity   domain.Severity         `json:"severity"`
	Confidence float64                 `json:"confidence"`
	Indicators []string                `json:"indicators"`
	Timeframe  string                  `json:"timeframe,omitempty"`
}

// MoodContext carries mood data the detector may use.
type MoodContext struct {
	// SevenDayAverage is the mean scaled (0-10) mood of the last seven days,
	// nil without samples.
	SevenDayAverage *float64
}

const (
	moderateConfidence = 0.7
	mildConfidence     = 0.5
	moodOverrideLimit  = 4.0
)

// explicitConfidence is the confidence of an explicit match per type.
var explicitConfidence = map[domain.InterventionType]float64{
	domain.InterventionSleep:      0.85,
	domain.InterventionDepression: 0.9,
	domain.InterventionAnxiety:    0.9,
	domain.InterventionStress:     0.85,
	domain.InterventionBreakup:    0.85,
	domain.InterventionGrief:      0.9,
	domain.InterventionFocus:      0.85,
}

var timeframePattern = regexp.MustCompile(`\b(tonight|today|days|weeks|months|years)\b`)

// Detector turns classifier signals and mood context into a single need.
type Detector struct {
	classifier Classifier
}

// NewDetector creates a Detector. A nil classifier uses the keyword lists.
func NewDetector(c Classifier) *Detector {
	if c == nil {
		c = NewKeywordClassifier()
	}
	return &Detector{classifier: c}
}

// Detect classifies message together with recent messages and returns the
// most confident need, or nil when nothing matched.
//
// Candidates are evaluated in domain.InterventionTypes order followed by the
// mood override, and a later candidate only wins with a strictly higher
// confidence. Ties therefore go to the earlier type.
func (d *Detector) Detect(message string, recent []string, mood MoodContext) *DetectedNeed {
	text := strings.Join(append([]string{message}, recent...), "\n")

	var best *DetectedNeed
	consider := func(n *DetectedNeed) {
		if best == nil || n.Confidence > best.Confidence {
			best = n
		}
	}

	depressionMatched := false
	for _, s := range d.classifier.Classify(text) {
		n := needFromSignal(s)
		if n == nil {
			continue
		}
		if s.Type == domain.InterventionDepression {
			depressionMatched = true
		}
		consider(n)
	}

	if avg := mood.SevenDayAverage; avg != nil && *avg < moodOverrideLimit && !depressionMatched {
		consider(&DetectedNeed{
			Type:       domain.InterventionDepression,
			Severity:   domain.SeverityModerate,
			Confidence: moderateConfidence,
			Indicators: []string{fmt.Sprintf("7-day mood average %.1f/10", *avg)},
		})
	}

	if best != nil {
		best.Timeframe = timeframePattern.FindString(normalize(message))
	}
	return best
}

func needFromSignal(s Signal) *DetectedNeed {
	n := &DetectedNeed{Type: s.Type}
	n.Indicators = append(append(n.Indicators, s.Explicit...), s.Moderate...)
	switch {
	case len(s.Explicit) > 0:
		n.Severity = domain.SeveritySevere
		n.Confidence = explicitConfidence[s.Type]
	case len(s.Moderate) >= 2:
		n.Severity = domain.SeverityModerate
		n.Confidence = moderateConfidence
	case len(s.Moderate) == 1:
		n.Severity = domain.SeverityMild
		n.Confidence = mildConfidence
	default:
		return nil
	}
	return n
}
