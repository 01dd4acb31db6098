package patterns

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

const (
	minMoodSamples      = 5
	minLowMoodSamples   = 10
	lowMoodThreshold    = 4.0
	moodRangeThreshold  = 5.0
	timeOfDayDiff       = 2.0
	minTimeOfDaySamples = 3
	weekdayDeviation    = 1.5
	minWeekdaySamples   = 3
	morningEndHour      = 12
	eveningStartHour    = 17
)

// MoodPatterns extracts patterns from mood check-ins. Hours and weekdays are
// taken in loc. Fewer than five samples yields no patterns.
func MoodPatterns(moods []domain.Mood, loc *time.Location) []UserPattern {
	if len(moods) < minMoodSamples {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	scores := make([]float64, len(moods))
	var morning, evening []float64
	byDay := make(map[time.Weekday][]float64)
	lo, hi := math.Inf(1), math.Inf(-1)

	for i, m := range moods {
		v := m.Scaled()
		scores[i] = v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)

		local := m.CreatedAt.In(loc)
		switch h := local.Hour(); {
		case h < morningEndHour:
			morning = append(morning, v)
		case h >= eveningStartHour:
			evening = append(evening, v)
		}
		byDay[local.Weekday()] = append(byDay[local.Weekday()], v)
	}

	overall := mean(scores)
	var out []UserPattern

	if overall < lowMoodThreshold && len(scores) >= minLowMoodSamples {
		out = append(out, UserPattern{
			Type:       SourceMood,
			Pattern:    PatternConsistentlyLowMood,
			Confidence: 0.8,
			Evidence:   []string{fmt.Sprintf("average mood %.1f/10 across %d check-ins", overall, len(scores))},
			Insight:    "Mood has been consistently low",
			Frequency:  len(scores),
		})
	}

	if hi-lo > moodRangeThreshold {
		out = append(out, UserPattern{
			Type:       SourceMood,
			Pattern:    PatternHighMoodVariability,
			Confidence: 0.7,
			Evidence:   []string{fmt.Sprintf("mood ranged from %.1f to %.1f", lo, hi)},
			Insight:    "Mood varies widely between check-ins",
		})
	}

	if len(morning) >= minTimeOfDaySamples && len(evening) >= minTimeOfDaySamples {
		am, pm := mean(morning), mean(evening)
		if math.Abs(am-pm) > timeOfDayDiff {
			p := UserPattern{
				Type:       SourceMood,
				Confidence: 0.65,
				Evidence: []string{
					fmt.Sprintf("morning average %.1f over %d check-ins", am, len(morning)),
					fmt.Sprintf("evening average %.1f over %d check-ins", pm, len(evening)),
				},
			}
			if am > pm {
				p.Pattern = PatternMorningMoodBetter
				p.Insight = "Mornings tend to feel better than evenings"
			} else {
				p.Pattern = PatternEveningMoodBetter
				p.Insight = "Evenings tend to feel better than mornings"
			}
			out = append(out, p)
		}
	}

	for d := time.Sunday; d <= time.Saturday; d++ {
		vals := byDay[d]
		if len(vals) < minWeekdaySamples {
			continue
		}
		dm := mean(vals)
		if dm < lowMoodThreshold && math.Abs(dm-overall) > weekdayDeviation {
			day := strings.ToLower(d.String())
			out = append(out, UserPattern{
				Type:       SourceMood,
				Pattern:    PatternLowMoodWeekdayPrefix + day,
				Confidence: 0.6,
				Evidence:   []string{fmt.Sprintf("%s average %.1f vs overall %.1f", d, dm, overall)},
				Insight:    fmt.Sprintf("%ss tend to be harder", d),
				Frequency:  len(vals),
			})
		}
	}

	return out
}

// AverageMood returns the mean scaled score, or nil without samples.
func AverageMood(moods []domain.Mood) *float64 {
	if len(moods) == 0 {
		return nil
	}
	vals := make([]float64, len(moods))
	for i, m := range moods {
		vals[i] = m.Scaled()
	}
	avg := mean(vals)
	return &avg
}
