package patterns

import (
	"fmt"

	"github.com/fyrsmithlabs/companiond/internal/domain"
)

const minMemoryRecords = 5

// memoryBucket maps a memory type to the aggregate pattern it produces.
type memoryBucket struct {
	memType    domain.MemoryType
	pattern    string
	min        int
	confidence float64
	insight    string
}

var memoryBuckets = []memoryBucket{
	{domain.MemoryEmotionalTheme, PatternEmotionalThemes, 3, 0.75, "Some emotional themes keep returning"},
	{domain.MemoryTrigger, PatternKnownTriggers, 2, 0.7, "Several triggers are known"},
	{domain.MemoryCopingPattern, PatternCopingPatterns, 2, 0.7, "Has coping strategies that work"},
}

// MemoryPatterns emits one aggregate pattern per memory bucket that has
// enough entries. It needs at least five memories.
func MemoryPatterns(memories []domain.LongTermMemory) []UserPattern {
	if len(memories) < minMemoryRecords {
		return nil
	}

	byType := make(map[domain.MemoryType][]string)
	for _, m := range memories {
		byType[m.Type] = append(byType[m.Type], m.Content)
	}

	var out []UserPattern
	for _, b := range memoryBuckets {
		contents := byType[b.memType]
		if len(contents) < b.min {
			continue
		}
		out = append(out, UserPattern{
			Type:       SourceMemory,
			Pattern:    b.pattern,
			Confidence: b.confidence,
			Evidence:   append([]string(nil), contents...),
			Insight:    fmt.Sprintf("%s (%d remembered)", b.insight, len(contents)),
			Frequency:  len(contents),
		})
	}
	return out
}
