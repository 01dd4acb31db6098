package domain

// InterventionType is a category of therapeutic intervention and of
// detected need.
type InterventionType string

const (
	InterventionSleep      InterventionType = "sleep"
	InterventionDepression InterventionType = "depression"
	InterventionAnxiety    InterventionType = "anxiety"
	InterventionStress     InterventionType = "stress"
	InterventionBreakup    InterventionType = "breakup"
	InterventionGrief      InterventionType = "grief"
	InterventionFocus      InterventionType = "focus"
)

// InterventionTypes lists every type in detector evaluation order.
var InterventionTypes = []InterventionType{
	InterventionSleep,
	InterventionDepression,
	InterventionAnxiety,
	InterventionStress,
	InterventionBreakup,
	InterventionGrief,
	InterventionFocus,
}

// Valid reports whether t is a known type.
func (t InterventionType) Valid() bool {
	for _, v := range InterventionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Severity of a detected need.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Difficulty of a catalog intervention, also used as the user's experience level.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// ProgressStatus is the lifecycle state of an InterventionProgress.
type ProgressStatus string

const (
	StatusActive    ProgressStatus = "active"
	StatusCompleted ProgressStatus = "completed"
	StatusPaused    ProgressStatus = "paused"
	StatusAbandoned ProgressStatus = "abandoned"
)

// MemoryType classifies a LongTermMemory.
type MemoryType string

const (
	MemoryEmotionalTheme MemoryType = "emotional_theme"
	MemoryCopingPattern  MemoryType = "coping_pattern"
	MemoryGoal           MemoryType = "goal"
	MemoryTrigger        MemoryType = "trigger"
	MemoryInsight        MemoryType = "insight"
	MemoryPreference     MemoryType = "preference"
)

// SummaryType is the period length of a ConversationSummary.
type SummaryType string

const (
	SummaryWeekly  SummaryType = "weekly"
	SummaryMonthly SummaryType = "monthly"
)

// CommunicationStyle is the tone the companion should use.
type CommunicationStyle string

const (
	StyleBalanced    CommunicationStyle = "balanced"
	StyleGentle      CommunicationStyle = "gentle"
	StyleDirect      CommunicationStyle = "direct"
	StyleEncouraging CommunicationStyle = "encouraging"
	StyleReflective  CommunicationStyle = "reflective"
)

// Verbosity is the preferred reply length.
type Verbosity string

const (
	VerbosityConcise  Verbosity = "concise"
	VerbosityModerate Verbosity = "moderate"
	VerbosityDetailed Verbosity = "detailed"
)

// EmojiUsage is how often replies should use emoji.
type EmojiUsage string

const (
	EmojiNone       EmojiUsage = "none"
	EmojiOccasional EmojiUsage = "occasional"
	EmojiFrequent   EmojiUsage = "frequent"
)

// Valid reports whether s is a known style.
func (s CommunicationStyle) Valid() bool {
	switch s {
	case StyleBalanced, StyleGentle, StyleDirect, StyleEncouraging, StyleReflective:
		return true
	}
	return false
}

// Valid reports whether v is a known verbosity.
func (v Verbosity) Valid() bool {
	switch v {
	case VerbosityConcise, VerbosityModerate, VerbosityDetailed:
		return true
	}
	return false
}

// Valid reports whether e is a known emoji usage.
func (e EmojiUsage) Valid() bool {
	switch e {
	case EmojiNone, EmojiOccasional, EmojiFrequent:
		return true
	}
	return false
}
