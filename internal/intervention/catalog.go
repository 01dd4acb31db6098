package intervention

import (
	"github.com/fyrsmithlabs/companiond/internal/domain"
)

// Intervention is a static catalog entry.
type Intervention struct {
	ID              string                  `json:"id"`
	Type            domain.InterventionType `json:"type"`
	Name            string                  `json:"name"`
	Description     string                  `json:"description"`
	Difficulty      domain.Difficulty       `json:"difficulty"`
	DurationMinutes int                     `json:"durationMinutes"`
	Steps           []string                `json:"steps"`
}

// catalog lists the interventions per type in presentation order.
var catalog = map[domain.InterventionType][]Intervention{
	domain.InterventionSleep: {
		{
			ID: "sleep-hygiene-basics", Name: "Sleep Hygiene Basics", Difficulty: domain.DifficultyBeginner, DurationMinutes: 10,
			Description: "Small evening habits that make falling asleep easier.",
			Steps: []string{
				"Pick a fixed wake-up time for the next seven days",
				"Dim screens and lights an hour before bed",
				"Keep the bedroom cool, dark and quiet",
				"Write down tomorrow's worries before lying down",
			},
		},
		{
			ID: "body-scan-for-sleep", Name: "Body Scan for Sleep", Difficulty: domain.DifficultyBeginner, DurationMinutes: 15,
			Description: "A guided scan that releases tension from head to toe.",
			Steps: []string{
				"Lie down and take five slow breaths",
				"Move attention slowly from your toes up to your head",
				"Notice and soften any tension you find",
			},
		},
		{
			ID: "stimulus-control", Name: "Stimulus Control", Difficulty: domain.DifficultyIntermediate, DurationMinutes: 20,
			Description: "Re-train your brain to link the bed with sleep.",
			Steps: []string{
				"Only go to bed when sleepy",
				"Leave the bed if you are awake for more than twenty minutes",
				"Return only when sleepy again",
				"Keep the same wake-up time every day",
			},
		},
		{
			ID: "sleep-restriction", Name: "Sleep Restriction", Difficulty: domain.DifficultyAdvanced, DurationMinutes: 30,
			Description: "Temporarily limit time in bed to consolidate sleep.",
			Steps: []string{
				"Track your actual sleep for one week",
				"Set a time-in-bed window equal to your average sleep",
				"Extend the window by fifteen minutes once sleep is efficient",
			},
		},
	},
	domain.InterventionDepression: {
		{
			ID: "behavioral-activation", Name: "Behavioral Activation", Difficulty: domain.DifficultyBeginner, DurationMinutes: 15,
			Description: "Schedule small, rewarding activities to rebuild momentum.",
			Steps: []string{
				"List three activities you used to enjoy",
				"Pick the smallest one and schedule it for today",
				"Do it, then rate your mood before and after",
			},
		},
		{
			ID: "gratitude-journal", Name: "Three Good Things", Difficulty: domain.DifficultyBeginner, DurationMinutes: 10,
			Description: "Notice what went well, however small.",
			Steps: []string{
				"Write down three things that went well today",
				"For each, note why it happened",
				"Read the list back slowly",
			},
		},
		{
			ID: "thought-record", Name: "Thought Record", Difficulty: domain.DifficultyIntermediate, DurationMinutes: 20,
			Description: "Catch and examine a harsh automatic thought.",
			Steps: []string{
				"Describe the situation",
				"Write down the automatic thought",
				"List evidence for and against it",
				"Write a more balanced thought",
			},
		},
		{
			ID: "values-clarification", Name: "Values Clarification", Difficulty: domain.DifficultyAdvanced, DurationMinutes: 30,
			Description: "Reconnect daily actions with what matters to you.",
			Steps: []string{
				"Name your top five values",
				"Rate how closely you lived each this week",
				"Choose one action that honors your lowest-rated value",
			},
		},
	},
	domain.InterventionAnxiety: {
		{
			ID: "box-breathing", Name: "Box Breathing", Difficulty: domain.DifficultyBeginner, DurationMinutes: 5,
			Description: "A four-count breathing pattern that calms the body.",
			Steps: []string{
				"Breathe in for four counts",
				"Hold for four counts",
				"Breathe out for four counts",
				"Hold for four counts and repeat four times",
			},
		},
		{
			ID: "grounding-54321", Name: "5-4-3-2-1 Grounding", Difficulty: domain.DifficultyBeginner, DurationMinutes: 5,
			Description: "Use your senses to come back to the present.",
			Steps: []string{
				"Name five things you can see",
				"Name four things you can touch",
				"Name three things you can hear",
				"Name two things you can smell and one you can taste",
			},
		},
		{
			ID: "worry-time", Name: "Scheduled Worry Time", Difficulty: domain.DifficultyIntermediate, DurationMinutes: 15,
			Description: "Contain worrying to a fixed daily slot.",
			Steps: []string{
				"Pick a fifteen-minute slot for today",
				"Postpone worries that come up outside it",
				"Use the slot to write worries down and plan next steps",
			},
		},
	},
	domain.InterventionStress: {
		{
			ID: "progressive-muscle-relaxation", Name: "Progressive Muscle Relaxation", Difficulty: domain.DifficultyBeginner, DurationMinutes: 15,
			Description: "Tense and release muscle groups to let go of stress.",
			Steps: []string{
				"Tense your feet for five seconds, then release",
				"Work upward through legs, stomach, arms and shoulders",
				"Finish with your face and notice the difference",
			},
		},
		{
			ID: "priority-sort", Name: "Priority Sort", Difficulty: domain.DifficultyBeginner, DurationMinutes: 10,
			Description: "Sort tasks by urgency and importance.",
			Steps: []string{
				"Write every task on your mind",
				"Mark each as urgent, important, both or neither",
				"Drop or delegate one task from the neither group",
			},
		},
		{
			ID: "stress-inoculation", Name: "Stress Inoculation", Difficulty: domain.DifficultyAdvanced, DurationMinutes: 30,
			Description: "Rehearse coping statements before a stressful event.",
			Steps: []string{
				"Describe an upcoming stressful event",
				"Write coping statements for before, during and after",
				"Rehearse them while imagining the event",
			},
		},
	},
	domain.InterventionBreakup: {
		{
			ID: "letter-not-sent", Name: "The Unsent Letter", Difficulty: domain.DifficultyBeginner, DurationMinutes: 20,
			Description: "Put everything you wish you could say on paper.",
			Steps: []string{
				"Write a letter to your ex that you will not send",
				"Include what you miss and what hurt",
				"Close with what you want for yourself now",
			},
		},
		{
			ID: "no-contact-plan", Name: "No-Contact Plan", Difficulty: domain.DifficultyBeginner, DurationMinutes: 10,
			Description: "Make space to heal by planning for urges to reach out.",
			Steps: []string{
				"List the moments you are most tempted to reach out",
				"Pick an alternative action for each",
				"Tell one friend about your plan",
			},
		},
		{
			ID: "identity-rebuild", Name: "Rediscovering You", Difficulty: domain.DifficultyIntermediate, DurationMinutes: 25,
			Description: "Reconnect with interests and friendships of your own.",
			Steps: []string{
				"List interests you set aside during the relationship",
				"Choose one to restart this week",
				"Reach out to a friend you have not seen in a while",
			},
		},
	},
	domain.InterventionGrief: {
		{
			ID: "memory-box", Name: "Memory Box", Difficulty: domain.DifficultyBeginner, DurationMinutes: 20,
			Description: "Gather and honor memories of who you lost.",
			Steps: []string{
				"Collect a few photos or objects that hold memories",
				"Write a short note about each",
				"Keep them somewhere you can visit when you want to",
			},
		},
		{
			ID: "grief-waves", Name: "Riding Grief Waves", Difficulty: domain.DifficultyBeginner, DurationMinutes: 10,
			Description: "Let waves of grief come and pass without fighting them.",
			Steps: []string{
				"Notice where you feel the grief in your body",
				"Breathe into that place without pushing it away",
				"Name one small comfort you can offer yourself",
			},
		},
		{
			ID: "continuing-bonds", Name: "Continuing Bonds", Difficulty: domain.DifficultyIntermediate, DurationMinutes: 25,
			Description: "Find ways to carry the relationship forward.",
			Steps: []string{
				"Write about a value the person lived by",
				"Choose a way to honor it this month",
				"Share a story about them with someone",
			},
		},
	},
	domain.InterventionFocus: {
		{
			ID: "pomodoro", Name: "Pomodoro Sprint", Difficulty: domain.DifficultyBeginner, DurationMinutes: 30,
			Description: "Work in short, timed bursts with breaks.",
			Steps: []string{
				"Pick one task",
				"Work on it for twenty-five minutes",
				"Take a five-minute break away from screens",
			},
		},
		{
			ID: "distraction-audit", Name: "Distraction Audit", Difficulty: domain.DifficultyBeginner, DurationMinutes: 10,
			Description: "Find and remove what pulls your attention away.",
			Steps: []string{
				"Note every distraction for one hour",
				"Group them by source",
				"Remove or mute the biggest source",
			},
		},
		{
			ID: "deep-work-block", Name: "Deep Work Block", Difficulty: domain.DifficultyIntermediate, DurationMinutes: 90,
			Description: "Protect a long block for demanding work.",
			Steps: []string{
				"Schedule a ninety-minute block",
				"Define a single outcome for it",
				"Close every unrelated app and notification",
			},
		},
		{
			ID: "attention-training", Name: "Attention Training", Difficulty: domain.DifficultyAdvanced, DurationMinutes: 20,
			Description: "Strengthen attention by deliberately switching focus.",
			Steps: []string{
				"Focus on one sound for two minutes",
				"Switch rapidly between three sounds",
				"Finish by holding awareness of all sounds at once",
			},
		},
	},
}

var byID = func() map[string]Intervention {
	m := make(map[string]Intervention)
	for t, list := range catalog {
		for i := range list {
			list[i].Type = t
			m[list[i].ID] = list[i]
		}
	}
	return m
}()

// Catalog returns a copy of the entries for type t.
func Catalog(t domain.InterventionType) []Intervention {
	return append([]Intervention(nil), catalog[t]...)
}

// Lookup returns the catalog entry with id.
func Lookup(id string) (Intervention, bool) {
	iv, ok := byID[id]
	return iv, ok
}
