package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrubber_Scrub(t *testing.T) {
	s := MustNew()

	tests := []struct {
		name  string
		input string
		want  string
		rules []string
	}{
		{
			name:  "nothing to redact",
			input: "I slept badly and feel anxious about tomorrow",
			want:  "I slept badly and feel anxious about tomorrow",
		},
		{
			name:  "email",
			input: "write to me at jane.doe@example.com please",
			want:  "write to me at [redacted email] please",
			rules: []string{"email"},
		},
		{
			name:  "phone",
			input: "my therapist is on 0151 234 5678",
			want:  "my therapist is on [redacted phone]",
			rules: []string{"phone"},
		},
		{
			name:  "api key",
			input: "my key is sk-abcdefghijklmnopqrstuv",
			want:  "my key is [redacted api-key]",
			rules: []string{"api-key"},
		},
		{
			name:  "two findings",
			input: "a@b.io and c@d.io",
			want:  "[redacted email] and [redacted email]",
			rules: []string{"email", "email"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Scrub(tt.input)
			assert.Equal(t, tt.want, res.Text)
			var got []string
			for _, f := range res.Findings {
				got = append(got, f.RuleID)
			}
			assert.Equal(t, tt.rules, got)
			assert.Equal(t, len(tt.rules) > 0, res.HasFindings())
		})
	}
}

func TestScrubber_Overlaps(t *testing.T) {
	s := MustNew(
		Rule{ID: "digits", Pattern: `\d{4,}`},
		Rule{ID: "long", Pattern: `12\d{6}`},
	)
	res := s.Scrub("id 12345678 end")
	assert.Equal(t, "id [redacted digits] end", res.Text)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, 3, res.Findings[0].Start)
	assert.Equal(t, 11, res.Findings[0].End)
}

func TestNew_InvalidRules(t *testing.T) {
	_, err := New(Rule{ID: "bad", Pattern: "("})
	assert.Error(t, err)
	_, err = New(Rule{Pattern: "x"})
	assert.Error(t, err)
}

func TestScrubber_NilSafe(t *testing.T) {
	var s *Scrubber
	assert.Equal(t, "a@b.io", s.Scrub("a@b.io").Text)
}
