// Package redact removes contact details and credentials from user text
// before it leaves the service.
package redact

import (
	"fmt"
	"regexp"
	"sort"
)

// Rule is one detection pattern.
type Rule struct {
	ID          string `toml:"id"`
	Description string `toml:"description"`
	Pattern     string `toml:"pattern"`
}

// DefaultRules returns the rules applied to text sent to the LLM provider.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "email",
			Description: "Email address",
			Pattern:     `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
		},
		{
			ID:          "phone",
			Description: "Phone number",
			Pattern:     `(?:\+\d{1,3}[\s.\-]?)?(?:\(\d{2,4}\)[\s.\-]?|\d{2,4}[\s.\-])\d{3,4}[\s.\-]?\d{3,4}`,
		},
		{
			ID:          "card",
			Description: "Payment card number",
			Pattern:     `\b(?:\d[ \-]?){12,18}\d\b`,
		},
		{
			ID:          "iban",
			Description: "Bank account number",
			Pattern:     `\b[A-Z]{2}\d{2}(?:\s?[A-Z0-9]{4}){3,7}\b`,
		},
		{
			ID:          "api-key",
			Description: "API key or token",
			Pattern:     `\b(?:sk-[A-Za-z0-9_\-]{16,}|ghp_[A-Za-z0-9]{36}|AKIA[A-Z0-9]{16})`,
		},
	}
}

type compiledRule struct {
	id      string
	pattern *regexp.Regexp
}

// Finding locates one match. The matched text is never retained.
type Finding struct {
	RuleID string `json:"ruleId"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// Result is the outcome of Scrub.
type Result struct {
	Text     string         `json:"text"`
	Findings []Finding      `json:"findings,omitempty"`
	ByRule   map[string]int `json:"byRule,omitempty"`
}

// HasFindings reports whether anything was redacted.
func (r Result) HasFindings() bool { return len(r.Findings) > 0 }

// Scrubber replaces matches with a "[redacted <rule>]" marker. It is safe
// for concurrent use.
type Scrubber struct {
	rules []compiledRule
	allow []*regexp.Regexp
}

// New compiles rules. With no rules DefaultRules is used.
func New(rules ...Rule) (*Scrubber, error) {
	return NewWithAllowlist(rules, nil)
}

// NewWithAllowlist is New plus allowlist patterns: a match whose text
// matches any allowlist pattern is left in place.
func NewWithAllowlist(rules []Rule, allowlist []string) (*Scrubber, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	s := &Scrubber{}
	for _, a := range allowlist {
		re, err := regexp.Compile(a)
		if err != nil {
			return nil, fmt.Errorf("allowlist pattern %q: %w", a, err)
		}
		s.allow = append(s.allow, re)
	}
	for _, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule with pattern %q has no id", r.Pattern)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		s.rules = append(s.rules, compiledRule{id: r.ID, pattern: re})
	}
	return s, nil
}

// MustNew is New for package-level defaults; it panics on a bad rule.
func MustNew(rules ...Rule) *Scrubber {
	s, err := New(rules...)
	if err != nil {
		panic(err)
	}
	return s
}

type span struct {
	start, end int
	ruleID string
}

// Scrub redacts every match. Overlapping matches collapse into one marker
// named after the earliest rule.
func (s *Scrubber) Scrub(text string) Result {
	res := Result{Text: text}
	if s == nil || text == "" {
		return res
	}

	var spans []span
	for _, r := range s.rules {
		for _, m := range r.pattern.FindAllStringIndex(text, -1) {
			if s.allowed(text[m[0]:m[1]]) {
				continue
			}
			spans = append(spans, span{start: m[0], end: m[1], ruleID: r.id})
		}
	}
	if len(spans) == 0 {
		return res
	}

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := []span{spans[0]}
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start < last.end {
			last.end = max(last.end, sp.end)
			continue
		}
		merged = append(merged, sp)
	}

	res.ByRule = make(map[string]int)
	out := make([]byte, 0, len(text))
	prev := 0
	for _, sp := range merged {
		out = append(out, text[prev:sp.start]...)
		out = append(out, "[redacted "+sp.ruleID+"]"...)
		prev = sp.end
		res.Findings = append(res.Findings, Finding{RuleID: sp.ruleID, Start: sp.start, End: sp.end})
		res.ByRule[sp.ruleID]++
	}
	res.Text = string(append(out, text[prev:]...))
	return res
}

func (s *Scrubber) allowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}
