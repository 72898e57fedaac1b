// Package riskflag detects evidenced risk signals in interview answers.
package riskflag

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/okian/crewscore/internal/domain/model"
)

// Maximum evidence snippet length kept per match.
const maxEvidenceLen = 160

// Detector evaluates interview answers against a rule catalogue.
type Detector interface {
	// Detect returns every triggered flag with the literal evidence
	// strings that justified it. A fresh slice is produced per call.
	Detect(ctx context.Context, iv model.Interview) []model.RiskFlag
}

// Rule describes one detectable flag.
type Rule struct {
	Code             string
	Name             string
	Severity         model.Severity
	CausesAutoReject bool
	Keywords         []string
}

// Option applies a configuration option to the CatalogDetector.
type Option func(*CatalogDetector)

// WithRule adds or replaces a rule by code.
func WithRule(r Rule) Option {
	return func(d *CatalogDetector) {
		for i, existing := range d.rules {
			if existing.Code == r.Code {
				d.rules[i] = r
				return
			}
		}
		d.rules = append(d.rules, r)
	}
}

// WithoutRule removes a rule from the catalogue.
func WithoutRule(code string) Option {
	return func(d *CatalogDetector) {
		out := d.rules[:0]
		for _, r := range d.rules {
			if r.Code != code {
				out = append(out, r)
			}
		}
		d.rules = out
	}
}

// CatalogDetector implements Detector with a fixed keyword-rule catalogue.
type CatalogDetector struct {
	rules []Rule
}

// NewCatalogDetector creates a detector seeded with the built-in catalogue.
func NewCatalogDetector(opts ...Option) *CatalogDetector {
	d := &CatalogDetector{rules: builtinRules()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// builtinRules is the default flag catalogue. Aggression is the one flag
// that forces rejection regardless of numeric score.
func builtinRules() []Rule {
	return []Rule{
		{
			Code:             "RF_AGGRESSION",
			Name:             "Aggressive or toxic language",
			Severity:         model.SeverityCritical,
			CausesAutoReject: true,
			Keywords: []string{
				"punch", "punched", "hit him", "hit her", "beat him",
				"idiot", "idiots", "stupid crew", "useless crew",
				"hate them", "screamed at", "threatened", "shut up",
				"fight", "fought with",
			},
		},
		{
			Code:     "RF_SAFETY_DISREGARD",
			Name:     "Disregard for safety procedure",
			Severity: model.SeverityHigh,
			Keywords: []string{
				"skipped the drill", "ignored the checklist", "no need for ppe",
				"without a permit", "safety is overrated", "skip the briefing",
				"didn't report the incident", "hid the incident",
			},
		},
		{
			Code:     "RF_BLAME_SHIFTING",
			Name:     "Shifts blame to others",
			Severity: model.SeverityMedium,
			Keywords: []string{
				"not my fault", "never my fault", "they made me",
				"blame the captain", "blame the office", "everyone else failed",
			},
		},
		{
			Code:     "RF_EVASIVE_ANSWERS",
			Name:     "Evasive answering",
			Severity: model.SeverityLow,
			Keywords: []string{
				"i don't remember", "can't say", "rather not answer",
				"no comment", "why does it matter",
			},
		},
	}
}

// Detect evaluates every rule against every answer's free text.
func (d *CatalogDetector) Detect(_ context.Context, iv model.Interview) []model.RiskFlag {
	var flags []model.RiskFlag
	for _, rule := range d.rules {
		evidence := d.match(rule, iv.Answers)
		if len(evidence) == 0 {
			continue
		}
		flags = append(flags, model.RiskFlag{
			Code:             rule.Code,
			Name:             rule.Name,
			Severity:         rule.Severity,
			Evidence:         evidence,
			CausesAutoReject: rule.CausesAutoReject,
		})
	}
	return flags
}

// match collects evidence snippets for one rule, in answer order.
func (d *CatalogDetector) match(rule Rule, answers []model.Answer) []string {
	var evidence []string
	for _, a := range answers {
		if a.Text == "" {
			continue
		}
		lower := strings.ToLower(a.Text)
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				evidence = append(evidence, snippet(a.Text, kw))
				break // one evidence entry per answer per rule
			}
		}
	}
	return evidence
}

// snippet trims the answer around the match so evidence stays readable.
func snippet(text, keyword string) string {
	idx := strings.Index(strings.ToLower(text), keyword)
	if idx < 0 {
		idx = 0
	}
	start := idx - maxEvidenceLen/2
	if start < 0 {
		start = 0
	}
	end := start + maxEvidenceLen
	if end > len(text) {
		end = len(text)
	}
	// Snap both cuts to rune boundaries so evidence stays valid UTF-8.
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end > start && end < len(text) && !utf8.RuneStart(text[end]) {
		end--
	}
	s := strings.TrimSpace(text[start:end])
	if start > 0 {
		s = "…" + s
	}
	if end < len(text) {
		s += "…"
	}
	return s
}
