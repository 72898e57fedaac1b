// Package policy maps calibrated scores and risk signals to a final verdict.
package policy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/crewscore/internal/domain/model"
)

// Default policy identity and thresholds.
const (
	defaultPolicyCode    = "crewscore.standard"
	defaultPolicyVersion = "v1"
	defaultHireThreshold = 50
	defaultHoldLower     = 35
	maxEvidenceInReason  = 2
)

// Option applies a configuration option to the Policy.
type Option func(*Policy)

// WithThresholds overrides the hire threshold and the lower edge of the
// hold band. Scores in [holdLower, hire) yield HOLD.
func WithThresholds(hire, holdLower float64) Option {
	return func(p *Policy) {
		if hire > holdLower && holdLower >= 0 {
			p.hireThreshold = hire
			p.holdLower = holdLower
		}
	}
}

// WithIdentity sets the policy code and version stamped on decisions.
func WithIdentity(code, version string) Option {
	return func(p *Policy) {
		if code != "" {
			p.code = code
		}
		if version != "" {
			p.version = version
		}
	}
}

// Policy is an ordered rule set; the first matching rule wins.
type Policy struct {
	code          string
	version       string
	hireThreshold float64
	holdLower     float64
}

// NewPolicy creates a policy with configuration options.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		code:          defaultPolicyCode,
		version:       defaultPolicyVersion,
		hireThreshold: defaultHireThreshold,
		holdLower:     defaultHoldLower,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decide evaluates the rules in order:
//
//  1. any auto-reject flag forces REJECT regardless of score
//  2. a failed skill gate yields HOLD, never auto-reject
//  3. calibrated score at or above the hire threshold yields HIRE
//  4. calibrated score inside the hold band yields HOLD
//  5. otherwise REJECT
//
// Numeric flag penalties are already baked into the score before this
// stage; flags here only drive the override rule and the cited reason.
func (p *Policy) Decide(_ context.Context, interviewID string, calibrated float64, gate model.SkillGate, flags []model.RiskFlag) model.Decision {
	d := model.Decision{
		InterviewID:   interviewID,
		FinalScore:    calibrated,
		PolicyCode:    p.code,
		PolicyVersion: p.version,
		DecidedAt:     time.Now().UTC(),
	}

	if flag, ok := model.AutoRejectFlag(flags); ok {
		d.Outcome = model.OutcomeReject
		d.Reason = autoRejectReason(flag)
		return d
	}

	if !gate.Passed {
		d.Outcome = model.OutcomeHold
		d.Reason = fmt.Sprintf("skill gate failed: role competence %.0f below threshold %.0f",
			gate.RoleCompetenceScore, gate.GateThreshold)
		return d
	}

	switch {
	case calibrated >= p.hireThreshold:
		d.Outcome = model.OutcomeHire
		d.Reason = fmt.Sprintf("calibrated score %.1f meets hire threshold %.0f", calibrated, p.hireThreshold)
	case calibrated >= p.holdLower:
		d.Outcome = model.OutcomeHold
		d.Reason = fmt.Sprintf("calibrated score %.1f within hold band [%.0f, %.0f)", calibrated, p.holdLower, p.hireThreshold)
	default:
		d.Outcome = model.OutcomeReject
		d.Reason = fmt.Sprintf("calibrated score %.1f below hold band", calibrated)
	}

	// Cite the most severe remaining flag; its penalty is already in the score.
	if flag, ok := model.HighestSeverity(flags); ok {
		d.Reason += "; flagged: " + flag.Name
	}
	return d
}

// autoRejectReason cites the flag name plus up to two evidence snippets.
func autoRejectReason(flag model.RiskFlag) string {
	reason := flag.Name
	if len(flag.Evidence) > 0 {
		ev := flag.Evidence
		if len(ev) > maxEvidenceInReason {
			ev = ev[:maxEvidenceInReason]
		}
		reason += ": " + strings.Join(ev, " | ")
	}
	return reason
}
