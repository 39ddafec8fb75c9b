// Package safety provides a pattern-based content classifier for toy
// conversations.
//
// The classifier is deliberately cheap and deterministic: it runs twice per
// interaction (on the child's transcript and on the generated reply) under
// latency pressure, so it trades recall for speed. It is not a semantic
// model. Classification is a pure function with no I/O and cannot fail.
package safety

import (
	"math"
	"strings"
)

// Level selects how aggressive the classifier is.
type Level string

const (
	// LevelStrict applies every pattern group. Used for kids-mode toys.
	LevelStrict Level = "strict"

	// LevelModerate applies a reduced subset of pattern groups.
	LevelModerate Level = "moderate"

	// LevelRelaxed applies only the minimal pattern groups.
	LevelRelaxed Level = "relaxed"
)

// Reason codes attached to verdicts.
const (
	ReasonNone          = ""
	ReasonViolence      = "violence"
	ReasonHate          = "hate"
	ReasonSubstances    = "substances"
	ReasonAdultContent  = "adult_content"
	ReasonRiskTaking    = "risk_taking"
	ReasonPersonalInfo  = "personal_info"
	ReasonSuspiciousURL = "suspicious_url"
)

// MaxMatchSamples caps how many matched tokens a verdict carries.
const MaxMatchSamples = 3

// Verdict is the outcome of one classification.
type Verdict struct {
	// Passed is true when the score clears the 0.5 threshold.
	Passed bool

	// Score is the content safety score in [0, 1]; 1 is fully clean.
	Score float64

	// Reason is the category code of the first matching group, or the
	// personal-info/URL code when only those triggered.
	Reason string

	// Severity is a monotonic integer transform of the score (0-5),
	// used for downstream alerting only.
	Severity int

	// Matches holds up to MaxMatchSamples matched tokens for observability.
	Matches []string
}

// Classify evaluates text at the given sensitivity level.
func Classify(text string, level Level) Verdict {
	lowered := strings.ToLower(text)

	score := 1.0
	reason := ReasonNone
	var matches []string

	for _, group := range groupsForLevel(level) {
		found := group.match(lowered)
		if len(found) > 0 {
			score = 0
			reason = group.reason
			matches = dedupeAndCap(found, MaxMatchSamples)
			break
		}
	}

	// Personal information lowers the score regardless of category matches.
	if pii := matchPersonalInfo(text); len(pii) > 0 {
		if score > 0.3 {
			score = 0.3
			if reason == ReasonNone {
				reason = ReasonPersonalInfo
			}
		}
		if len(matches) == 0 {
			matches = dedupeAndCap(pii, MaxMatchSamples)
		}
	}

	// URLs are only suspicious under strict screening.
	if level == LevelStrict && urlPattern.MatchString(lowered) {
		if score > 0.5 {
			score = 0.5
			if reason == ReasonNone {
				reason = ReasonSuspiciousURL
			}
		}
	}

	return Verdict{
		Passed:   score > 0.5,
		Score:    score,
		Reason:   reason,
		Severity: severityFromScore(score),
		Matches:  matches,
	}
}

// severityFromScore maps a score to a 0-5 severity bucket.
func severityFromScore(score float64) int {
	return int(math.Round((1 - score) * 5))
}

// dedupeAndCap removes duplicate tokens, preserving order, capped at n.
func dedupeAndCap(tokens []string, n int) []string {
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == n {
			break
		}
	}
	return out
}
