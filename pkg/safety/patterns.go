package safety

import "regexp"

// patternGroup is an ordered category of blocked-content patterns.
// Groups are evaluated in order; the first group with any match decides
// the verdict's reason code.
type patternGroup struct {
	reason   string
	patterns []*regexp.Regexp
}

// match returns every token matched by the group's patterns.
func (g *patternGroup) match(lowered string) []string {
	var found []string
	for _, p := range g.patterns {
		found = append(found, p.FindAllString(lowered, -1)...)
	}
	return found
}

// compileWords builds word-boundary patterns for a list of terms.
func compileWords(words ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		patterns[i] = regexp.MustCompile(`\b` + w + `\b`)
	}
	return patterns
}

var (
	violenceGroup = patternGroup{
		reason: ReasonViolence,
		patterns: compileWords(
			`guns?`, `knife`, `knives`, `weapons?`, `kill(?:ing)?`, `murder`,
			`shoot(?:ing)?`, `stab(?:bing)?`, `fight(?:ing)?`, `punch(?:ing)?`,
			`hurt(?:ing)?`, `blood`, `bombs?`, `explos\w+`,
		),
	}

	hateGroup = patternGroup{
		reason: ReasonHate,
		patterns: compileWords(
			`hate`, `stupid`, `idiot`, `dumb`, `loser`, `ugly`, `racis\w+`,
		),
	}

	substancesGroup = patternGroup{
		reason: ReasonSubstances,
		patterns: compileWords(
			`drugs?`, `alcohol`, `beer`, `wine`, `vodka`, `cigarettes?`,
			`vap(?:e|ing)`, `smoking`, `marijuana`, `weed`, `cocaine`,
		),
	}

	adultContentGroup = patternGroup{
		reason: ReasonAdultContent,
		patterns: compileWords(
			`sex\w*`, `naked`, `nude`, `porn\w*`, `kiss(?:ing)?`,
		),
	}

	riskTakingGroup = patternGroup{
		reason: ReasonRiskTaking,
		patterns: compileWords(
			`dares?`, `jump off`, `run away`, `secrets? from`, `don'?t tell`,
			`matches`, `lighters?`, `fire`,
		),
	}
)

// Personal-information patterns are checked independently of the category
// groups: SSN-like, bare 9-digit, email, and phone shapes.
var personalInfoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	regexp.MustCompile(`\b\d{9}\b`),
	regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.]+\b`),
	regexp.MustCompile(`\b\d{3}[-.\s]\d{3}[-.\s]\d{4}\b`),
}

var urlPattern = regexp.MustCompile(`https?://\S+|www\.\S+`)

// matchPersonalInfo returns tokens matching personal-information shapes.
// Matched against the original text since digits and emails are case-neutral
// but shouldn't be lowercased away.
func matchPersonalInfo(text string) []string {
	var found []string
	for _, p := range personalInfoPatterns {
		found = append(found, p.FindAllString(text, -1)...)
	}
	return found
}

// groupsForLevel returns the ordered pattern groups for a sensitivity level.
// Strict screens all categories; moderate drops the judgment-call groups;
// relaxed keeps only violence.
func groupsForLevel(level Level) []patternGroup {
	switch level {
	case LevelModerate:
		return []patternGroup{violenceGroup, substancesGroup, adultContentGroup}
	case LevelRelaxed:
		return []patternGroup{violenceGroup}
	default:
		return []patternGroup{violenceGroup, hateGroup, substancesGroup, adultContentGroup, riskTakingGroup}
	}
}
