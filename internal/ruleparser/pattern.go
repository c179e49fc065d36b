package ruleparser

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

const (
	numberExpr = `(\d+(?:\.\d+)?)`
	hoursExpr  = `\s*(?:hours?|hrs?|h)\b`
	daysExpr   = `(monday|tuesday|wednesday|thursday|friday|saturday|sunday)s?`
)

var (
	reConsecutive = regexp.MustCompile(`(?i)(?:no more than|not more than|at most|max(?:imum)?(?: of)?|up to)\s+(\d+)\s+(?:consecutive\s+days|days\s+in\s+a\s+row|days\s+straight)`)
	reRestHours   = regexp.MustCompile(`(?i)at least\s+` + numberExpr + hoursExpr + `\s+(?:of\s+)?(?:rest|break|off)\s+between`)
	reBackToBack  = regexp.MustCompile(`(?i)\bno\s+(?:back[\s-]*to[\s-]*back|clopen)`)
	reKeys        = regexp.MustCompile(`(?i)\b(opening|open|morning)\b.*\bkeys?\b|\bkeys?\b.*\b(opening|open|morning)\b`)
	reFairWords   = regexp.MustCompile(`(?i)\b(fair(?:ly|ness)?|evenly|spread|difference|between staff|among staff|across staff)\b`)
	reFairHours   = regexp.MustCompile(`(?i)` + numberExpr + hoursExpr)
	reDayOff      = regexp.MustCompile(`(?i)\b(?:off on|off|not work(?:ing)?(?: on)?|can'?t work(?: on)?|cannot work(?: on)?|never works?(?: on)?|unavailable(?: on)?)\s+(?:on\s+)?(?:every\s+)?` + daysExpr + `\b|\b` + daysExpr + `\s+off\b`)
	reMinHours    = regexp.MustCompile(`(?i)(?:at least|minimum(?: of)?|no less than|not less than)\s+` + numberExpr + hoursExpr)
	rePreferred   = regexp.MustCompile(`(?i)(?:prefers?|would like|wants?|likes?)\s+(?:to\s+work\s+)?(?:about|around|roughly|approximately)?\s*` + numberExpr + hoursExpr)
	reMaxHours    = regexp.MustCompile(`(?i)(?:no more than|not more than|at most|max(?:imum)?(?: of)?|up to|capped at|under)\s+` + numberExpr + hoursExpr)

	reStrong = regexp.MustCompile(`(?i)\b(must|never|always|has to|have to|needs? to|critical|strictly)\b`)
	reSoft   = regexp.MustCompile(`(?i)\b(prefers?|ideally|if possible|would like|try to|likes?)\b`)
)

// PatternParser is a deterministic regex grammar for common rule phrasings.
type PatternParser struct{}

// NewPatternParser builds a PatternParser.
func NewPatternParser() *PatternParser {
	return &PatternParser{}
}

// Parse implements Parser.
func (p *PatternParser) Parse(ctx context.Context, text string, staff map[string]string) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Failed("rule text is empty"), nil
	}

	staffID := resolveStaff(text, staff)
	c, needsStaff, ok := match(text, staffID)
	if !ok {
		return Failed("could not recognise a scheduling rule in the text"), nil
	}
	if needsStaff && staffID == "" {
		return Failed("could not identify which staff member the rule is about"), nil
	}

	weight := suggestWeight(text)
	return &ParseResult{
		Success:         true,
		Constraint:      c,
		SuggestedWeight: &weight,
		Explanation:     "Matched " + string(c.Type()) + ": " + Describe(c, staff),
	}, nil
}

// match tries each grammar in priority order.
func match(text, staffID string) (models.Constraint, bool, bool) {
	if m := reConsecutive.FindStringSubmatch(text); m != nil {
		days, _ := strconv.Atoi(m[1])
		return models.MaxConsecutiveDays{StaffID: staffID, MaxDays: days}, false, true
	}
	if m := reRestHours.FindStringSubmatch(text); m != nil {
		return models.NoBackToBack{StaffID: staffID, MinRestHours: parseNumber(m[1])}, false, true
	}
	if reBackToBack.MatchString(text) {
		return models.NoBackToBack{StaffID: staffID}, false, true
	}
	if m := reKeys.FindStringSubmatch(text); m != nil {
		shiftType := models.DefaultOpeningShiftType
		if strings.EqualFold(m[1], "morning") || strings.EqualFold(m[2], "morning") {
			shiftType = "morning"
		}
		return models.RequiresKeysForOpening{ShiftType: shiftType}, false, true
	}
	if reFairWords.MatchString(text) {
		if m := reFairHours.FindStringSubmatch(text); m != nil {
			return models.Fairness{MaxHourSpread: parseNumber(m[1])}, false, true
		}
	}
	if m := reDayOff.FindStringSubmatch(text); m != nil {
		day := m[1]
		if day == "" {
			day = m[2]
		}
		return models.DayOff{StaffID: staffID, DayOfWeek: strings.ToLower(day)}, true, true
	}
	if m := reMinHours.FindStringSubmatch(text); m != nil {
		return models.MinHours{StaffID: staffID, MinHoursPerWeek: parseNumber(m[1])}, true, true
	}
	if m := rePreferred.FindStringSubmatch(text); m != nil {
		return models.PreferredHours{StaffID: staffID, PreferredHoursPerWeek: parseNumber(m[1])}, true, true
	}
	if m := reMaxHours.FindStringSubmatch(text); m != nil {
		return models.MaxHours{StaffID: staffID, MaxHoursPerWeek: parseNumber(m[1])}, true, true
	}
	return nil, false, false
}

// resolveStaff finds the staff member named earliest in text, matching whole
// words case-insensitively. Longer names win at the same position.
func resolveStaff(text string, staff map[string]string) string {
	ids := make([]string, 0, len(staff))
	for id := range staff {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	bestID, bestPos, bestLen := "", -1, 0
	for _, id := range ids {
		for _, name := range nameVariants(staff[id]) {
			re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
			if err != nil {
				continue
			}
			loc := re.FindStringIndex(text)
			if loc == nil {
				continue
			}
			if bestPos < 0 || loc[0] < bestPos || (loc[0] == bestPos && len(name) > bestLen) {
				bestID, bestPos, bestLen = id, loc[0], len(name)
			}
		}
	}
	return bestID
}

func nameVariants(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	variants := []string{name}
	if first := strings.Fields(name)[0]; first != name {
		variants = append(variants, first)
	}
	return variants
}

func suggestWeight(text string) int {
	switch {
	case reStrong.MatchString(text):
		return 90
	case reSoft.MatchString(text):
		return 40
	default:
		return 60
	}
}

func parseNumber(raw string) float64 {
	v, _ := strconv.ParseFloat(raw, 64)
	return v
}
