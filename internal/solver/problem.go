package solver

import (
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

const minutesPerDay = 24 * 60

type position struct {
	index        int
	req          int
	slot         int
	day          int
	shiftType    string
	role         string
	localStart   int
	localEnd     int
	start        int
	end          int
	hours        float64
	required     bool
	lead         bool
	requiresKeys bool
	candidates   []int
	isCandidate  []bool
	prefNot      map[int]float64
}

type weightedRule struct {
	id     string
	weight float64
	c      models.Constraint
}

// ruleScope says where a constraint is enforced.
type ruleScope int

const (
	scopeUnknown ruleScope = iota
	scopeCandidacy
	scopeHours
	scopeStaff
	scopeGlobal
)

func scopeOf(c models.Constraint) ruleScope {
	switch c.(type) {
	case models.DayOff, models.RequiresKeysForOpening:
		return scopeCandidacy
	case models.MaxHours:
		return scopeHours
	case models.MinHours, models.PreferredHours, models.MaxConsecutiveDays, models.NoBackToBack:
		return scopeStaff
	case models.Fairness:
		return scopeGlobal
	}
	return scopeUnknown
}

// problem is the compiled, read-only form of an Input.
type problem struct {
	staff          []models.Staff
	positions      []position
	maxHours       []float64
	staffRules     [][]weightedRule
	globalRules    []weightedRule
	eligible       []bool
	preferFairness bool
}

func compile(in Input) (*problem, error) {
	for _, r := range in.Requirements {
		if err := r.validate(); err != nil {
			return nil, err
		}
	}

	staff := make([]models.Staff, len(in.Staff))
	copy(staff, in.Staff)
	sort.SliceStable(staff, func(i, j int) bool { return staff[i].ID < staff[j].ID })
	index := make(map[string]int, len(staff))
	for i, s := range staff {
		index[s.ID] = i
	}

	p := &problem{
		staff:          staff,
		maxHours:       make([]float64, len(staff)),
		staffRules:     make([][]weightedRule, len(staff)),
		eligible:       make([]bool, len(staff)),
		preferFairness: in.Options.PreferFairness,
	}
	for i := range p.maxHours {
		p.maxHours[i] = math.Inf(1)
		if in.Options.MaxHoursPerWeek > 0 {
			p.maxHours[i] = in.Options.MaxHoursPerWeek
		}
	}

	daysOff := make([][7]bool, len(staff))
	var keyRules []models.RequiresKeysForOpening

	for _, rule := range in.Rules {
		if rule.Constraint == nil {
			continue
		}
		c := models.Deref(rule.Constraint)
		wr := weightedRule{id: rule.ID, weight: float64(rule.Weight) / 100, c: c}
		targets := targetStaff(c, index, len(staff))

		switch scopeOf(c) {
		case scopeCandidacy:
			switch v := c.(type) {
			case models.DayOff:
				day, err := models.ParseDay(v.DayOfWeek)
				if err != nil {
					continue
				}
				for _, s := range targets {
					daysOff[s][day] = true
				}
			case models.RequiresKeysForOpening:
				keyRules = append(keyRules, v)
			}
		case scopeHours:
			limit := c.(models.MaxHours).MaxHoursPerWeek
			for _, s := range targets {
				p.maxHours[s] = math.Min(p.maxHours[s], limit)
			}
		case scopeStaff:
			for _, s := range targets {
				p.staffRules[s] = append(p.staffRules[s], wr)
			}
		case scopeGlobal:
			p.globalRules = append(p.globalRules, wr)
		}
	}

	cover := buildCoverage(in.Availability, index, len(staff))
	p.positions = expand(in.Requirements)
	for i := range p.positions {
		pos := &p.positions[i]
		pos.isCandidate = make([]bool, len(staff))
		pos.prefNot = make(map[int]float64)
		needsKey := pos.requiresKeys && pos.lead
		for _, kr := range keyRules {
			if pos.lead && strings.EqualFold(pos.shiftType, kr.OpeningShiftType()) {
				needsKey = true
			}
		}
		for s, member := range staff {
			if daysOff[s][pos.day] || !member.HasRole(pos.role) {
				continue
			}
			if needsKey && !member.KeyHolder {
				continue
			}
			if pos.hours > p.maxHours[s] {
				continue
			}
			ok, preferredNot := cover[s].covers(pos.day, pos.localStart, pos.localEnd)
			if !ok {
				continue
			}
			pos.candidates = append(pos.candidates, s)
			pos.isCandidate[s] = true
			if preferredNot > 0 {
				pos.prefNot[s] = preferredNot
			}
			p.eligible[s] = true
		}
	}
	return p, nil
}

// targetStaff resolves the staff indexes a constraint applies to. Global
// constraints apply to everyone; unknown staff ids match nobody.
func targetStaff(c models.Constraint, index map[string]int, n int) []int {
	id := models.ConstraintStaffID(c)
	if id == "" {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	if s, ok := index[id]; ok {
		return []int{s}
	}
	return nil
}

// expand turns requirements into ordered positions: MinStaff required ones,
// then MaxStaff-MinStaff optional ones. Slot 0 is the lead.
func expand(reqs []Requirement) []position {
	order := make([]int, len(reqs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := reqs[order[a]], reqs[order[b]]
		if ra.DayOfWeek != rb.DayOfWeek {
			return ra.DayOfWeek < rb.DayOfWeek
		}
		if ra.Start != rb.Start {
			return ra.Start < rb.Start
		}
		if ra.End != rb.End {
			return ra.End < rb.End
		}
		return ra.ShiftType < rb.ShiftType
	})

	var out []position
	for _, ri := range order {
		r := reqs[ri]
		for slot := 0; slot < r.MaxStaff; slot++ {
			out = append(out, position{
				index:        len(out),
				req:          ri,
				slot:         slot,
				day:          r.DayOfWeek,
				shiftType:    r.ShiftType,
				role:         r.Role,
				localStart:   r.Start,
				localEnd:     r.End,
				start:        r.DayOfWeek*minutesPerDay + r.Start,
				end:          r.DayOfWeek*minutesPerDay + r.End,
				hours:        float64(r.End-r.Start) / 60,
				required:     slot < r.MinStaff,
				lead:         slot == 0,
				requiresKeys: r.RequiresKeys,
			})
		}
	}
	return out
}

// coverage holds hour-level availability for one staff member.
type coverage struct {
	status [7][models.MaxClockHour]models.AvailabilityStatus
}

func buildCoverage(rows []models.AvailabilitySlot, index map[string]int, n int) []coverage {
	cov := make([]coverage, n)
	for _, row := range rows {
		s, ok := index[row.StaffID]
		if !ok || row.DayOfWeek < 0 || row.DayOfWeek > 6 {
			continue
		}
		for h := max(row.HourStart, 0); h < min(row.HourEnd, models.MaxClockHour); h++ {
			current := cov[s].status[row.DayOfWeek][h]
			// unavailable wins over everything, preferred_not over available.
			if current == models.AvailabilityUnavailable {
				continue
			}
			if current == models.AvailabilityPreferredNot && row.Status == models.AvailabilityAvailable {
				continue
			}
			cov[s].status[row.DayOfWeek][h] = row.Status
		}
	}
	return cov
}

// covers reports whether every hour touched by [start, end) minutes is open,
// and how many of those hours fall in preferred_not windows.
func (c coverage) covers(day, start, end int) (bool, float64) {
	first := start / 60
	last := (end + 59) / 60
	if last > models.MaxClockHour {
		return false, 0
	}
	preferredNot := 0.0
	for h := first; h < last; h++ {
		switch c.status[day][h] {
		case models.AvailabilityAvailable:
		case models.AvailabilityPreferredNot:
			lo := max(start, h*60)
			hi := min(end, (h+1)*60)
			preferredNot += float64(hi-lo) / 60
		default:
			return false, 0
		}
	}
	return true, preferredNot
}
