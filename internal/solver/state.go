package solver

import (
	"math"
	"sort"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

const epsilon = 1e-9

// state is a mutable partial roster over a problem.
type state struct {
	p         *problem
	assign    []int
	byStaff   [][]int
	hours     []float64
	staffPen  []float64
	unfilled  int
	optFilled int
}

func newState(p *problem) *state {
	st := &state{
		p:        p,
		assign:   make([]int, len(p.positions)),
		byStaff:  make([][]int, len(p.staff)),
		hours:    make([]float64, len(p.staff)),
		staffPen: make([]float64, len(p.staff)),
	}
	for i, pos := range p.positions {
		st.assign[i] = -1
		if pos.required {
			st.unfilled++
		}
	}
	for s := range p.staff {
		st.staffPen[s] = st.staffPenalty(s)
	}
	return st
}

// valid checks the dynamic hard constraints for putting staff s on position pi.
func (st *state) valid(pi, s int) bool {
	pos := &st.p.positions[pi]
	if !pos.isCandidate[s] {
		return false
	}
	if st.hours[s]+pos.hours > st.p.maxHours[s]+epsilon {
		return false
	}
	for _, other := range st.byStaff[s] {
		o := &st.p.positions[other]
		if pos.start < o.end && o.start < pos.end {
			return false
		}
	}
	return true
}

func (st *state) place(pi, s int) {
	pos := &st.p.positions[pi]
	st.assign[pi] = s
	list := append(st.byStaff[s], pi)
	sort.Slice(list, func(a, b int) bool {
		pa, pb := &st.p.positions[list[a]], &st.p.positions[list[b]]
		if pa.start != pb.start {
			return pa.start < pb.start
		}
		return pa.index < pb.index
	})
	st.byStaff[s] = list
	st.hours[s] += pos.hours
	if pos.required {
		st.unfilled--
	} else {
		st.optFilled++
	}
	st.staffPen[s] = st.staffPenalty(s)
}

func (st *state) clear(pi int) int {
	s := st.assign[pi]
	if s < 0 {
		return -1
	}
	pos := &st.p.positions[pi]
	st.assign[pi] = -1
	list := st.byStaff[s]
	for i, v := range list {
		if v == pi {
			st.byStaff[s] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	st.hours[s] -= pos.hours
	if st.hours[s] < epsilon {
		st.hours[s] = 0
	}
	if pos.required {
		st.unfilled++
	} else {
		st.optFilled--
	}
	st.staffPen[s] = st.staffPenalty(s)
	return s
}

// objective is the value the solver minimises.
func (st *state) objective() float64 {
	total := UnfilledPenalty*float64(st.unfilled) - OptionalFillReward*float64(st.optFilled)
	for _, pen := range st.staffPen {
		total += pen
	}
	return total + st.globalPenalty()
}

func (st *state) staffPenalty(s int) float64 {
	pen := 0.0
	for _, pi := range st.byStaff[s] {
		pen += st.p.positions[pi].prefNot[s] * PreferredNotPenaltyPerHour
	}
	for _, r := range st.p.staffRules[s] {
		pen += r.weight * st.rulePenalty(s, r.c)
	}
	return pen
}

// rulePenalty is the unweighted residual of a per-staff soft rule.
func (st *state) rulePenalty(s int, c models.Constraint) float64 {
	h := st.hours[s]
	switch v := c.(type) {
	case models.PreferredHours:
		return math.Abs(h - v.PreferredHoursPerWeek)
	case models.MinHours:
		return math.Max(0, v.MinHoursPerWeek-h)
	case models.MaxConsecutiveDays:
		return float64(excessConsecutiveDays(st.workedDays(s), v.MaxDays))
	case models.NoBackToBack:
		return float64(st.shortRests(s, v.RestHours()))
	case models.MaxHours, models.DayOff, models.RequiresKeysForOpening, models.Fairness:
		return 0
	}
	return 0
}

func (st *state) workedDays(s int) [7]bool {
	var days [7]bool
	for _, pi := range st.byStaff[s] {
		days[st.p.positions[pi].day] = true
	}
	return days
}

func excessConsecutiveDays(days [7]bool, limit int) int {
	excess, run := 0, 0
	flush := func() {
		if run > limit {
			excess += run - limit
		}
		run = 0
	}
	for _, worked := range days {
		if worked {
			run++
			continue
		}
		flush()
	}
	flush()
	return excess
}

// shortRests counts consecutive shifts separated by less than restHours.
func (st *state) shortRests(s int, restHours float64) int {
	list := st.byStaff[s]
	count := 0
	minGap := int(restHours * 60)
	for i := 1; i < len(list); i++ {
		prev := &st.p.positions[list[i-1]]
		next := &st.p.positions[list[i]]
		if next.start-prev.end < minGap {
			count++
		}
	}
	return count
}

// hourStats returns min, max and mean absolute deviation of hours over eligible staff.
func (st *state) hourStats() (lo, hi, mad float64, ok bool) {
	n := 0
	sum := 0.0
	lo, hi = math.Inf(1), math.Inf(-1)
	for s, h := range st.hours {
		if !st.p.eligible[s] {
			continue
		}
		n++
		sum += h
		lo = math.Min(lo, h)
		hi = math.Max(hi, h)
	}
	if n == 0 {
		return 0, 0, 0, false
	}
	mean := sum / float64(n)
	for s, h := range st.hours {
		if st.p.eligible[s] {
			mad += math.Abs(h - mean)
		}
	}
	return lo, hi, mad / float64(n), true
}

func (st *state) globalPenalty() float64 {
	if len(st.p.globalRules) == 0 && !st.p.preferFairness {
		return 0
	}
	lo, hi, mad, ok := st.hourStats()
	if !ok {
		return 0
	}
	pen := 0.0
	for _, r := range st.p.globalRules {
		pen += r.weight * fairnessExcess(r.c, hi-lo)
	}
	if st.p.preferFairness {
		pen += PreferFairnessWeight * mad
	}
	return pen
}

func fairnessExcess(c models.Constraint, spread float64) float64 {
	if f, ok := c.(models.Fairness); ok {
		return math.Max(0, spread-f.MaxHourSpread)
	}
	return 0
}
