// Package solver assigns staff to roster positions under weighted hard and soft constraints.
//
// A run first builds a complete roster most-constrained-position first, picking
// for each position the candidate with the lowest resulting objective, then
// improves it with steepest-descent local search over reassign, fill, drop and
// swap moves until no move helps or the limits are reached. Both phases are
// deterministic: ties go to the candidate with fewer rostered hours, then to the
// lowest staff id.
package solver

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/cafe-roster-api/internal/models"
)

// Solve generates the best roster it can find within the limits. Errors are
// returned only for malformed requirements; unfillable positions are reported
// as violations.
//
// Identical input yields an identical roster only when the run stops by
// convergence or the iteration cap. A run cut short by TimeBudget or ctx
// stops after however many moves the machine managed, so Stats.StoppedBy
// tells callers whether the result is reproducible.
func Solve(ctx context.Context, in Input) (*Result, error) {
	started := time.Now()
	p, err := compile(in)
	if err != nil {
		return nil, err
	}

	st := newState(p)
	st.construct()

	limits := in.Limits
	if limits.MaxIterations <= 0 {
		limits.MaxIterations = DefaultMaxIterations
	}
	if limits.TimeBudget <= 0 {
		limits.TimeBudget = DefaultTimeBudget
	}
	stats := st.improve(ctx, limits, started.Add(limits.TimeBudget))
	stats.Duration = time.Since(started)

	result := st.result()
	result.Stats.Iterations = stats.Iterations
	result.Stats.Improvements = stats.Improvements
	result.Stats.StoppedBy = stats.StoppedBy
	result.Stats.Duration = stats.Duration
	return result, nil
}

// construct fills positions one at a time, always taking the open position with
// the fewest valid candidates. Required positions go before optional ones.
func (st *state) construct() {
	done := make([]bool, len(st.p.positions))
	for {
		pi := st.nextPosition(done)
		if pi < 0 {
			return
		}
		done[pi] = true

		baseline := st.objective()
		best, bestObj, bestHours := -1, math.Inf(1), 0.0
		for _, s := range st.p.positions[pi].candidates {
			if !st.valid(pi, s) {
				continue
			}
			hours := st.hours[s]
			st.place(pi, s)
			obj := st.objective()
			st.clear(pi)
			if best < 0 || better(obj, hours, s, bestObj, bestHours, best) {
				best, bestObj, bestHours = s, obj, hours
			}
		}
		if best < 0 {
			continue
		}
		if !st.p.positions[pi].required && bestObj >= baseline-epsilon {
			continue
		}
		st.place(pi, best)
	}
}

// better orders candidates by objective, then current hours, then staff index.
func better(obj, hours float64, s int, bestObj, bestHours float64, best int) bool {
	if obj < bestObj-epsilon {
		return true
	}
	if obj > bestObj+epsilon {
		return false
	}
	if hours < bestHours-epsilon {
		return true
	}
	if hours > bestHours+epsilon {
		return false
	}
	return s < best
}

func (st *state) nextPosition(done []bool) int {
	best, bestCount, bestRequired := -1, 0, false
	for pi := range st.p.positions {
		if done[pi] {
			continue
		}
		pos := &st.p.positions[pi]
		count := 0
		for _, s := range pos.candidates {
			if st.valid(pi, s) {
				count++
			}
		}
		switch {
		case best < 0:
		case pos.required && !bestRequired:
		case pos.required == bestRequired && count < bestCount:
		default:
			continue
		}
		best, bestCount, bestRequired = pi, count, pos.required
	}
	return best
}

type moveKind int

const (
	moveReassign moveKind = iota
	moveDrop
	moveSwap
)

type move struct {
	kind moveKind
	p, q int
	s    int
}

// improve runs steepest descent until no move lowers the objective.
func (st *state) improve(ctx context.Context, limits Limits, deadline time.Time) Stats {
	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			stats.StoppedBy = StopCancelled
			return stats
		}
		if stats.Iterations >= limits.MaxIterations {
			stats.StoppedBy = StopMaxIterations
			return stats
		}
		if time.Now().After(deadline) {
			stats.StoppedBy = StopTimeBudget
			return stats
		}
		stats.Iterations++

		mv, ok, expired := st.bestMove(deadline)
		if expired {
			stats.StoppedBy = StopTimeBudget
			return stats
		}
		if !ok {
			stats.StoppedBy = StopConverged
			return stats
		}
		st.apply(mv)
		stats.Improvements++
	}
}

func (st *state) bestMove(deadline time.Time) (move, bool, bool) {
	current := st.objective()
	bestObj := current - 1e-6
	var best move
	found := false
	consider := func(m move, obj float64) {
		if obj < bestObj {
			bestObj, best, found = obj, m, true
		}
	}

	positions := st.p.positions
	for pi := range positions {
		if pi%16 == 0 && time.Now().After(deadline) {
			return move{}, false, true
		}
		pos := &positions[pi]
		owner := st.assign[pi]
		if owner >= 0 && !pos.required {
			st.clear(pi)
			consider(move{kind: moveDrop, p: pi}, st.objective())
			st.place(pi, owner)
		}
		for _, s := range pos.candidates {
			if s == owner {
				continue
			}
			if owner >= 0 {
				st.clear(pi)
			}
			if st.valid(pi, s) {
				st.place(pi, s)
				consider(move{kind: moveReassign, p: pi, s: s}, st.objective())
				st.clear(pi)
			}
			if owner >= 0 {
				st.place(pi, owner)
			}
		}
	}

	for pi := range positions {
		a := st.assign[pi]
		if a < 0 {
			continue
		}
		if time.Now().After(deadline) {
			return move{}, false, true
		}
		for qi := pi + 1; qi < len(positions); qi++ {
			b := st.assign[qi]
			if b < 0 || a == b || !positions[qi].isCandidate[a] || !positions[pi].isCandidate[b] {
				continue
			}
			if obj, ok := st.trySwap(pi, qi); ok {
				consider(move{kind: moveSwap, p: pi, q: qi}, obj)
			}
		}
	}
	return best, found, false
}

// trySwap evaluates exchanging the owners of pi and qi and restores the state.
func (st *state) trySwap(pi, qi int) (float64, bool) {
	a := st.clear(pi)
	b := st.clear(qi)
	defer func() {
		st.place(pi, a)
		st.place(qi, b)
	}()
	if !st.valid(qi, a) {
		return 0, false
	}
	st.place(qi, a)
	ok := st.valid(pi, b)
	var obj float64
	if ok {
		st.place(pi, b)
		obj = st.objective()
		st.clear(pi)
	}
	st.clear(qi)
	return obj, ok
}

func (st *state) apply(m move) {
	switch m.kind {
	case moveDrop:
		st.clear(m.p)
	case moveReassign:
		st.clear(m.p)
		st.place(m.p, m.s)
	case moveSwap:
		a := st.clear(m.p)
		b := st.clear(m.q)
		st.place(m.q, a)
		st.place(m.p, b)
	}
}

func (st *state) result() *Result {
	res := &Result{Score: math.Round(st.objective()*100) / 100}
	res.Stats.Positions = len(st.p.positions)

	for pi, pos := range st.p.positions {
		owner := st.assign[pi]
		if pos.required {
			res.Stats.Required++
		}
		if owner < 0 && !pos.required {
			continue
		}
		a := Assignment{
			Requirement:  pos.req,
			Position:     pos.slot,
			DayOfWeek:    pos.day,
			ShiftType:    pos.shiftType,
			Start:        pos.localStart,
			End:          pos.localEnd,
			Role:         pos.role,
			RequiresKeys: pos.requiresKeys,
			Required:     pos.required,
			Lead:         pos.lead,
		}
		if owner >= 0 {
			id := st.p.staff[owner].ID
			a.StaffID = &id
			res.Stats.Filled++
		} else {
			res.Stats.Unfilled++
			day := pos.day
			res.Violations = append(res.Violations, models.Violation{
				Kind:      models.ViolationUnfilledShift,
				DayOfWeek: &day,
				ShiftType: pos.shiftType,
				Penalty:   UnfilledPenalty,
				Message: fmt.Sprintf("no eligible staff for %s %s %s-%s position %d",
					models.DayName(pos.day), pos.shiftType, models.FormatClock(pos.localStart), models.FormatClock(pos.localEnd), pos.slot+1),
			})
		}
		res.Assignments = append(res.Assignments, a)
	}

	res.Violations = append(res.Violations, st.softViolations()...)
	return res
}

func (st *state) softViolations() []models.Violation {
	var out []models.Violation
	for s, member := range st.p.staff {
		staffID := member.ID
		prefNot := 0.0
		for _, pi := range st.byStaff[s] {
			prefNot += st.p.positions[pi].prefNot[s]
		}
		if prefNot > 0 {
			out = append(out, models.Violation{
				Kind:    models.ViolationPreferredNot,
				StaffID: &staffID,
				Penalty: prefNot * PreferredNotPenaltyPerHour,
				Message: fmt.Sprintf("%s rostered for %.1f hours they would prefer not to work", member.DisplayName(), prefNot),
			})
		}
		for _, r := range st.p.staffRules[s] {
			raw := st.rulePenalty(s, r.c)
			if raw <= epsilon {
				continue
			}
			ruleID := r.id
			out = append(out, models.Violation{
				Kind:    string(r.c.Type()),
				RuleID:  &ruleID,
				StaffID: &staffID,
				Penalty: r.weight * raw,
				Message: describeResidual(r.c, member.DisplayName(), st.hours[s], raw),
			})
		}
	}

	if lo, hi, mad, ok := st.hourStats(); ok {
		if st.p.preferFairness && mad > epsilon {
			out = append(out, models.Violation{
				Kind:    models.ViolationFairnessSpread,
				Penalty: PreferFairnessWeight * mad,
				Message: fmt.Sprintf("hours deviate %.1f on average from the team mean", mad),
			})
		}
		for _, r := range st.p.globalRules {
			raw := fairnessExcess(r.c, hi-lo)
			if raw <= epsilon {
				continue
			}
			ruleID := r.id
			out = append(out, models.Violation{
				Kind:    string(r.c.Type()),
				RuleID:  &ruleID,
				Penalty: r.weight * raw,
				Message: fmt.Sprintf("hour spread %.1f exceeds the allowed %.1f", hi-lo, hi-lo-raw),
			})
		}
	}
	return out
}

func describeResidual(c models.Constraint, name string, hours, raw float64) string {
	switch v := c.(type) {
	case models.PreferredHours:
		return fmt.Sprintf("%s rostered %.1f hours, prefers %.1f", name, hours, v.PreferredHoursPerWeek)
	case models.MinHours:
		return fmt.Sprintf("%s rostered %.1f hours, below minimum %.1f", name, hours, v.MinHoursPerWeek)
	case models.MaxConsecutiveDays:
		return fmt.Sprintf("%s works %d day(s) beyond %d consecutive", name, int(raw), v.MaxDays)
	case models.NoBackToBack:
		return fmt.Sprintf("%s has %d rest gap(s) shorter than %.0f hours", name, int(raw), v.RestHours())
	}
	return fmt.Sprintf("%s: %s residual %.1f", name, c.Type(), raw)
}
