package pipeline

import (
	"errors"
	"iter"

	"github.com/couchcryptid/globe40-course-data/internal/domain"
)

// PlanConfig holds the knobs applied to every leg of a run.
type PlanConfig struct {
	PercentageToChange float64
	DaysEitherEnd      int
	YearShifts         []int
	Retrieval          domain.RetrievalSpec
}

// Planner turns legs into historical retrieval windows and requests.
type Planner struct {
	cfg PlanConfig
}

// NewPlanner validates the padding once. The percentage is checked per leg,
// since only the resulting window can be out of order.
func NewPlanner(cfg PlanConfig) (*Planner, error) {
	x := domain.Expansion{PercentageToChange: cfg.PercentageToChange, DaysEitherEnd: cfg.DaysEitherEnd}
	if err := x.Validate(); err != nil {
		return nil, err
	}
	return &Planner{cfg: cfg}, nil
}

// Window is one expanded, year-shifted interval of a leg.
type Window struct {
	YearShift int
	Interval  domain.Interval
}

// LegPlan is the set of windows planned for one leg.
type LegPlan struct {
	Leg     domain.Leg
	Windows []Window

	spec domain.RetrievalSpec
}

// Plan expands the leg once per configured year shift.
func (p *Planner) Plan(leg domain.Leg) (LegPlan, error) {
	iv, err := leg.Interval()
	if err != nil {
		return LegPlan{}, err
	}

	plan := LegPlan{Leg: leg, Windows: make([]Window, 0, len(p.cfg.YearShifts)), spec: p.cfg.Retrieval}
	for _, shift := range p.cfg.YearShifts {
		w, err := iv.Expand(domain.Expansion{
			PercentageToChange: p.cfg.PercentageToChange,
			DaysEitherEnd:      p.cfg.DaysEitherEnd,
			YearShift:          shift,
		})
		if err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				return LegPlan{}, ve.ForLeg(leg.Name, 0)
			}
			return LegPlan{}, err
		}
		plan.Windows = append(plan.Windows, Window{YearShift: shift, Interval: w})
	}
	return plan, nil
}

// Requests yields one retrieval request per month chunk of every window, in
// window order.
func (lp LegPlan) Requests() iter.Seq[domain.RetrievalRequest] {
	return func(yield func(domain.RetrievalRequest) bool) {
		for _, w := range lp.Windows {
			for chunk := range w.Interval.Months() {
				if !yield(lp.spec.Request(lp.Leg, w.Interval, chunk)) {
					return
				}
			}
		}
	}
}
