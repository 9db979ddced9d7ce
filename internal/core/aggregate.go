package core

import (
	"fmt"
	"time"
)

// PeriodType is the granularity of a stored aggregate.
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
)

// PeriodTypes lists every stored granularity in recompute order.
var PeriodTypes = []PeriodType{PeriodDaily, PeriodWeekly, PeriodMonthly}

func ParsePeriodType(s string) (PeriodType, error) {
	switch p := PeriodType(s); p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}

// Start returns the first day of the period of type p containing d.
func (p PeriodType) Start(d Date) Date {
	switch p {
	case PeriodWeekly:
		return d.WeekStart()
	case PeriodMonthly:
		return d.MonthStart()
	default:
		return d
	}
}

// End returns the last day (inclusive) of the period starting at start.
func (p PeriodType) End(start Date) Date {
	switch p {
	case PeriodWeekly:
		return start.AddDays(6)
	case PeriodMonthly:
		return start.MonthEnd()
	default:
		return start
	}
}

// Aggregate is a materialized spending total for one user and period.
type Aggregate struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	PeriodType  PeriodType `json:"period_type"`
	PeriodStart Date       `json:"period_start"`
	PeriodEnd   Date       `json:"period_end"`
	Total       Money      `json:"total_amount"`
	Currency    string     `json:"currency"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
