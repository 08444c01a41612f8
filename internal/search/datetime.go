package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/recora/recora/internal/resource"
)

type dateKind int

const (
	dateKindInstant dateKind = iota
	dateKindDay
	dateKindYearPeriod
	dateKindMonthPeriod
)

// dateValue is one parsed date-time search value. Partial dates (year,
// year-month) normalize to a half-open period [start, end); for those
// the operator is always eq and matching means "falls within".
type dateValue struct {
	op   Operator
	kind dateKind

	// instant is set for dateKindInstant, normalized to UTC.
	instant time.Time
	// day is the UTC midnight of the calendar date for dateKindDay and
	// the period start for the period kinds.
	day time.Time
	// end is the exclusive period end for the period kinds.
	end time.Time
}

const dayLayout = "2006-01-02"

// DateTimeParameter searches a timestamp column, by default the
// resource's last-updated. Grammar: optional eq|ne|gt|ge|lt|le prefix
// followed by a zoned timestamp, a timestamp without zone (assumed
// local), a calendar date, YYYY-MM, or YYYY.
type DateTimeParameter struct {
	name   string
	column string
	values []dateValue
}

// NewDateTimeParameter creates a date-time parameter over a timestamp
// column expression such as "r.last_updated".
func NewDateTimeParameter(name, column string) *DateTimeParameter {
	return &DateTimeParameter{name: name, column: column}
}

func (p *DateTimeParameter) Name() string { return p.name }

func (p *DateTimeParameter) Configure(raw []string) []ParamError {
	var errs []ParamError
	for _, value := range raw {
		parsed, err := parseDateValue(p.name, value)
		if err != nil {
			errs = append(errs, *err)
			continue
		}
		p.values = append(p.values, parsed)
	}
	return errs
}

func parseDateValue(name, raw string) (dateValue, *ParamError) {
	// '+' in a zone offset arrives as a space when taken from a query
	// string; undo that before parsing.
	fixed := strings.ReplaceAll(raw, " ", "+")
	op, value := splitOperator(fixed)

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return dateValue{op: op, kind: dateKindInstant, instant: t.UTC().Truncate(time.Millisecond)}, nil
		}
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", value, time.Local); err == nil {
		return dateValue{op: op, kind: dateKindInstant, instant: t.UTC().Truncate(time.Millisecond)}, nil
	}
	if t, err := time.ParseInLocation(dayLayout, value, time.UTC); err == nil {
		return dateValue{op: op, kind: dateKindDay, day: t}, nil
	}

	// Year and year-month values are only meaningful as half-open
	// periods with eq semantics; a comparison prefix on them is an
	// error rather than a silent coercion.
	if t, err := time.ParseInLocation("2006-01", value, time.UTC); err == nil {
		if op != OpEq {
			e := unparsable(name, raw, "comparison prefix not allowed on a year-month value")
			return dateValue{}, &e
		}
		return dateValue{op: OpEq, kind: dateKindMonthPeriod, day: t, end: t.AddDate(0, 1, 0)}, nil
	}
	if t, err := time.ParseInLocation("2006", value, time.UTC); err == nil {
		if op != OpEq {
			e := unparsable(name, raw, "comparison prefix not allowed on a year value")
			return dateValue{}, &e
		}
		return dateValue{op: OpEq, kind: dateKindYearPeriod, day: t, end: t.AddDate(1, 0, 0)}, nil
	}

	e := unparsable(name, raw, fmt.Sprintf("%s not parsable", raw))
	return dateValue{}, &e
}

func (p *DateTimeParameter) Defined() bool { return len(p.values) > 0 }

func (p *DateTimeParameter) Filter() Fragment {
	frags := make([]Fragment, 0, len(p.values))
	for _, v := range p.values {
		frags = append(frags, p.valueFilter(v))
	}
	return Or(frags...)
}

func (p *DateTimeParameter) valueFilter(v dateValue) Fragment {
	dayExpr := "substr(" + p.column + ", 1, 10)"
	switch v.kind {
	case dateKindInstant:
		return Fragment{
			SQL:  p.column + " " + v.op.SQL() + " ?",
			Args: []any{resource.FormatTimestamp(v.instant)},
		}
	case dateKindDay:
		return Fragment{
			SQL:  dayExpr + " " + v.op.SQL() + " ?",
			Args: []any{v.day.Format(dayLayout)},
		}
	default:
		// Period filters bind exactly two placeholders, start then end.
		return Fragment{
			SQL:  dayExpr + " >= ? AND " + dayExpr + " < ?",
			Args: []any{v.day.Format(dayLayout), v.end.Format(dayLayout)},
		}
	}
}

func (p *DateTimeParameter) SortExpr() string { return p.column }

func (p *DateTimeParameter) Matches(r *resource.Resource) bool {
	last := r.LastUpdated.UTC().Truncate(time.Millisecond)
	day := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)

	for _, v := range p.values {
		switch v.kind {
		case dateKindInstant:
			if v.op.holds(compareTimes(last, v.instant)) {
				return true
			}
		case dateKindDay:
			if v.op.holds(compareTimes(day, v.day)) {
				return true
			}
		default:
			if !day.Before(v.day) && day.Before(v.end) {
				return true
			}
		}
	}
	return false
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

func (p *DateTimeParameter) CanonicalValues() []string {
	out := make([]string, 0, len(p.values))
	for _, v := range p.values {
		var value string
		switch v.kind {
		case dateKindInstant:
			value = resource.FormatTimestamp(v.instant)
		case dateKindDay:
			value = v.day.Format(dayLayout)
		case dateKindMonthPeriod:
			value = v.day.Format("2006-01")
		case dateKindYearPeriod:
			value = v.day.Format("2006")
		}
		out = append(out, string(v.op)+value)
	}
	return out
}
