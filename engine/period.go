package engine

// =============================================================================
// PERIOD - Inclusive date interval for ceiling checks and export locks
// =============================================================================

// Period is an inclusive [Start, End] date interval. Ceiling totals are
// always computed for a period, and every export batch locks one.
type Period struct {
	Start Date
	End   Date
}

// Contains returns true if the date is within the period [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// MonthOf returns the calendar month containing the date.
func MonthOf(d Date) Period {
	return Period{Start: d.StartOfMonth(), End: d.EndOfMonth()}
}

// YearOf returns the calendar year containing the date.
func YearOf(d Date) Period {
	return Period{Start: d.StartOfYear(), End: d.EndOfYear()}
}
