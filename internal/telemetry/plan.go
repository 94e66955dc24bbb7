package telemetry

import "fmt"

// Op is a comparison used in a predicate.
type Op string

const (
	OpEq  Op = "eq"
	OpGte Op = "gte"
	OpLte Op = "lte"
)

// Predicate restricts one column.
type Predicate struct {
	Column string
	Op     Op
	Value  any
}

// Selection is a store-neutral description of a row query.
type Selection struct {
	Table   string
	OrderBy string
	Desc    bool
	// Limit of zero means no limit.
	Limit int
	Where []Predicate
}

// Tables maps datasets to physical table names.
type Tables map[Dataset]string

// DefaultTables returns the stock table names.
func DefaultTables() Tables {
	return Tables{
		DatasetDaily:  "onetest",
		DatasetHourly: "followhour",
	}
}

// Table returns the physical table for ds. Unknown datasets map to their own name.
func (t Tables) Table(ds Dataset) string {
	if name, ok := t[ds]; ok && name != "" {
		return name
	}
	return string(ds)
}

// TimeColumn is the column a dataset is ordered and date-filtered by.
func TimeColumn(ds Dataset) string {
	switch ds {
	case DatasetDaily:
		return "date"
	case DatasetHourly:
		return "time"
	default:
		return "created_at"
	}
}

// Plan translates q into a Selection.
func (t Tables) Plan(q Query) (Selection, error) {
	if err := q.Validate(); err != nil {
		return Selection{}, err
	}

	sel := Selection{
		Table:   t.Table(q.Dataset),
		OrderBy: TimeColumn(q.Dataset),
		Desc:    true,
	}

	switch q.Mode {
	case ModeLast:
		sel.Limit = 1
	case ModeLatest:
		sel.Limit = q.Limit
	case ModeFilter:
		preds, err := filterPredicates(q)
		if err != nil {
			return Selection{}, err
		}
		sel.Where = preds
	}
	return sel, nil
}

func filterPredicates(q Query) ([]Predicate, error) {
	switch KindOf(q.FilterField) {
	case KindRange:
		r, err := ParseRange(q.FilterValue)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		return []Predicate{
			{Column: q.FilterField, Op: OpGte, Value: r.Low},
			{Column: q.FilterField, Op: OpLte, Value: r.High},
		}, nil
	case KindDate:
		day, err := ParseDate(q.FilterValue)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
		}
		start, end := DayBounds(day)
		col := TimeColumn(q.Dataset)
		return []Predicate{
			{Column: col, Op: OpGte, Value: start},
			{Column: col, Op: OpLte, Value: end},
		}, nil
	default:
		return []Predicate{{Column: q.FilterField, Op: OpEq, Value: q.FilterValue}}, nil
	}
}
