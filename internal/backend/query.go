package backend

import (
	"net/url"
	"strconv"
	"strings"
)

// Op is a row filter operator.
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpIn  Op = "in"
)

// Filter restricts rows by one column.
type Filter struct {
	Column string
	Op     Op
	Value  string
}

// Eq matches rows whose column equals value.
func Eq(column, value string) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// In matches rows whose column is one of values.
func In(column string, values ...string) Filter {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return Filter{Column: column, Op: OpIn, Value: "(" + strings.Join(quoted, ",") + ")"}
}

func (f Filter) encode() string {
	op := f.Op
	if op == "" {
		op = OpEq
	}
	return string(op) + "." + f.Value
}

// Query describes a row select.
type Query struct {
	Columns    string // defaults to "*"
	Filters    []Filter
	Order      string
	Descending bool
	Limit      int
}

// Where returns a copy of q with filters appended.
func (q Query) Where(filters ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), filters...)
	return q
}

func (q Query) values() url.Values {
	v := url.Values{}
	cols := q.Columns
	if cols == "" {
		cols = "*"
	}
	v.Set("select", cols)
	addFilters(v, q.Filters)
	if q.Order != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		v.Set("order", q.Order+"."+dir)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

func addFilters(v url.Values, filters []Filter) {
	for _, f := range filters {
		v.Add(f.Column, f.encode())
	}
}

// idOf returns the value of an "id" equality filter, for error details.
func idOf(filters []Filter) string {
	for _, f := range filters {
		if f.Column == "id" && (f.Op == OpEq || f.Op == "") {
			return f.Value
		}
	}
	return ""
}
