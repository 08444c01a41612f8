package search

import (
	"strings"
)

// Operator is a comparison prefix on a search value.
type Operator string

const (
	OpEq Operator = "eq"
	OpNe Operator = "ne"
	OpGt Operator = "gt"
	OpGe Operator = "ge"
	OpLt Operator = "lt"
	OpLe Operator = "le"
)

var operatorSQL = map[Operator]string{
	OpEq: "=",
	OpNe: "<>",
	OpGt: ">",
	OpGe: ">=",
	OpLt: "<",
	OpLe: "<=",
}

// SQL returns the comparison operator for a filter template.
func (op Operator) SQL() string {
	return operatorSQL[op]
}

// holds applies the operator to a three-way comparison result
// (field vs value: negative, zero, positive).
func (op Operator) holds(cmp int) bool {
	switch op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	}
	return false
}

// splitOperator strips a leading two-letter comparison prefix from a
// raw value. Values without a prefix default to eq.
func splitOperator(raw string) (Operator, string) {
	if len(raw) >= 2 {
		prefix := Operator(strings.ToLower(raw[:2]))
		if _, ok := operatorSQL[prefix]; ok {
			return prefix, raw[2:]
		}
	}
	return OpEq, raw
}
