package search

import (
	"fmt"
	"strings"
)

// ParamError describes one unparsable or unsupported query value.
// Errors are collected per request rather than failing on the first,
// so a caller can report every problem at once.
type ParamError struct {
	Parameter string
	Value     string
	Message   string
}

func (e ParamError) Error() string {
	return fmt.Sprintf("parameter %q value %q: %s", e.Parameter, e.Value, e.Message)
}

// ErrorList aggregates parameter errors for a whole request.
type ErrorList []ParamError

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func unparsable(parameter, value, message string) ParamError {
	return ParamError{Parameter: parameter, Value: value, Message: message}
}
