package client

import (
	"github.com/google/uuid"
)

// Mark is a correlation token that ties together every attempt and log line
// of one logical operation.
type Mark string

// BlankMark is used when the caller has no correlation token.
const BlankMark Mark = "blank"

// NewMark returns a fresh random mark.
func NewMark() Mark {
	return Mark(uuid.NewString())
}

// String implements fmt.Stringer.
func (m Mark) String() string {
	return string(m)
}

// orNew returns m, or a fresh mark if m is empty.
func (m Mark) orNew() Mark {
	if m == "" {
		return NewMark()
	}
	return m
}
