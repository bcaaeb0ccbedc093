// internal/diff/errors.go
package diff

import (
	"fmt"
	"strconv"
	"strings"
)

// DeltaFormatError reports a delta that is malformed or does not fit the
// text it is decoded against
type DeltaFormatError struct {
	Msg string
	Err error
}

func (e *DeltaFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed delta: %s: %v", e.Msg, e.Err)
	}
	return "malformed delta: " + e.Msg
}

func (e *DeltaFormatError) Unwrap() error {
	return e.Err
}

func deltaErrorf(format string, args ...any) *DeltaFormatError {
	return &DeltaFormatError{Msg: fmt.Sprintf(format, args...)}
}

// PatchApplicationError lists the patches of a delta whose anchors could not
// be located. It is returned together with the best-effort result.
type PatchApplicationError struct {
	Failed []int
	Total  int
}

func (e *PatchApplicationError) Error() string {
	idx := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		idx[i] = strconv.Itoa(f)
	}
	return fmt.Sprintf("%d of %d patches could not be applied (patches %s)",
		len(e.Failed), e.Total, strings.Join(idx, ", "))
}
