package errors

import stderrors "errors"

// Re-exported so callers importing this package as "errors" keep the
// standard helpers.
var (
	New = stderrors.New
	Is  = stderrors.Is
	As  = stderrors.As
)
