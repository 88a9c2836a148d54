package universe

import "fmt"

// InvalidDataError reports bad dimensions, malformed RLE, or a diff whose
// span exceeds the history depth.
type InvalidDataError struct {
	Reason string
}

func (e *InvalidDataError) Error() string { return fmt.Sprintf("invalid data: %s", e.Reason) }

// AccessDeniedError reports a writable-region, wall, or unknown-cell
// violation on a checked mutation.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string { return fmt.Sprintf("access denied: %s", e.Reason) }
