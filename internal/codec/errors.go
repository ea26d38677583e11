package codec

import "fmt"

// FrameError means the binary input is malformed or truncated.
// Recoverable at the single-frame level: the frame is rejected,
// the connection policy decides anything beyond that.
type FrameError struct {
	Op     string // what was being decoded ("header", "string", ...)
	Reason string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame error: %s: %s", e.Op, e.Reason)
}

func frameErrf(op, format string, args ...any) *FrameError {
	return &FrameError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// LegacyCompatibilityError flags declared lengths/ids that are internally
// inconsistent beyond the known version-tag quirk. Treated like FrameError.
type LegacyCompatibilityError struct {
	Reason string
}

func (e *LegacyCompatibilityError) Error() string {
	return fmt.Sprintf("legacy compatibility error: %s", e.Reason)
}
