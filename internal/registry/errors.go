package registry

import "fmt"

// NotFoundError is the hard-miss result of a registry lookup. Callers
// must treat it as an error path, never as a silent default identity.
type NotFoundError struct {
	Kind string // "connection", "session"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}
