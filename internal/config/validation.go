package config

import (
	"errors"
	"fmt"
)

// ValidationError collects every rejected option so callers can report all
// misconfiguration in one pass.
type ValidationError struct {
	Errors []error
}

func (v *ValidationError) Add(err error) {
	v.Errors = append(v.Errors, err)
}

func (v *ValidationError) HasError() bool {
	return len(v.Errors) > 0
}

func (v *ValidationError) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	return fmt.Sprintf("%v", errors.Join(v.Errors...))
}
