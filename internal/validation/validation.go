// Package validation wraps go-playground/validator with a shared instance and
// error messages that name every failing field.
package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is wrapped by every error Struct returns.
var ErrValidation = errors.New("validation failed")

//nolint:gochecknoglobals // validator.Validate caches struct metadata and is safe for concurrent use.
var (
	instance *validator.Validate
	once     sync.Once
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
	})
	return instance
}

// Struct validates v and returns an error listing each failing field and tag.
func Struct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return fmt.Errorf("%w: %s", ErrValidation, formatFields(FieldErrors(verrs)))
}

// FieldErrors maps each failing field namespace to the tag that rejected it.
func FieldErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, ve := range verrs {
		tag := ve.Tag()
		if ve.Param() != "" {
			tag += "=" + ve.Param()
		}
		out[ve.Namespace()] = tag
	}
	return out
}

func formatFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" ("+fields[k]+")")
	}
	return strings.Join(parts, ", ")
}
