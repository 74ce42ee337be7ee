package httpapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
)

// ParseDate parses a YYYY-MM-DD value. Empty input yields the zero time.
func ParseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, domainerr.Invalid(field, fmt.Sprintf("must be a YYYY-MM-DD date, got %q", value))
	}
	return t, nil
}

// ParseOptionalDate is ParseDate for pointer fields.
func ParseOptionalDate(field string, value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	t, err := ParseDate(field, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// FormatOptionalDate renders a nullable date.
func FormatOptionalDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatDate(*t)
	return &s
}
