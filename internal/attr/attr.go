// Package attr parses the string values administrative commands pass for
// record attributes.
package attr

import (
	"errors"
	"strconv"
	"strings"
)

var (
	errNotInteger = errors.New("value has to be integer")
	errNotFlag    = errors.New("value has to be 0 or 1")
	errNegative   = errors.New("value must not be negative")
)

// Int parses a base-10 integer.
func Int(value string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, errNotInteger
	}
	return n, nil
}

// NonNegative parses a base-10 integer that must be zero or greater.
func NonNegative(value string) (int64, error) {
	n, err := Int(value)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errNegative
	}
	return n, nil
}

// Flag parses the 0/1 integer flags the records use for booleans.
func Flag(value string) (bool, error) {
	n, err := Int(value)
	if err != nil {
		return false, err
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errNotFlag
	}
}
