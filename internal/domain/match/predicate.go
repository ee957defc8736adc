package match

import (
	"fmt"
	"regexp"
	"strings"
)

// Predicate tests a string value and returns true if it matches.
type Predicate func(string) bool

// Not returns a predicate that inverts the given predicate.
func Not(p Predicate) Predicate {
	return func(s string) bool {
		return !p(s)
	}
}

// And returns a predicate that requires every given predicate to match.
func And(ps ...Predicate) Predicate {
	return func(s string) bool {
		for _, p := range ps {
			if !p(s) {
				return false
			}
		}
		return true
	}
}

// Or returns a predicate that matches if any given predicate does.
func Or(ps ...Predicate) Predicate {
	return func(s string) bool {
		for _, p := range ps {
			if p(s) {
				return true
			}
		}
		return false
	}
}

// Never returns a predicate that never matches.
func Never() Predicate {
	return func(string) bool { return false }
}

// Always returns a predicate that always matches.
func Always() Predicate {
	return func(string) bool { return true }
}

// Exact returns a predicate comparing for string equality.
func Exact(expected string) Predicate {
	return func(s string) bool {
		return s == expected
	}
}

// Pattern returns a predicate matching a regular expression.
func Pattern(pattern string) (Predicate, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}
	return re.MatchString, nil
}

// CompileMatcher turns a matcher spec into a predicate. A leading "=" selects
// exact comparison and a leading "!" negates the rest. An empty spec matches
// anything; anything else is a regex.
func CompileMatcher(spec string) (Predicate, error) {
	switch {
	case strings.HasPrefix(spec, "!"):
		inner, err := CompileMatcher(spec[1:])
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	case spec == "":
		return Always(), nil
	case strings.HasPrefix(spec, "="):
		return Exact(spec[1:]), nil
	default:
		return Pattern(spec)
	}
}
