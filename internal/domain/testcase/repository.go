package testcase

import (
	"context"
	"errors"
)

// ErrNotFound indicates a test case was not found.
var ErrNotFound = errors.New("test case not found")

// Repository is the port for loading test case definitions.
type Repository interface {
	// LoadAll loads every test case in file order.
	LoadAll(ctx context.Context) ([]*TestCase, error)

	// LoadByName loads a single test case by name.
	// Returns ErrNotFound if no case with the given name exists.
	LoadByName(ctx context.Context, name string) (*TestCase, error)
}
