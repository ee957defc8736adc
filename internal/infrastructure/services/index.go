package services

import (
	"fmt"
	"sort"
)

// CaseIndex holds the compiled cases of a suite in file order.
type CaseIndex struct {
	cases  []*CompiledCase
	byName map[string]*CompiledCase
}

// NewCaseIndex creates an empty index.
func NewCaseIndex() *CaseIndex {
	return &CaseIndex{
		byName: make(map[string]*CompiledCase),
	}
}

// Add appends a compiled case. Case names must be unique.
func (idx *CaseIndex) Add(cc *CompiledCase) error {
	name := cc.Case.Name
	if _, dup := idx.byName[name]; dup {
		return fmt.Errorf("duplicate case name %q", name)
	}
	idx.byName[name] = cc
	idx.cases = append(idx.cases, cc)
	return nil
}

// Lookup returns the case with the given name.
func (idx *CaseIndex) Lookup(name string) (*CompiledCase, bool) {
	cc, ok := idx.byName[name]
	return cc, ok
}

// All returns every case in file order.
func (idx *CaseIndex) All() []*CompiledCase {
	return append([]*CompiledCase(nil), idx.cases...)
}

// Select returns the named cases in file order. An empty list selects all.
func (idx *CaseIndex) Select(names []string) ([]*CompiledCase, error) {
	if len(names) == 0 {
		return idx.All(), nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := idx.byName[n]; !ok {
			return nil, fmt.Errorf("unknown case %q", n)
		}
		want[n] = true
	}
	var out []*CompiledCase
	for _, cc := range idx.cases {
		if want[cc.Case.Name] {
			out = append(out, cc)
		}
	}
	return out, nil
}

// Names returns the case names sorted alphabetically.
func (idx *CaseIndex) Names() []string {
	names := make([]string, 0, len(idx.byName))
	for n := range idx.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of cases.
func (idx *CaseIndex) Len() int {
	return len(idx.cases)
}
