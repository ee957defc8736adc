package testcase_test

import (
	"testing"

	"github.com/sophialabs/payprobe/internal/domain/params"
	"github.com/sophialabs/payprobe/internal/domain/testcase"
)

func TestStringMatcher_RoundTrip(t *testing.T) {
	tests := []struct {
		in        string
		wantExact bool
		wantValue string
	}{
		{"=0.10", true, "0.10"},
		{"^pay_", false, "^pay_"},
		{"!=1", true, "1"},
		{"", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m := testcase.ParseStringMatcher(tt.in)
			if m.IsExact() != tt.wantExact {
				t.Errorf("IsExact() = %v, want %v", m.IsExact(), tt.wantExact)
			}
			if m.Value() != tt.wantValue {
				t.Errorf("Value() = %q, want %q", m.Value(), tt.wantValue)
			}
			if m.Spec() != tt.in {
				t.Errorf("Spec() = %q, want %q", m.Spec(), tt.in)
			}
		})
	}
}

func TestStringMatcher_EmptyExact(t *testing.T) {
	m := testcase.ParseStringMatcher("=")
	if m.Spec() != "^$" {
		t.Errorf("Spec() = %q, want ^$", m.Spec())
	}
}

func TestExpectationSet_Empty(t *testing.T) {
	if !(testcase.ExpectationSet{}).Empty() {
		t.Error("zero expectation set should be empty")
	}
	e := testcase.ExpectationSet{PayParams: params.Tree{"is_renew": params.Str("1")}}
	if e.Empty() {
		t.Error("expectation with pay params is not empty")
	}
}

func TestTestCase_Validate(t *testing.T) {
	tests := []struct {
		name    string
		tc      testcase.TestCase
		wantErr bool
	}{
		{"ok", testcase.TestCase{Name: "a", Path: "lapp/page"}, false},
		{"missing name", testcase.TestCase{Path: "lapp/page"}, true},
		{"missing path", testcase.TestCase{Name: "a"}, true},
		{
			"path check ok",
			testcase.TestCase{Name: "a", Path: "p", Checks: []testcase.Check{{Layer: "query", Path: "$.price"}}},
			false,
		},
		{
			"engine check ok",
			testcase.TestCase{Name: "a", Path: "p", Checks: []testcase.Check{{Engine: "expr", Source: "true"}}},
			false,
		},
		{
			"unknown engine",
			testcase.TestCase{Name: "a", Path: "p", Checks: []testcase.Check{{Engine: "lua", Source: "x"}}},
			true,
		},
		{
			"engine without source",
			testcase.TestCase{Name: "a", Path: "p", Checks: []testcase.Check{{Engine: "expr"}}},
			true,
		},
		{
			"unknown bucket",
			testcase.TestCase{Name: "a", Path: "p", Checks: []testcase.Check{{Bucket: "ignored", Path: "$.a"}}},
			true,
		},
		{
			"unknown layer",
			testcase.TestCase{Name: "a", Path: "p", Checks: []testcase.Check{{Layer: "body", Path: "$.a"}}},
			true,
		},
		{
			"neither path nor engine",
			testcase.TestCase{Name: "a", Path: "p", Checks: []testcase.Check{{Name: "empty"}}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tc.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
