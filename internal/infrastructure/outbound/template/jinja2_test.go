package template

import (
	"testing"
)

func TestJinja2Compiler_Evaluate(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   bool
	}{
		{"conditional true", `{% if query.is_renew == "1" %}true{% endif %}`, true},
		{"conditional false", `{% if query.is_renew == "0" %}true{% else %}false{% endif %}`, false},
		{"surrounding whitespace", "\n  {% if bucket == \"pay_entrance\" %}true{% endif %}\n", true},
		{"helper function", `{{ has(promotion, "id") }}`, true},
		{"empty render fails", `{% if query.coupon %}true{% endif %}`, false},
	}

	c := &Jinja2Compiler{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := c.Compile("test", tt.source)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			got, reason, err := ev.Evaluate(paySubject())
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate = %v (%s), want %v", got, reason, tt.want)
			}
		})
	}
}

func TestJinja2Compiler_InvalidTemplate(t *testing.T) {
	c := &Jinja2Compiler{}
	if _, err := c.Compile("test", `{% if %}`); err == nil {
		t.Error("expected compile error")
	}
}

func TestURLBuilder_Default(t *testing.T) {
	b, err := NewURLBuilder("")
	if err != nil {
		t.Fatalf("NewURLBuilder failed: %v", err)
	}

	got, err := b.Build("https://novetest.example.com/tt/xingchen/", "/lapp/page", "?bookid=7&chapter=1")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	want := "https://novetest.example.com/tt/xingchen/lapp/page?bookid=7&chapter=1&__funweblogin__=1"
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestURLBuilder_Custom(t *testing.T) {
	b, err := NewURLBuilder(`{{ prefix|safe }}/{{ path|safe }}{% if query %}?{{ query|safe }}{% endif %}`)
	if err != nil {
		t.Fatalf("NewURLBuilder failed: %v", err)
	}
	got, err := b.Build("https://h", "p", "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if got != "https://h/p" {
		t.Errorf("Build() = %q", got)
	}
}

func TestURLBuilder_InvalidTemplate(t *testing.T) {
	if _, err := NewURLBuilder(`{{ prefix `); err == nil {
		t.Error("expected compile error")
	}
}
