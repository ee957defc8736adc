package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sophialabs/payprobe/internal/domain/flow"
	"github.com/sophialabs/payprobe/internal/infrastructure/outbound/browser"
	"github.com/sophialabs/payprobe/internal/infrastructure/outbound/logging"
)

// Config holds all configurable parameters for the application.
type Config struct {
	Profile   string
	Workspace string
	CaseFile  string
	Cases     []string // names to run; empty runs every case

	Prefix       string
	ReportURL    string
	PayURL       string
	URLTemplate  string
	RenewalKey   string
	RenewalValue string

	Headless      bool
	UserDataDir   string
	ChromePath    string
	RemoteURL     string
	Device        string
	ActionTimeout time.Duration

	NavigateTimeout time.Duration
	WaitPolicy      string
	CaseTimeout     time.Duration
	Cooldown        time.Duration
	Timings         flow.Timings

	PackageSelector string
	ConfirmSelector string
	AcknowledgeText string

	ActionRate  float64 // actions per second, 0 disables pacing
	ActionBurst int

	LogLevel  string
	LogMode   string
	LogDir    string
	TraceSize int
	ReportDir string

	AdminPort       int // 0 disables the admin API
	Watch           bool
	WatcherDebounce time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with the tt profile applied.
func DefaultConfig() Config {
	plan := flow.DefaultPlan()
	cfg := Config{
		Profile:   "tt",
		Workspace: ".",

		RenewalKey:   "is_renew",
		RenewalValue: "1",

		Headless:      false,
		Device:        "custom",
		ActionTimeout: 10 * time.Second,

		NavigateTimeout: 30 * time.Second,
		WaitPolicy:      string(flow.WaitNetworkIdle),
		CaseTimeout:     5 * time.Minute,
		Cooldown:        10 * time.Second,
		Timings:         flow.DefaultTimings(),

		PackageSelector: plan.Packages.Selector,
		ConfirmSelector: plan.Confirm.Selector,
		AcknowledgeText: plan.Acknowledge.Text,

		ActionRate:  2,
		ActionBurst: 1,

		LogLevel:  "info",
		LogMode:   logging.ModeBoth,
		LogDir:    "logs",
		TraceSize: 500,
		ReportDir: "reports",

		WatcherDebounce: 500 * time.Millisecond,
		ShutdownTimeout: 10 * time.Second,
	}
	if p, ok := BuiltinProfiles()[cfg.Profile]; ok {
		cfg.ApplyProfile(p)
	}
	return cfg
}

// Profile is a named target environment.
type Profile struct {
	Prefix      string `yaml:"prefix"`
	CaseFile    string `yaml:"case_file"`
	ReportURL   string `yaml:"report_url"`
	PayURL      string `yaml:"pay_url"`
	Device      string `yaml:"device,omitempty"`
	URLTemplate string `yaml:"url_template,omitempty"`
}

// BuiltinProfiles returns the tt and ks environments.
func BuiltinProfiles() map[string]Profile {
	profile := func(env string) Profile {
		return Profile{
			Prefix:    "https://novetest.fun.tv/" + env + "/xingchen",
			CaseFile:  "testcase-" + env + "_h5-xingchennovel-testcase.json",
			ReportURL: "https://stat.ibidian.com",
			PayURL:    "https://pct.funshion.com/v1/cartoon/pay?",
		}
	}
	return map[string]Profile{
		"tt": profile("tt"),
		"ks": profile("ks"),
	}
}

// ProfileFile is the on-disk form of a set of profiles.
type ProfileFile struct {
	Default      string             `yaml:"default"`
	Environments map[string]Profile `yaml:"environments"`
	Timings      *flow.Timings      `yaml:"timings,omitempty"`
}

// LoadProfileFile reads a YAML profile file.
func LoadProfileFile(path string) (*ProfileFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}
	var pf ProfileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse profile file: %w", err)
	}
	return &pf, nil
}

// UseProfile selects name from the built-in profiles overlaid by pf, which
// may be nil. An empty name uses the file's default.
func (c *Config) UseProfile(name string, pf *ProfileFile) error {
	profiles := BuiltinProfiles()
	if pf != nil {
		for k, p := range pf.Environments {
			profiles[k] = p
		}
		if name == "" {
			name = pf.Default
		}
		if pf.Timings != nil {
			c.Timings = *pf.Timings
		}
	}
	p, ok := profiles[name]
	if !ok {
		return fmt.Errorf("unknown profile %q", name)
	}
	c.Profile = name
	c.ApplyProfile(p)
	return nil
}

// ApplyProfile copies the non-empty fields of p.
func (c *Config) ApplyProfile(p Profile) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Prefix, p.Prefix)
	set(&c.CaseFile, p.CaseFile)
	set(&c.ReportURL, p.ReportURL)
	set(&c.PayURL, p.PayURL)
	set(&c.Device, p.Device)
	set(&c.URLTemplate, p.URLTemplate)
}

// Plan returns the element plan for the purchase loop.
func (c Config) Plan() flow.Plan {
	plan := flow.DefaultPlan()
	plan.Packages.Selector = c.PackageSelector
	plan.Confirm.Selector = c.ConfirmSelector
	plan.Acknowledge.Text = c.AcknowledgeText
	return plan
}

// ConfigError lists every problem found in a Config.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// ErrInvalidConfig is matched by every ConfigError.
var ErrInvalidConfig = errors.New("invalid configuration")

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// Validate reports a *ConfigError when the configuration cannot be run.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Prefix == "" {
		add("prefix is required")
	}
	if c.CaseFile == "" {
		add("case file is required")
	}
	if c.ReportURL == "" || c.PayURL == "" {
		add("report and pay endpoints are required")
	}
	if c.RenewalKey == "" {
		add("renewal flag key is required")
	}
	if _, err := browser.LookupDevice(c.Device); err != nil {
		add("%v", err)
	}
	switch flow.WaitPolicy(c.WaitPolicy) {
	case flow.WaitLoad, flow.WaitDOMContentLoaded, flow.WaitNetworkIdle:
	default:
		add("unknown wait policy %q", c.WaitPolicy)
	}
	if !logging.ValidMode(c.LogMode) {
		add("unknown log mode %q (both, file, console)", c.LogMode)
	}
	if c.PackageSelector == "" || c.ConfirmSelector == "" || c.AcknowledgeText == "" {
		add("package selector, confirm selector and acknowledgement text are required")
	}
	if c.NavigateTimeout <= 0 {
		add("navigate timeout must be positive")
	}
	if c.CaseTimeout < 0 || c.Cooldown < 0 {
		add("case timeout and cooldown must not be negative")
	}
	t := c.Timings
	if t.Settle < 0 || t.Confirm < 0 || t.NavigationCheck < 0 || t.BackSettle < 0 || t.AckSettle < 0 {
		add("timings must not be negative")
	}
	if c.ActionRate < 0 || c.ActionBurst < 0 {
		add("action rate and burst must not be negative")
	}
	if c.AdminPort < 0 || c.AdminPort > 65535 {
		add("admin port %d out of range", c.AdminPort)
	}
	if c.Watch && c.WatcherDebounce <= 0 {
		add("watch debounce must be positive")
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}
