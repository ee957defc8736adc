package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sophialabs/payprobe/internal/app"
	"github.com/sophialabs/payprobe/internal/infrastructure/outbound/browser"
)

func main() {
	cfg := app.DefaultConfig()

	profile := flag.String("profile", "", "target environment (tt, ks, or one from -profiles)")
	profilesPath := flag.String("profiles", "", "YAML file with additional environment profiles")

	var overrides app.Profile
	flag.StringVar(&overrides.Prefix, "prefix", "", "page URL prefix, overrides the profile")
	flag.StringVar(&overrides.CaseFile, "case-file", "", "case file or directory relative to -workspace, overrides the profile")
	flag.StringVar(&overrides.ReportURL, "report-url", "", "analytics endpoint substring, overrides the profile")
	flag.StringVar(&overrides.PayURL, "pay-url", "", "payment endpoint substring, overrides the profile")
	flag.StringVar(&overrides.Device, "device", "", "device preset ("+strings.Join(browser.DeviceNames(), ", ")+")")
	flag.StringVar(&overrides.URLTemplate, "url-template", "", "page URL template, overrides the profile")

	flag.StringVar(&cfg.Workspace, "workspace", cfg.Workspace, "directory holding case files")
	flag.Func("cases", "comma-separated case names to run (default all)", func(s string) error {
		for _, name := range strings.Split(s, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Cases = append(cfg.Cases, name)
			}
		}
		return nil
	})
	flag.StringVar(&cfg.RenewalKey, "renewal-key", cfg.RenewalKey, "payment query key marking a renewal purchase")
	flag.StringVar(&cfg.RenewalValue, "renewal-value", cfg.RenewalValue, "value of -renewal-key for a renewal purchase")

	flag.BoolVar(&cfg.Headless, "headless", cfg.Headless, "run the browser without a window")
	flag.StringVar(&cfg.UserDataDir, "user-data-dir", cfg.UserDataDir, "browser profile directory")
	flag.StringVar(&cfg.ChromePath, "chrome", cfg.ChromePath, "browser executable path")
	flag.StringVar(&cfg.RemoteURL, "remote", cfg.RemoteURL, "DevTools websocket URL of an already running browser")
	flag.DurationVar(&cfg.ActionTimeout, "action-timeout", cfg.ActionTimeout, "timeout for a single browser action")

	flag.DurationVar(&cfg.NavigateTimeout, "navigate-timeout", cfg.NavigateTimeout, "page load timeout")
	flag.StringVar(&cfg.WaitPolicy, "wait", cfg.WaitPolicy, "page load wait policy (load, domcontentloaded, networkidle)")
	flag.DurationVar(&cfg.CaseTimeout, "case-timeout", cfg.CaseTimeout, "deadline for one case, 0 disables")
	flag.DurationVar(&cfg.Cooldown, "cooldown", cfg.Cooldown, "wait after a failed navigation")

	flag.StringVar(&cfg.PackageSelector, "package-selector", cfg.PackageSelector, "CSS selector of purchase packages")
	flag.StringVar(&cfg.ConfirmSelector, "confirm-selector", cfg.ConfirmSelector, "CSS selector of the buy button")
	flag.StringVar(&cfg.AcknowledgeText, "ack-text", cfg.AcknowledgeText, "text of the payment acknowledgement control")

	flag.Float64Var(&cfg.ActionRate, "action-rate", cfg.ActionRate, "browser actions per second, 0 disables pacing")
	flag.IntVar(&cfg.ActionBurst, "action-burst", cfg.ActionBurst, "browser action burst size")

	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogMode, "log-mode", cfg.LogMode, "log destination (both, file, console)")
	flag.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "directory for log files")
	flag.IntVar(&cfg.TraceSize, "trace-size", cfg.TraceSize, "number of trace entries to keep")
	flag.StringVar(&cfg.ReportDir, "report-dir", cfg.ReportDir, "directory for run reports, empty disables")

	flag.IntVar(&cfg.AdminPort, "admin-port", cfg.AdminPort, "admin API port, 0 disables")
	flag.BoolVar(&cfg.Watch, "watch", cfg.Watch, "rerun the suite when case files change")
	flag.DurationVar(&cfg.WatcherDebounce, "watch-debounce", cfg.WatcherDebounce, "quiet period before a rerun")
	flag.Parse()

	var pf *app.ProfileFile
	if *profilesPath != "" {
		var err error
		if pf, err = app.LoadProfileFile(*profilesPath); err != nil {
			fail("failed to initialize: %v", err)
		}
	}
	if *profile != "" || pf != nil {
		if err := cfg.UseProfile(*profile, pf); err != nil {
			fail("failed to initialize: %v", err)
		}
	}
	cfg.ApplyProfile(overrides)

	a, err := app.New(cfg)
	if err != nil {
		fail("failed to initialize: %v", err)
	}

	if err := a.Run(context.Background()); err != nil {
		if errors.Is(err, app.ErrCasesFailed) {
			os.Exit(2)
		}
		fail("error: %v", err)
	}
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
