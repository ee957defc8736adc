package browser

import (
	"fmt"
	"sort"
	"strings"
)

// Device is a viewport emulation preset.
type Device struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	Scale     float64 `yaml:"scale"`
	Mobile    bool    `yaml:"mobile"`
	UserAgent string  `yaml:"user_agent"`
}

const (
	iosUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"
	ipadUserAgent = "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1"
)

// Devices are the built-in presets. "custom" is the small H5 viewport the
// payment dialogs are designed for.
var Devices = map[string]Device{
	"iphone6":  {Width: 375, Height: 667, Scale: 2, Mobile: true, UserAgent: iosUserAgent},
	"iphone12": {Width: 390, Height: 844, Scale: 3, Mobile: true, UserAgent: iosUserAgent},
	"ipad":     {Width: 768, Height: 1024, Scale: 2, Mobile: true, UserAgent: ipadUserAgent},
	"desktop":  {Width: 1280, Height: 720, Scale: 1},
	"custom":   {Width: 375, Height: 500, Scale: 2, Mobile: true, UserAgent: iosUserAgent},
}

// LookupDevice returns the preset for name, case-insensitively.
func LookupDevice(name string) (Device, error) {
	d, ok := Devices[strings.ToLower(name)]
	if !ok {
		return Device{}, fmt.Errorf("unknown device %q (known: %s)", name, strings.Join(DeviceNames(), ", "))
	}
	return d, nil
}

// DeviceNames returns the preset names in sorted order.
func DeviceNames() []string {
	names := make([]string, 0, len(Devices))
	for n := range Devices {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks the viewport is usable.
func (d Device) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("viewport %dx%d must be positive", d.Width, d.Height)
	}
	if d.Scale <= 0 {
		return fmt.Errorf("device scale %v must be positive", d.Scale)
	}
	return nil
}
