// Package dnspreset maps the DNS choices offered to users onto resolver
// addresses written into a configuration document.
package dnspreset

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"
)

const (
	PIA        = "pia"
	Cloudflare = "cloudflare"
	Google     = "google"
	Quad9      = "quad9"
	Custom     = "custom"

	// Fallback is used when the custom preset is chosen without an address.
	Fallback = "1.1.1.1"
)

var presets = map[string]string{
	PIA:        "10.0.0.243",
	Cloudflare: "1.1.1.1",
	Google:     "8.8.8.8",
	Quad9:      "9.9.9.9",
}

// Names lists the selectable presets, custom last.
func Names() []string {
	out := make([]string, 0, len(presets)+1)
	for name := range presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return append(out, Custom)
}

// Resolve returns the resolver address for preset. The custom preset uses
// custom (trimmed) or Fallback when it is blank. A preset that is itself an
// IP address is accepted as-is. An empty preset means PIA's resolver.
func Resolve(preset, custom string) (string, error) {
	preset = strings.ToLower(strings.TrimSpace(preset))
	if preset == "" {
		preset = PIA
	}
	if addr, ok := presets[preset]; ok {
		return addr, nil
	}
	if preset == Custom {
		custom = strings.TrimSpace(custom)
		if custom == "" {
			return Fallback, nil
		}
		if err := checkList(custom); err != nil {
			return "", err
		}
		return custom, nil
	}
	if _, err := netip.ParseAddr(preset); err == nil {
		return preset, nil
	}
	return "", fmt.Errorf("unknown DNS preset %q (choose one of %s or an IP address)", preset, strings.Join(Names(), ", "))
}

// checkList accepts one or more comma-separated addresses, the form the
// DNS line of a configuration takes.
func checkList(s string) error {
	for _, part := range strings.Split(s, ",") {
		if _, err := netip.ParseAddr(strings.TrimSpace(part)); err != nil {
			return fmt.Errorf("invalid custom DNS address %q", strings.TrimSpace(part))
		}
	}
	return nil
}
