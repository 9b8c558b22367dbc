// Package wgconf renders and stores WireGuard client configuration files.
package wgconf

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"piawg/internal/pia"
	"piawg/internal/wgkey"
)

const (
	AllowedIPs          = "0.0.0.0/0"
	PersistentKeepalive = 25
	Extension           = ".conf"
)

// Build renders the configuration document for a registered key pair. The
// document has no trailing newline.
func Build(kp wgkey.KeyPair, reg pia.Registration, dns string) string {
	var b strings.Builder
	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "Address = %s/32\n", reg.PeerIP)
	fmt.Fprintf(&b, "PrivateKey = %s\n", kp.Private.String())
	fmt.Fprintf(&b, "DNS = %s\n", dns)
	b.WriteString("\n[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", reg.ServerKey)
	fmt.Fprintf(&b, "Endpoint = %s\n", net.JoinHostPort(reg.ServerIP, strconv.Itoa(reg.ServerPort)))
	fmt.Fprintf(&b, "AllowedIPs = %s\n", AllowedIPs)
	fmt.Fprintf(&b, "PersistentKeepalive = %d", PersistentKeepalive)
	return b.String()
}

// DefaultFilename names the file a document for regionID is saved under.
func DefaultFilename(regionID string) string {
	return "PIA-" + regionID + Extension
}

// Save writes doc to path atomically with owner-only permissions. The
// directory is created when missing.
func Save(path, doc string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".piawg.*"+Extension)
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(doc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

var ErrMalformed = errors.New("malformed configuration document")

// Sections splits a document into its sections, keyed by header, each
// holding its key/value lines. A repeated header is an error.
func Sections(doc string) (map[string]map[string]string, error) {
	out := map[string]map[string]string{}
	var cur map[string]string
	for n, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			name := line[1 : len(line)-1]
			if _, dup := out[name]; dup {
				return nil, fmt.Errorf("%w: duplicate section %s", ErrMalformed, line)
			}
			cur = map[string]string{}
			out[name] = cur
		default:
			key, value, ok := strings.Cut(line, "=")
			if !ok || cur == nil {
				return nil, fmt.Errorf("%w: line %d", ErrMalformed, n+1)
			}
			cur[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	return out, nil
}

// Check verifies doc has exactly one interface and one peer section with
// the keys a client needs.
func Check(doc string) error {
	sections, err := Sections(doc)
	if err != nil {
		return err
	}
	required := map[string][]string{
		"Interface": {"Address", "PrivateKey"},
		"Peer":      {"PublicKey", "Endpoint", "AllowedIPs"},
	}
	for name, keys := range required {
		sec, ok := sections[name]
		if !ok {
			return fmt.Errorf("%w: missing [%s]", ErrMalformed, name)
		}
		for _, k := range keys {
			if sec[k] == "" {
				return fmt.Errorf("%w: [%s] has no %s", ErrMalformed, name, k)
			}
		}
	}
	if _, err := wgtypes.ParseKey(sections["Interface"]["PrivateKey"]); err != nil {
		return fmt.Errorf("%w: private key: %v", ErrMalformed, err)
	}
	if _, err := wgtypes.ParseKey(sections["Peer"]["PublicKey"]); err != nil {
		return fmt.Errorf("%w: peer public key: %v", ErrMalformed, err)
	}
	return nil
}
