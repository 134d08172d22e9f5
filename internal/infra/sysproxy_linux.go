//go:build linux

package infra

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/hollowgate/launcherd/internal/domain"
)

// GsettingsProxyStore implements domain.SystemProxyStore against the GNOME
// proxy schema. Other desktops are out of scope; games under Wine/Proton
// inherit the GNOME settings via the portal on the distros we support.
type GsettingsProxyStore struct{}

// NewSystemProxyStore creates the gsettings-backed proxy store.
func NewSystemProxyStore() domain.SystemProxyStore {
	return &GsettingsProxyStore{}
}

func gsettingsGet(schema, key string) (string, error) {
	out, err := exec.Command("gsettings", "get", schema, key).Output()
	if err != nil {
		return "", fmt.Errorf("gsettings get %s %s: %w", schema, key, err)
	}
	return strings.Trim(strings.TrimSpace(string(out)), "'"), nil
}

func gsettingsSet(schema, key, value string) error {
	if err := exec.Command("gsettings", "set", schema, key, value).Run(); err != nil {
		return fmt.Errorf("gsettings set %s %s: %w", schema, key, err)
	}
	return nil
}

// Get reads the GNOME proxy mode, host and port.
func (s *GsettingsProxyStore) Get() (domain.ProxySnapshot, error) {
	mode, err := gsettingsGet("org.gnome.system.proxy", "mode")
	if err != nil {
		return domain.ProxySnapshot{}, err
	}

	var snap domain.ProxySnapshot
	snap.Enabled = mode == "manual"

	host, err := gsettingsGet("org.gnome.system.proxy.http", "host")
	if err != nil {
		return domain.ProxySnapshot{}, err
	}
	port, err := gsettingsGet("org.gnome.system.proxy.http", "port")
	if err != nil {
		return domain.ProxySnapshot{}, err
	}

	if host != "" {
		snap.Server = host
		if port != "" && port != "0" {
			snap.Server = host + ":" + port
		}
	}

	return snap, nil
}

// Set writes the settings back, flipping mode between manual and none.
func (s *GsettingsProxyStore) Set(snapshot domain.ProxySnapshot) error {
	if !snapshot.Enabled {
		return gsettingsSet("org.gnome.system.proxy", "mode", "none")
	}

	host, portStr, found := strings.Cut(snapshot.Server, ":")
	port := 80
	if found {
		if p, err := strconv.Atoi(portStr); err == nil {
			port = p
		}
	}

	if err := gsettingsSet("org.gnome.system.proxy.http", "host", host); err != nil {
		return err
	}
	if err := gsettingsSet("org.gnome.system.proxy.http", "port", strconv.Itoa(port)); err != nil {
		return err
	}
	return gsettingsSet("org.gnome.system.proxy", "mode", "manual")
}

// Ensure GsettingsProxyStore implements domain.SystemProxyStore.
var _ domain.SystemProxyStore = (*GsettingsProxyStore)(nil)
