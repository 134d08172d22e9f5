//go:build darwin

package infra

import (
	"bufio"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hollowgate/launcherd/internal/domain"
)

// networksetup operates per network service; the primary interface is
// almost always "Wi-Fi" on the machines this launcher targets.
const defaultNetworkService = "Wi-Fi"

// NetworksetupProxyStore implements domain.SystemProxyStore by shelling
// out to /usr/sbin/networksetup.
type NetworksetupProxyStore struct {
	service string
}

// NewSystemProxyStore creates the macOS networksetup-backed proxy store.
func NewSystemProxyStore() domain.SystemProxyStore {
	return &NetworksetupProxyStore{service: defaultNetworkService}
}

// Get parses `networksetup -getwebproxy <service>` output.
func (s *NetworksetupProxyStore) Get() (domain.ProxySnapshot, error) {
	out, err := exec.Command("networksetup", "-getwebproxy", s.service).Output()
	if err != nil {
		return domain.ProxySnapshot{}, fmt.Errorf("networksetup -getwebproxy: %w", err)
	}

	var snap domain.ProxySnapshot
	var server, port string

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := scanner.Text()
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Enabled":
			snap.Enabled = strings.EqualFold(value, "Yes")
		case "Server":
			server = value
		case "Port":
			port = value
		}
	}

	if server != "" {
		snap.Server = server
		if port != "" && port != "0" {
			snap.Server = server + ":" + port
		}
	}

	return snap, nil
}

// Set writes the proxy settings back through networksetup.
func (s *NetworksetupProxyStore) Set(snapshot domain.ProxySnapshot) error {
	if !snapshot.Enabled {
		if err := exec.Command("networksetup", "-setwebproxystate", s.service, "off").Run(); err != nil {
			return fmt.Errorf("networksetup -setwebproxystate off: %w", err)
		}
		return nil
	}

	host, port, found := strings.Cut(snapshot.Server, ":")
	if !found {
		port = "80"
	}

	if err := exec.Command("networksetup", "-setwebproxy", s.service, host, port).Run(); err != nil {
		return fmt.Errorf("networksetup -setwebproxy: %w", err)
	}
	if err := exec.Command("networksetup", "-setwebproxystate", s.service, "on").Run(); err != nil {
		return fmt.Errorf("networksetup -setwebproxystate on: %w", err)
	}

	return nil
}

// Ensure NetworksetupProxyStore implements domain.SystemProxyStore.
var _ domain.SystemProxyStore = (*NetworksetupProxyStore)(nil)
