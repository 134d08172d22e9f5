//go:build windows

package infra

import (
	"fmt"

	"golang.org/x/sys/windows/registry"

	"github.com/hollowgate/launcherd/internal/domain"
)

const internetSettingsKey = `Software\Microsoft\Windows\CurrentVersion\Internet Settings`

// RegistryProxyStore implements domain.SystemProxyStore against the
// per-user Internet Settings registry key (the store WinINet and most
// applications honor).
type RegistryProxyStore struct{}

// NewSystemProxyStore creates the Windows registry-backed proxy store.
func NewSystemProxyStore() domain.SystemProxyStore {
	return &RegistryProxyStore{}
}

// Get reads ProxyEnable/ProxyServer/ProxyOverride.
func (s *RegistryProxyStore) Get() (domain.ProxySnapshot, error) {
	key, err := registry.OpenKey(registry.CURRENT_USER, internetSettingsKey, registry.QUERY_VALUE)
	if err != nil {
		return domain.ProxySnapshot{}, fmt.Errorf("open internet settings key: %w", err)
	}
	defer key.Close()

	var snap domain.ProxySnapshot

	enabled, _, err := key.GetIntegerValue("ProxyEnable")
	if err == nil {
		snap.Enabled = enabled != 0
	}

	// Missing values mean "never configured"; keep zero values.
	if server, _, err := key.GetStringValue("ProxyServer"); err == nil {
		snap.Server = server
	}
	if bypass, _, err := key.GetStringValue("ProxyOverride"); err == nil {
		snap.Bypass = bypass
	}

	return snap, nil
}

// Set writes ProxyEnable/ProxyServer/ProxyOverride.
func (s *RegistryProxyStore) Set(snapshot domain.ProxySnapshot) error {
	key, err := registry.OpenKey(registry.CURRENT_USER, internetSettingsKey, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open internet settings key: %w", err)
	}
	defer key.Close()

	var enable uint32
	if snapshot.Enabled {
		enable = 1
	}
	if err := key.SetDWordValue("ProxyEnable", enable); err != nil {
		return fmt.Errorf("write ProxyEnable: %w", err)
	}
	if err := key.SetStringValue("ProxyServer", snapshot.Server); err != nil {
		return fmt.Errorf("write ProxyServer: %w", err)
	}
	if err := key.SetStringValue("ProxyOverride", snapshot.Bypass); err != nil {
		return fmt.Errorf("write ProxyOverride: %w", err)
	}

	return nil
}

// Ensure RegistryProxyStore implements domain.SystemProxyStore.
var _ domain.SystemProxyStore = (*RegistryProxyStore)(nil)
