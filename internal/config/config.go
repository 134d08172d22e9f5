// Package config loads launcher configuration from a YAML file with
// LAUNCHERD_-prefixed environment overrides.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config is the full launcher configuration.
type Config struct {
	// PatchHost is the patch service base URL.
	PatchHost string `mapstructure:"patch_host"`

	// ProxyListenAddr is the loopback address the intercepting proxy
	// binds and registers as the system proxy.
	ProxyListenAddr string `mapstructure:"proxy_listen_addr"`

	// UpstreamHost is where redirected game-domain traffic is sent.
	UpstreamHost string `mapstructure:"upstream_host"`

	GameDomains    []string `mapstructure:"game_domains"`
	NoisePatterns  []string `mapstructure:"noise_patterns"`
	SignalPatterns []string `mapstructure:"signal_patterns"`

	// ShowProxyLog logs every filtered request; SendTelemetry lets
	// matched telemetry requests through instead of answering 204.
	ShowProxyLog  bool `mapstructure:"show_proxy_log"`
	SendTelemetry bool `mapstructure:"send_telemetry"`

	// UIListenAddr is the local websocket endpoint for the window shell.
	// Empty disables the bridge.
	UIListenAddr string `mapstructure:"ui_listen_addr"`

	// Monitor tuning. Zero values fall back to the defaults.
	StartupPollSeconds int `mapstructure:"startup_poll_seconds"`
	StartupPollLimit   int `mapstructure:"startup_poll_limit"`
	ActivePollSeconds  int `mapstructure:"active_poll_seconds"`
	PollErrorLimit     int `mapstructure:"poll_error_limit"`

	// WatchdogProcesses are auxiliary process names watched while the
	// game runs (task manager and friends); sightings are reported to
	// the UI.
	WatchdogProcesses []string `mapstructure:"watchdog_processes"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		PatchHost:          "https://patch.hollowgate.dev",
		ProxyListenAddr:    "127.0.0.1:8365",
		UpstreamHost:       "api.hollowgate.dev",
		ShowProxyLog:       false,
		SendTelemetry:      false,
		StartupPollSeconds: 1,
		StartupPollLimit:   30,
		ActivePollSeconds:  3,
		PollErrorLimit:     5,
		UIListenAddr:       "127.0.0.1:8366",
		WatchdogProcesses:  []string{"Taskmgr.exe"},
	}
}

// Load reads configuration from cfgFile, or from the platform config
// directory when empty. A missing file is not an error; defaults apply.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("launcherd")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	// Every key must be registered for AutomaticEnv to consider it;
	// env overrides for keys absent from the file are dropped otherwise.
	v.SetDefault("patch_host", cfg.PatchHost)
	v.SetDefault("proxy_listen_addr", cfg.ProxyListenAddr)
	v.SetDefault("upstream_host", cfg.UpstreamHost)
	v.SetDefault("game_domains", cfg.GameDomains)
	v.SetDefault("noise_patterns", cfg.NoisePatterns)
	v.SetDefault("signal_patterns", cfg.SignalPatterns)
	v.SetDefault("show_proxy_log", cfg.ShowProxyLog)
	v.SetDefault("send_telemetry", cfg.SendTelemetry)
	v.SetDefault("ui_listen_addr", cfg.UIListenAddr)
	v.SetDefault("startup_poll_seconds", cfg.StartupPollSeconds)
	v.SetDefault("startup_poll_limit", cfg.StartupPollLimit)
	v.SetDefault("active_poll_seconds", cfg.ActivePollSeconds)
	v.SetDefault("poll_error_limit", cfg.PollErrorLimit)
	v.SetDefault("watchdog_processes", cfg.WatchdogProcesses)

	v.SetEnvPrefix("LAUNCHERD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		missingNamed := cfgFile != "" && os.IsNotExist(err)
		if !notFound && !missingNamed {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("AppData"), "launcherd")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "launcherd")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "launcherd")
	}
}
