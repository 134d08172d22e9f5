// Package main is the CLI entry point for launcherd.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hollowgate/launcherd/internal/config"
	"github.com/hollowgate/launcherd/internal/domain"
	"github.com/hollowgate/launcherd/internal/games"
	"github.com/hollowgate/launcherd/internal/infra"
	"github.com/hollowgate/launcherd/internal/patch"
	"github.com/hollowgate/launcherd/internal/proxy"
	"github.com/hollowgate/launcherd/internal/session"
	"github.com/hollowgate/launcherd/internal/tasks"
	"github.com/hollowgate/launcherd/internal/ui"
)

var (
	// Version info (set via ldflags)
	Version   = "0.3.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "launcherd",
	Short: "Game launcher orchestration daemon",
	Long: `launcherd launches third-party game clients against alternate servers.
It patches the game installation before launch, routes game traffic
through a local intercepting proxy while the game runs, and reverses
every change automatically when the game exits.`,
	Version: Version,
}

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Patch and launch a game, then monitor it until exit",
	Long: `Validates the installation, fetches and applies the patch for the
installed build, spawns the game and monitors it. While the game runs,
game API traffic is redirected through the local proxy. When the game
exits (or on Ctrl-C), original files are restored and the system proxy
configuration is put back exactly as it was.`,
	RunE: runLaunch,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Kill a running game and undo leftover changes",
	Long: `Force-terminates the game's processes, restores original files from
the on-disk backup trail and deregisters the system proxy if it still
points at launcherd. Works from a fresh process, so it also recovers
installations a crashed launcher left half-patched.`,
	RunE: runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system proxy state and running game processes",
	RunE:  runStatus,
}

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run the intercepting proxy standalone (for debugging)",
	RunE:  runProxy,
}

var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "List supported games and channels",
	RunE:  runGames,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

var (
	cfgFile     string
	gameID      int
	channelID   int
	gameVersion string
	installPath string
	jsonOutput  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path")

	launchCmd.Flags().IntVar(&gameID, "game", 1, "Game identifier")
	launchCmd.Flags().IntVar(&channelID, "channel", 1, "Channel identifier")
	launchCmd.Flags().StringVar(&gameVersion, "game-version", "", "Installed game version")
	launchCmd.Flags().StringVar(&installPath, "path", "", "Game installation path")

	stopCmd.Flags().IntVar(&gameID, "game", 1, "Game identifier")
	stopCmd.Flags().IntVar(&channelID, "channel", 1, "Channel identifier")
	stopCmd.Flags().StringVar(&installPath, "path", "", "Game installation path (enables file restoration)")

	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(proxyCmd)
	rootCmd.AddCommand(gamesCmd)
	rootCmd.AddCommand(versionCmd)
}

// app wires the core components together. All process-wide state lives
// here, never in package globals.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	runner *tasks.Runner
	proxy  *proxy.Manager
	orch   *session.Orchestrator
	bridge *ui.Bridge
}

func buildApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	policy := proxy.Policy{
		ShowLog:        cfg.ShowProxyLog,
		SendLog:        cfg.SendTelemetry,
		NoisePatterns:  cfg.NoisePatterns,
		SignalPatterns: cfg.SignalPatterns,
		GameDomains:    cfg.GameDomains,
		UpstreamHost:   cfg.UpstreamHost,
	}
	if len(policy.NoisePatterns) == 0 {
		policy.NoisePatterns = proxy.DefaultNoisePatterns()
	}
	if len(policy.SignalPatterns) == 0 {
		policy.SignalPatterns = proxy.DefaultSignalPatterns()
	}
	if len(policy.GameDomains) == 0 {
		policy.GameDomains = proxy.DefaultGameDomains()
	}

	proxyManager := proxy.NewManager(proxy.Config{
		ListenAddr: cfg.ProxyListenAddr,
		Policy:     policy,
	}, infra.NewSystemProxyStore(), logger)

	runner := tasks.NewRunner(logger)
	tracker := patch.NewTracker()
	client := patch.NewClient(cfg.PatchHost, logger)
	engine := patch.NewEngine(client, tracker, logger)

	var hostUI domain.HostUI = ui.Nop{}
	var bridge *ui.Bridge
	if cfg.UIListenAddr != "" {
		bridge = ui.NewBridge(logger)
		hostUI = bridge
	}

	orch := session.NewOrchestrator(
		monitorConfig(cfg),
		games.NewRegistry(),
		client,
		engine,
		proxyManager,
		infra.NewProcessManager(),
		hostUI,
		runner,
		cfg.WatchdogProcesses,
		logger,
	)

	return &app{
		cfg:    cfg,
		logger: logger,
		runner: runner,
		proxy:  proxyManager,
		orch:   orch,
		bridge: bridge,
	}, nil
}

func monitorConfig(cfg *config.Config) session.MonitorConfig {
	mc := session.DefaultMonitorConfig()
	if cfg.StartupPollSeconds > 0 {
		mc.StartupInterval = time.Duration(cfg.StartupPollSeconds) * time.Second
	}
	if cfg.StartupPollLimit > 0 {
		mc.StartupLimit = cfg.StartupPollLimit
	}
	if cfg.ActivePollSeconds > 0 {
		mc.ActiveInterval = time.Duration(cfg.ActivePollSeconds) * time.Second
	}
	if cfg.PollErrorLimit > 0 {
		mc.PollErrorLimit = cfg.PollErrorLimit
	}
	return mc
}

func runLaunch(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	if a.bridge != nil {
		go func() {
			if err := http.ListenAndServe(a.cfg.UIListenAddr, a.bridge); err != nil {
				a.logger.Warn("ui bridge server stopped", zap.Error(err))
			}
		}()
	}

	sess, err := a.orch.Launch(context.Background(), session.LaunchRequest{
		GameID:      domain.GameID(gameID),
		ChannelID:   domain.ChannelID(channelID),
		Version:     gameVersion,
		InstallPath: installPath,
	})
	if err != nil {
		var notFound *patch.NotFoundError
		if errors.As(err, &notFound) {
			payload, _ := json.MarshalIndent(notFound, "", "  ")
			fmt.Fprintln(os.Stderr, string(payload))
		}
		return err
	}

	fmt.Printf("Launched %s (game %d, channel %d, hash %s)\n",
		gameVersion, sess.GameID, sess.ChannelID, sess.ExeHash)
	fmt.Println("Monitoring game process. Press Ctrl-C to stop and restore.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		a.orch.Join()
		close(done)
	}()

	select {
	case <-sig:
		fmt.Println(a.orch.Stop())
	case <-done:
		fmt.Println("Game exited.")
	}

	// Give the detached cleanup tasks a bounded window to finish.
	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.runner.Wait(waitCtx); err != nil {
		a.logger.Warn("cleanup tasks still running at exit", zap.Error(err))
	}

	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry := games.NewRegistry()
	exeName, err := registry.ResolveExecutable(domain.GameID(gameID), domain.ChannelID(channelID))
	if err != nil {
		return err
	}

	procs := infra.NewProcessManager()
	killed, err := procs.KillByName(exeName)
	if err != nil {
		logger.Warn("failed to terminate game processes", zap.Error(err))
	}
	fmt.Printf("Terminated %d %s process(es)\n", killed, exeName)

	if installPath != "" {
		client := patch.NewClient(cfg.PatchHost, logger)
		engine := patch.NewEngine(client, patch.NewTracker(), logger)
		fmt.Println(engine.Restore(nil, installPath, nil))
	}

	store := infra.NewSystemProxyStore()
	snapshot, err := store.Get()
	if err != nil {
		return fmt.Errorf("read system proxy settings: %w", err)
	}
	if snapshot.Enabled && snapshot.Server == cfg.ProxyListenAddr {
		if err := store.Set(domain.ProxySnapshot{}); err != nil {
			return fmt.Errorf("deregister system proxy: %w", err)
		}
		fmt.Println("Deregistered leftover system proxy entry.")
	}

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store := infra.NewSystemProxyStore()
	snapshot, err := store.Get()
	if err != nil {
		return fmt.Errorf("read system proxy settings: %w", err)
	}

	switch {
	case snapshot.Enabled && snapshot.Server == cfg.ProxyListenAddr:
		fmt.Printf("System proxy: %s (launcherd)\n", snapshot.Server)
	case snapshot.Enabled:
		fmt.Printf("System proxy: %s\n", snapshot.Server)
	default:
		fmt.Println("System proxy: disabled")
	}

	procs := infra.NewProcessManager()
	fmt.Println("Game processes:")
	seen := map[string]bool{}
	for _, profile := range games.NewRegistry().List() {
		for _, channel := range profile.Channels() {
			exe, ok := profile.ExecutableName(channel)
			if !ok || seen[exe] {
				continue
			}
			seen[exe] = true
			running, err := procs.IsRunningByName(exe)
			switch {
			case err != nil:
				fmt.Printf("  %-22s unknown (%v)\n", exe, err)
			case running:
				fmt.Printf("  %-22s running\n", exe)
			default:
				fmt.Printf("  %-22s not running\n", exe)
			}
		}
	}
	return nil
}

func runProxy(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	message, err := a.proxy.Start()
	if err != nil {
		return err
	}
	fmt.Println(message)
	fmt.Println("Press Ctrl-C to stop and restore system proxy settings.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	message, err = a.proxy.Stop(stopCtx)
	if err != nil {
		return err
	}
	fmt.Println(message)
	return nil
}

func runGames(cmd *cobra.Command, args []string) error {
	registry := games.NewRegistry()

	fmt.Println("Supported games:")
	for _, profile := range registry.List() {
		fmt.Printf("\n  [%d] %s\n", profile.ID(), profile.Name())
		for _, channel := range profile.Channels() {
			exe, _ := profile.ExecutableName(channel)
			folder, _ := profile.DataFolder(channel)
			fmt.Printf("      channel %d: %s (%s)\n", channel, exe, folder)
		}
	}
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		info := map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		}
		payload, _ := json.Marshal(info)
		fmt.Println(string(payload))
		return
	}
	fmt.Printf("launcherd %s (commit %s, built %s)\n", Version, Commit, BuildTime)
}
