// Package session drives the game launch sequence and owns the
// background monitor worker that follows the game process from spawn to
// exit, starting the proxy while it runs and reversing every change when
// it stops.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hollowgate/launcherd/internal/domain"
	"github.com/hollowgate/launcherd/internal/games"
	"github.com/hollowgate/launcherd/internal/infra"
	"github.com/hollowgate/launcherd/internal/patch"
	"github.com/hollowgate/launcherd/internal/proxy"
	"github.com/hollowgate/launcherd/internal/tasks"
)

// LaunchRequest identifies the build the user wants to run.
type LaunchRequest struct {
	GameID      domain.GameID
	ChannelID   domain.ChannelID
	Version     string
	InstallPath string
}

// MonitorConfig holds monitor loop tuning.
type MonitorConfig struct {
	StartupInterval  time.Duration // poll interval while waiting for the process to appear
	StartupLimit     int           // polls before giving up on startup
	ActiveInterval   time.Duration // poll interval while the process runs
	PollErrorLimit   int           // consecutive poll errors treated as process exit
	WatchdogInterval time.Duration // poll interval for watchdog processes
}

// DefaultMonitorConfig returns the production monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		StartupInterval:  1 * time.Second,
		StartupLimit:     30,
		ActiveInterval:   3 * time.Second,
		PollErrorLimit:   5,
		WatchdogInterval: 5 * time.Second,
	}
}

// handle bundles one session with its monitor worker's stop flag and join
// channel. Guarded by the orchestrator's lock; exactly zero or one handle
// is current at a time.
type handle struct {
	session *domain.Session
	exeName string

	stopOnce    sync.Once
	stop        chan struct{}
	done        chan struct{}
	cleanupOnce sync.Once

	// startedProxy records whether this session's monitor started the
	// proxy, so cleanup only stops what it owns.
	startedProxy bool
}

func (h *handle) signalStop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *handle) stopped() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

// Orchestrator composes the patch engine, the intercepting proxy and the
// process table into the launch/monitor/cleanup lifecycle.
type Orchestrator struct {
	cfg       MonitorConfig
	games     *games.Registry
	client    *patch.Client
	engine    *patch.Engine
	proxy     *proxy.Manager
	procs     domain.ProcessManager
	ui        domain.HostUI
	tasks     *tasks.Runner
	watchdogs []string
	logger    *zap.Logger

	mu      sync.Mutex
	current *handle
}

// NewOrchestrator creates a session orchestrator.
func NewOrchestrator(
	cfg MonitorConfig,
	registry *games.Registry,
	client *patch.Client,
	engine *patch.Engine,
	proxyManager *proxy.Manager,
	procs domain.ProcessManager,
	hostUI domain.HostUI,
	runner *tasks.Runner,
	watchdogs []string,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		games:     registry,
		client:    client,
		engine:    engine,
		proxy:     proxyManager,
		procs:     procs,
		ui:        hostUI,
		tasks:     runner,
		watchdogs: watchdogs,
		logger:    logger,
	}
}

// Launch validates the request, patches the installation and spawns the
// game, then hands off to a fresh monitor worker. Any failure before the
// spawn leaves no process behind; a spawn failure additionally force-stops
// the proxy so no orphaned proxy/monitor pair survives the error.
func (o *Orchestrator) Launch(ctx context.Context, req LaunchRequest) (*domain.Session, error) {
	session := &domain.Session{
		GameID:      req.GameID,
		ChannelID:   req.ChannelID,
		Version:     req.Version,
		InstallPath: req.InstallPath,
		State:       domain.StateValidating,
	}

	if req.InstallPath == "" {
		session.State = domain.StateFailed
		return nil, fmt.Errorf("installation path is empty")
	}
	info, err := os.Stat(req.InstallPath)
	if err != nil || !info.IsDir() {
		session.State = domain.StateFailed
		return nil, fmt.Errorf("installation path %s does not exist", req.InstallPath)
	}

	exeName, err := o.games.ResolveExecutable(req.GameID, req.ChannelID)
	if err != nil {
		session.State = domain.StateFailed
		return nil, err
	}
	exePath := filepath.Join(req.InstallPath, exeName)

	session.State = domain.StateHashing
	exeHash, err := infra.MD5File(exePath)
	if err != nil {
		session.State = domain.StateFailed
		return nil, fmt.Errorf("hash game executable %s: %w", exeName, err)
	}
	session.ExeHash = exeHash

	session.State = domain.StatePatching
	instruction, err := o.client.FetchInstruction(ctx, req.GameID, req.Version, req.ChannelID, exeHash)
	if err != nil {
		// A *patch.NotFoundError passes through untouched so the UI can
		// present its dedicated "no patch for this build" state.
		session.State = domain.StateFailed
		return nil, err
	}
	session.Instruction = instruction

	stopProgress := o.emitPatchProgress()
	applied, err := o.engine.Apply(ctx, instruction, req.InstallPath)
	stopProgress()
	session.PatchedPaths = applied
	if err != nil {
		// Safety cleanup: a previous session's monitor must not keep
		// running against a half-patched install.
		o.stopCurrentMonitor()
		session.State = domain.StateFailed
		return nil, fmt.Errorf("apply patch: %w", err)
	}

	session.State = domain.StateLaunching
	pid, err := o.procs.Start(exePath)
	if err != nil {
		o.stopCurrentMonitor()
		o.proxy.ForceStop()
		session.State = domain.StateFailed
		return nil, fmt.Errorf("spawn game process: %w", err)
	}

	o.logger.Info("game process spawned",
		zap.String("exe", exeName),
		zap.Int("pid", pid),
		zap.String("version", req.Version))
	o.ui.Emit("session:launched", map[string]any{"exe": exeName, "pid": pid})

	o.startMonitor(session, exeName)
	return session, nil
}

// emitPatchProgress relays in-flight download progress to the UI until
// the returned func is called. Emits only while downloads exist, so a
// fully cached apply stays silent.
func (o *Orchestrator) emitPatchProgress() func() {
	done := make(chan struct{})
	o.tasks.Go("patch-progress", func() error {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return nil
			case <-ticker.C:
				if snapshot := o.engine.Progress().Snapshot(); len(snapshot) > 0 {
					o.ui.Emit("patch:progress", snapshot)
				}
			}
		}
	})
	return func() { close(done) }
}

// startMonitor replaces any prior worker. The old worker is signalled and
// joined before the new one is created, so two monitors never run
// concurrently.
func (o *Orchestrator) startMonitor(session *domain.Session, exeName string) {
	o.mu.Lock()
	prev := o.current
	o.mu.Unlock()

	if prev != nil {
		prev.signalStop()
		<-prev.done
	}

	h := &handle{
		session: session,
		exeName: exeName,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	o.mu.Lock()
	o.current = h
	o.mu.Unlock()

	go o.runMonitor(h)
}

// stopCurrentMonitor signals the active worker (if any) and dispatches
// its cleanup without joining it.
func (o *Orchestrator) stopCurrentMonitor() {
	o.mu.Lock()
	h := o.current
	o.mu.Unlock()
	if h == nil {
		return
	}
	h.signalStop()
	o.dispatchCleanup(h)
}

// Stop requests the active session to stop. Cleanup is dispatched
// fire-and-forget and the worker is not joined; callers needing certainty
// poll Active.
func (o *Orchestrator) Stop() string {
	o.mu.Lock()
	h := o.current
	o.mu.Unlock()
	if h == nil {
		return "no active session"
	}

	h.signalStop()
	o.dispatchCleanup(h)
	return "stop requested"
}

// ForceStop additionally force-terminates all game processes by
// executable name.
func (o *Orchestrator) ForceStop() string {
	o.mu.Lock()
	h := o.current
	o.mu.Unlock()
	if h == nil {
		return "no active session"
	}

	h.signalStop()
	exeName := h.exeName
	o.tasks.Go("kill-game", func() error {
		killed, err := o.procs.KillByName(exeName)
		if err != nil {
			return err
		}
		o.logger.Info("force-terminated game processes",
			zap.String("exe", exeName),
			zap.Int("killed", killed))
		return nil
	})
	o.dispatchCleanup(h)
	return "force stop requested"
}

// Active reports whether a monitor worker currently exists.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil
}

// Current returns a copy of the active session, or nil.
func (o *Orchestrator) Current() *domain.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return nil
	}
	copied := *o.current.session
	copied.PatchedPaths = append([]string(nil), o.current.session.PatchedPaths...)
	return &copied
}

// Join blocks until the active monitor worker exits. Returns immediately
// when none is active. Stop deliberately does not join; this is for
// callers (the CLI) that want to outlive the session.
func (o *Orchestrator) Join() {
	o.mu.Lock()
	h := o.current
	o.mu.Unlock()
	if h != nil {
		<-h.done
	}
}

// dispatchCleanup runs the cleanup sequence exactly once per session:
// patch restoration, proxy teardown (only if this session started it)
// and UI restore, each as a detached task. Restoring from a backup that
// no longer exists or stopping a stopped proxy is a non-fatal no-op.
func (o *Orchestrator) dispatchCleanup(h *handle) {
	h.cleanupOnce.Do(func() {
		o.mu.Lock()
		h.session.State = domain.StateCleaning
		instruction := h.session.Instruction
		applied := append([]string(nil), h.session.PatchedPaths...)
		installPath := h.session.InstallPath
		startedProxy := h.startedProxy
		o.mu.Unlock()

		o.tasks.Go("patch-restore", func() error {
			message := o.engine.Restore(instruction, installPath, applied)
			o.logger.Info("patch restoration finished", zap.String("result", message))
			o.ui.Emit("session:restored", message)
			return nil
		})

		if startedProxy {
			o.tasks.Go("proxy-stop", func() error {
				o.proxy.ForceStop()
				return nil
			})
		}

		o.tasks.Go("ui-restore", func() error {
			o.ui.Restore()
			return nil
		})
	})
}
