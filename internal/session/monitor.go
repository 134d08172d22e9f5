package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/hollowgate/launcherd/internal/domain"
)

// runMonitor is the per-session background worker. It waits for the game
// process to appear, runs the active phase until it disappears, then
// dispatches cleanup. The process-wide handle is cleared on the way out
// regardless of how the worker exits.
func (o *Orchestrator) runMonitor(h *handle) {
	defer func() {
		o.mu.Lock()
		if o.current == h {
			o.current = nil
		}
		o.mu.Unlock()
		close(h.done)
	}()

	o.setState(h, domain.StateMonitorStartup)

	if !o.waitForProcess(h) {
		if h.stopped() {
			o.dispatchCleanup(h)
			return
		}
		// The game never appeared: nothing was started, nothing to
		// clean up beyond the worker itself.
		o.logger.Warn("game process never appeared",
			zap.String("exe", h.exeName),
			zap.Int("polls", o.cfg.StartupLimit))
		return
	}

	o.enterActive(h)
	o.watchUntilExit(h)

	o.logger.Info("game process exited", zap.String("exe", h.exeName))
	o.dispatchCleanup(h)
}

// waitForProcess is the startup phase: poll until the process appears,
// bounded at StartupLimit polls. Returns false if it never showed up or
// the worker was stopped.
func (o *Orchestrator) waitForProcess(h *handle) bool {
	for i := 0; i < o.cfg.StartupLimit; i++ {
		if i > 0 {
			time.Sleep(o.cfg.StartupInterval)
		}
		if h.stopped() {
			return false
		}

		running, err := o.procs.IsRunningByName(h.exeName)
		if err == nil && running {
			return true
		}
		if err != nil {
			o.logger.Debug("startup poll failed", zap.Error(err))
		}
	}
	return false
}

// enterActive transitions to the active phase: start the proxy if the
// patch instruction calls for it and it is not already running, start the
// watchdog watcher, and minimize the host window.
func (o *Orchestrator) enterActive(h *handle) {
	o.setState(h, domain.StateMonitorActive)

	o.mu.Lock()
	instruction := h.session.Instruction
	o.mu.Unlock()

	if instruction != nil && instruction.Proxy && !o.proxy.IsRunning() {
		if _, err := o.proxy.Start(); err != nil {
			o.logger.Warn("failed to start proxy for session", zap.Error(err))
		} else {
			o.mu.Lock()
			h.startedProxy = true
			o.mu.Unlock()
		}
	}

	go o.watchWatchdogs(h)
	o.ui.Minimize()

	o.logger.Info("game process detected, monitoring",
		zap.String("exe", h.exeName),
		zap.Bool("proxy", h.startedProxy))
}

// watchUntilExit polls until the process disappears. Up to PollErrorLimit
// consecutive polling errors are tolerated; hitting the limit is treated
// as process exit so a broken polling mechanism cannot keep the monitor
// alive forever.
func (o *Orchestrator) watchUntilExit(h *handle) {
	errCount := 0
	for {
		if h.stopped() {
			return
		}

		time.Sleep(o.cfg.ActiveInterval)

		running, err := o.procs.IsRunningByName(h.exeName)
		if err != nil {
			errCount++
			o.logger.Warn("process poll failed",
				zap.Int("consecutive", errCount),
				zap.Error(err))
			if errCount >= o.cfg.PollErrorLimit {
				o.logger.Warn("poll error threshold reached, assuming game exited",
					zap.String("exe", h.exeName))
				return
			}
			continue
		}

		errCount = 0
		if !running {
			return
		}
	}
}

// watchWatchdogs polls the auxiliary watchdog process list (task manager
// and friends) while the session runs, reporting each appearance to the
// UI once per sighting.
func (o *Orchestrator) watchWatchdogs(h *handle) {
	if len(o.watchdogs) == 0 {
		return
	}

	ticker := time.NewTicker(o.cfg.WatchdogInterval)
	defer ticker.Stop()

	seen := make(map[string]bool)
	for {
		select {
		case <-h.stop:
			return
		case <-h.done:
			return
		case <-ticker.C:
			for _, name := range o.watchdogs {
				running, err := o.procs.IsRunningByName(name)
				if err != nil {
					continue
				}
				if running && !seen[name] {
					seen[name] = true
					o.logger.Info("watchdog process detected", zap.String("process", name))
					o.ui.Emit("watchdog:detected", map[string]string{"process": name})
				} else if !running {
					seen[name] = false
				}
			}
		}
	}
}

func (o *Orchestrator) setState(h *handle, state domain.SessionState) {
	o.mu.Lock()
	h.session.State = state
	o.mu.Unlock()
}
