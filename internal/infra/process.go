package infra

import (
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/hollowgate/launcherd/internal/domain"
)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// FindByName returns PIDs of processes whose executable name matches
// (case-insensitive). Game binaries are identified by exact name because
// the launcher never holds a PID handle across its own restarts.
func (pm *ProcessManagerImpl) FindByName(name string) ([]int, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}

	var found []int
	for _, p := range procs {
		procName, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}

		if strings.EqualFold(procName, name) {
			found = append(found, int(p.Pid))
		}
	}

	return found, nil
}

// IsRunningByName reports whether any process with the executable name exists.
func (pm *ProcessManagerImpl) IsRunningByName(name string) (bool, error) {
	pids, err := pm.FindByName(name)
	if err != nil {
		return false, err
	}
	return len(pids) > 0, nil
}

// KillByName force-terminates all processes with the executable name.
func (pm *ProcessManagerImpl) KillByName(name string) (int, error) {
	pids, err := pm.FindByName(name)
	if err != nil {
		return 0, err
	}

	killed := 0
	for _, pid := range pids {
		p, err := process.NewProcess(int32(pid))
		if err != nil {
			continue // Already gone
		}
		if err := p.Kill(); err != nil {
			continue
		}
		killed++
	}

	return killed, nil
}

// Start spawns the executable detached from the launcher. The working
// directory is the executable's own directory; games resolve their data
// folder relative to it.
func (pm *ProcessManagerImpl) Start(exePath string) (int, error) {
	cmd := exec.Command(exePath)
	cmd.Dir = filepath.Dir(exePath)

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	pid := cmd.Process.Pid

	// The game outlives the monitor loop; never wait on it directly.
	_ = cmd.Process.Release()

	return pid, nil
}

// Ensure ProcessManagerImpl implements domain.ProcessManager.
var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
