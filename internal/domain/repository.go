package domain

// ProcessManager handles OS process operations.
// Identification is name-based, not PID-based: the launcher does not retain
// a PID handle across restarts, so all queries go through the process table.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes whose executable name matches
	// (case-insensitive exact match).
	FindByName(name string) ([]int, error)

	// IsRunningByName reports whether any process with the executable
	// name is currently in the process table.
	IsRunningByName(name string) (bool, error)

	// KillByName force-terminates all processes with the executable name.
	// Returns how many were killed.
	KillByName(name string) (int, error)

	// Start spawns the executable detached from the launcher, with the
	// working directory set to the executable's directory.
	Start(exePath string) (pid int, err error)
}

// SystemProxyStore reads and writes the OS system-proxy configuration.
// Implementations: Windows registry, macOS networksetup, GNOME gsettings,
// plus an in-memory store for tests.
type SystemProxyStore interface {
	// Get returns the current system proxy settings.
	Get() (ProxySnapshot, error)

	// Set replaces the system proxy settings wholesale.
	Set(snapshot ProxySnapshot) error
}

// HostUI is the launcher's window shell. The core never blocks on it;
// implementations must tolerate no UI being attached.
type HostUI interface {
	// Minimize asks the host window to minimize (game came to foreground).
	Minimize()

	// Restore asks the host window to restore itself (game exited).
	Restore()

	// Emit publishes a named progress/error event to the UI.
	Emit(event string, payload any)
}
