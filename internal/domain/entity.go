// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

// GameID identifies a supported game.
type GameID int

// ChannelID identifies a distribution variant of a game (global vs regional).
// The (game, channel) pair selects the executable name and data folder.
type ChannelID int

// SessionState tracks where a launch attempt is in its lifecycle.
type SessionState string

const (
	StateIdle           SessionState = "idle"
	StateValidating     SessionState = "validating"
	StateHashing        SessionState = "hashing"
	StatePatching       SessionState = "patching"
	StateLaunching      SessionState = "launching"
	StateMonitorStartup SessionState = "monitor-startup"
	StateMonitorActive  SessionState = "monitor-active"
	StateCleaning       SessionState = "cleaning"
	StateFailed         SessionState = "failed"
)

// Patch method codes as delivered by the patch service.
// Any other value is unsupported and must fail before any file I/O.
const (
	MethodNone         uint = 0 // nothing to do
	MethodReplaceFiles uint = 1 // download and overwrite files
)

// PatchFile describes one replacement file in a patch instruction.
// MD5 is compared case-insensitively against downloaded content.
type PatchFile struct {
	Location string `json:"location"` // path relative to the install root
	MD5      string `json:"md5"`
	URL      string `json:"file"`
}

// PatchInstruction is the server-issued directive for one (game, version,
// channel, hash) combination. The wire field for Method is "metode",
// matching the patch service's JSON schema.
type PatchInstruction struct {
	Patch    bool        `json:"patch"`
	Proxy    bool        `json:"proxy"`
	Message  string      `json:"message"`
	Method   uint        `json:"metode"`
	Patched  []PatchFile `json:"patched"`
	Original []PatchFile `json:"original"`
}

// Session represents one active or historical game-launch attempt.
// At most one session is actively monitored process-wide at any time.
type Session struct {
	GameID      GameID
	ChannelID   ChannelID
	Version     string
	ExeHash     string
	InstallPath string

	// Mutable while the session runs. Guarded by the orchestrator's lock.
	State        SessionState
	PatchedPaths []string
	Instruction  *PatchInstruction
}

// ProxySnapshot captures OS system-proxy settings so they can be restored
// verbatim when the intercepting proxy stops, even if that means leaving
// the system proxy disabled.
type ProxySnapshot struct {
	Enabled bool
	Server  string
	Bypass  string
}

// DownloadProgress reports the state of an in-flight patch file download.
type DownloadProgress struct {
	Location   string
	TotalBytes int64
	DoneBytes  int64
}
