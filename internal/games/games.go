// Package games holds the static catalog of supported games. Each game is
// one file implementing Profile; the Registry resolves (game, channel)
// pairs to executable names and data folders.
package games

import (
	"github.com/hollowgate/launcherd/internal/domain"
)

// Profile describes one supported game and its distribution channels.
type Profile interface {
	// ID returns the game identifier used by the patch service.
	ID() domain.GameID

	// Name returns the human-readable game name.
	Name() string

	// Channels returns the channel identifiers this game supports.
	Channels() []domain.ChannelID

	// ExecutableName returns the game binary name for a channel.
	ExecutableName(channel domain.ChannelID) (string, bool)

	// DataFolder returns the game data directory name for a channel.
	DataFolder(channel domain.ChannelID) (string, bool)
}
