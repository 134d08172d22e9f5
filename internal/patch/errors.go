package patch

import (
	"fmt"

	"github.com/hollowgate/launcherd/internal/domain"
)

// ErrorTypeNotFound is the machine-readable tag the UI keys its
// "no patch available for this build" state on.
const ErrorTypeNotFound = "PATCH_NOT_FOUND"

// NotFoundError is returned when the patch service answers 404 for a
// (game, version, channel, hash) lookup. It carries the full identifying
// context so the UI can show which build has no patch, rather than a
// generic fetch failure.
type NotFoundError struct {
	GameID     domain.GameID    `json:"game_id"`
	Version    string           `json:"version"`
	Channel    domain.ChannelID `json:"channel"`
	MD5        string           `json:"md5"`
	URL        string           `json:"url"`
	StatusCode int              `json:"status_code"`
	ErrorType  string           `json:"error_type"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no patch found for game=%d version=%s channel=%d md5=%s (%s)",
		e.GameID, e.Version, e.Channel, e.MD5, e.URL)
}
