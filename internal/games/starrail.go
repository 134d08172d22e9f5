package games

import (
	"github.com/hollowgate/launcherd/internal/domain"
)

// StarRailProfile implements Profile for Honkai: Star Rail.
// Unlike Genshin, both channels ship the same binary name.
type StarRailProfile struct{}

// NewStarRailProfile creates the Star Rail profile.
func NewStarRailProfile() *StarRailProfile {
	return &StarRailProfile{}
}

func (p *StarRailProfile) ID() domain.GameID {
	return 2
}

func (p *StarRailProfile) Name() string {
	return "Honkai: Star Rail"
}

func (p *StarRailProfile) Channels() []domain.ChannelID {
	return []domain.ChannelID{ChannelGlobal, ChannelChina}
}

func (p *StarRailProfile) ExecutableName(channel domain.ChannelID) (string, bool) {
	switch channel {
	case ChannelGlobal, ChannelChina:
		return "StarRail.exe", true
	}
	return "", false
}

func (p *StarRailProfile) DataFolder(channel domain.ChannelID) (string, bool) {
	switch channel {
	case ChannelGlobal, ChannelChina:
		return "StarRail_Data", true
	}
	return "", false
}

// Ensure StarRailProfile implements Profile.
var _ Profile = (*StarRailProfile)(nil)
