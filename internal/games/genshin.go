package games

import (
	"github.com/hollowgate/launcherd/internal/domain"
)

// Channel identifiers shared by the anime-game profiles.
const (
	ChannelGlobal domain.ChannelID = 1
	ChannelChina  domain.ChannelID = 2
)

// GenshinProfile implements Profile for Genshin Impact.
// The global and China clients ship different executable and data folder
// names, so the channel fully determines both.
type GenshinProfile struct{}

// NewGenshinProfile creates the Genshin Impact profile.
func NewGenshinProfile() *GenshinProfile {
	return &GenshinProfile{}
}

func (p *GenshinProfile) ID() domain.GameID {
	return 1
}

func (p *GenshinProfile) Name() string {
	return "Genshin Impact"
}

func (p *GenshinProfile) Channels() []domain.ChannelID {
	return []domain.ChannelID{ChannelGlobal, ChannelChina}
}

func (p *GenshinProfile) ExecutableName(channel domain.ChannelID) (string, bool) {
	switch channel {
	case ChannelGlobal:
		return "GenshinImpact.exe", true
	case ChannelChina:
		return "YuanShen.exe", true
	}
	return "", false
}

func (p *GenshinProfile) DataFolder(channel domain.ChannelID) (string, bool) {
	switch channel {
	case ChannelGlobal:
		return "GenshinImpact_Data", true
	case ChannelChina:
		return "YuanShen_Data", true
	}
	return "", false
}

// Ensure GenshinProfile implements Profile.
var _ Profile = (*GenshinProfile)(nil)
