package games

import (
	"fmt"
	"sort"

	"github.com/hollowgate/launcherd/internal/domain"
)

// Registry holds all supported game profiles.
// This is the in-memory catalog; profiles are registered at construction.
type Registry struct {
	profiles map[domain.GameID]Profile
}

// NewRegistry creates a registry with all default game profiles.
func NewRegistry() *Registry {
	r := &Registry{
		profiles: make(map[domain.GameID]Profile),
	}

	r.Register(NewGenshinProfile())
	r.Register(NewStarRailProfile())

	return r
}

// NewRegistryWithProfiles creates a registry with custom profiles (for testing).
func NewRegistryWithProfiles(profiles ...Profile) *Registry {
	r := &Registry{
		profiles: make(map[domain.GameID]Profile),
	}
	for _, p := range profiles {
		r.Register(p)
	}
	return r
}

// Register adds a profile to the registry.
func (r *Registry) Register(p Profile) {
	r.profiles[p.ID()] = p
}

// Get returns a profile by game ID.
func (r *Registry) Get(id domain.GameID) (Profile, bool) {
	p, ok := r.profiles[id]
	return p, ok
}

// List returns all registered profiles ordered by game ID.
func (r *Registry) List() []Profile {
	result := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID() < result[j].ID()
	})
	return result
}

// ResolveExecutable returns the executable name for a (game, channel) pair.
// Unsupported combinations fail with an error naming both identifiers.
func (r *Registry) ResolveExecutable(game domain.GameID, channel domain.ChannelID) (string, error) {
	p, ok := r.profiles[game]
	if !ok {
		return "", fmt.Errorf("unsupported game/channel combination: game=%d channel=%d", game, channel)
	}
	name, ok := p.ExecutableName(channel)
	if !ok || name == "" {
		return "", fmt.Errorf("unsupported game/channel combination: game=%d channel=%d", game, channel)
	}
	return name, nil
}

// ResolveDataFolder returns the data directory name for a (game, channel) pair.
// Unsupported combinations fail with an error naming both identifiers.
func (r *Registry) ResolveDataFolder(game domain.GameID, channel domain.ChannelID) (string, error) {
	p, ok := r.profiles[game]
	if !ok {
		return "", fmt.Errorf("unsupported game/channel combination: game=%d channel=%d", game, channel)
	}
	folder, ok := p.DataFolder(channel)
	if !ok || folder == "" {
		return "", fmt.Errorf("unsupported game/channel combination: game=%d channel=%d", game, channel)
	}
	return folder, nil
}
