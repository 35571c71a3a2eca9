package application

import "github.com/bnema/powertrack-cli/internal/domain"

// SaveProfileCommand creates or replaces a profile. An empty Password keeps
// the secret already referenced by the stored profile.
type SaveProfileCommand struct {
	Profile  domain.Profile
	Password string
}

type RemoveProfileCommand struct {
	Name domain.ProfileName
}
