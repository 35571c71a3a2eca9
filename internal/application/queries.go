package application

import "github.com/bnema/powertrack-cli/internal/domain"

type ProfileStatus struct {
	Profile     domain.Profile
	HasPassword bool
}
