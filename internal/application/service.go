package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/powertrack-cli/internal/domain"
	"github.com/bnema/powertrack-cli/internal/ports"
)

// PasswordRef is the secret-store key holding a profile's password.
func PasswordRef(name domain.ProfileName) string {
	return fmt.Sprintf("gnip://%s/password", name)
}

// ProfileService manages stored profiles and the passwords they reference.
type ProfileService struct {
	repo  ports.ProfileRepository
	store ports.SecretStore
}

func NewProfileService(repo ports.ProfileRepository, store ports.SecretStore) *ProfileService {
	return &ProfileService{repo: repo, store: store}
}

func (s *ProfileService) SaveProfile(ctx context.Context, cmd SaveProfileCommand) error {
	profile := cmd.Profile
	profile.ApplyDefaults()
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	existing, err := s.repo.GetByName(ctx, profile.Name)
	if err != nil {
		if !errors.Is(err, domain.ErrProfileNotFound) {
			return fmt.Errorf("get profile by name: %w", err)
		}
		existing = domain.Profile{}
	}

	if cmd.Password == "" {
		profile.PasswordRef = existing.PasswordRef
		if err := s.repo.Save(ctx, profile); err != nil {
			return fmt.Errorf("save profile: %w", err)
		}
		return nil
	}

	secretKey := PasswordRef(profile.Name)
	if err := s.store.Put(ctx, secretKey, cmd.Password); err != nil {
		return fmt.Errorf("store profile password: %w", err)
	}
	profile.PasswordRef = secretKey

	if err := s.repo.Save(ctx, profile); err != nil {
		if existing.PasswordRef == secretKey {
			return fmt.Errorf("save profile: %w", err)
		}
		if rollbackErr := s.store.Delete(ctx, secretKey); rollbackErr != nil {
			return fmt.Errorf("save profile and rollback stored password: %w", errors.Join(err, rollbackErr))
		}
		return fmt.Errorf("save profile: %w", err)
	}

	if existing.PasswordRef != "" && existing.PasswordRef != secretKey {
		if err := s.store.Delete(ctx, existing.PasswordRef); err != nil {
			return fmt.Errorf("delete previous profile password: %w", err)
		}
	}

	return nil
}

func (s *ProfileService) RemoveProfile(ctx context.Context, cmd RemoveProfileCommand) error {
	profile, err := s.repo.GetByName(ctx, cmd.Name)
	if err != nil {
		return fmt.Errorf("get profile by name: %w", err)
	}

	if err := s.repo.Delete(ctx, cmd.Name); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}

	if profile.PasswordRef == "" {
		return nil
	}
	if err := s.store.Delete(ctx, profile.PasswordRef); err != nil {
		if restoreErr := s.repo.Save(ctx, profile); restoreErr != nil {
			return fmt.Errorf("delete profile password and restore profile: %w", errors.Join(err, restoreErr))
		}
		return fmt.Errorf("delete profile password: %w", err)
	}

	return nil
}

func (s *ProfileService) Profile(ctx context.Context, name domain.ProfileName) (domain.Profile, error) {
	profile, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("get profile by name: %w", err)
	}
	return profile, nil
}

func (s *ProfileService) ListProfiles(ctx context.Context) ([]ProfileStatus, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	statuses := make([]ProfileStatus, 0, len(profiles))
	for _, profile := range profiles {
		statuses = append(statuses, ProfileStatus{
			Profile:     profile,
			HasPassword: profile.PasswordRef != "",
		})
	}
	return statuses, nil
}

// Credentials resolves the basic-auth pair for a profile. Non-empty override
// fields win over the stored user and the referenced secret.
func (s *ProfileService) Credentials(ctx context.Context, profile domain.Profile, override domain.Credentials) (domain.Credentials, error) {
	creds := domain.Credentials{User: profile.User, Password: override.Password}
	if override.User != "" {
		creds.User = override.User
	}
	if creds.Password != "" || profile.PasswordRef == "" {
		return creds, nil
	}

	password, err := s.store.Get(ctx, profile.PasswordRef)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("read password for profile %q: %w", profile.Name, err)
	}
	creds.Password = password
	return creds, nil
}

// Resolve loads a profile and its credentials in one step.
func (s *ProfileService) Resolve(ctx context.Context, name domain.ProfileName, override domain.Credentials) (domain.Profile, domain.Credentials, error) {
	profile, err := s.Profile(ctx, name)
	if err != nil {
		return domain.Profile{}, domain.Credentials{}, err
	}
	creds, err := s.Credentials(ctx, profile, override)
	if err != nil {
		return domain.Profile{}, domain.Credentials{}, err
	}
	return profile, creds, nil
}
