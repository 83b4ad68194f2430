package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/crowbar-gg/crowbar-backend/models"
	"github.com/crowbar-gg/crowbar-backend/repositories"
	"github.com/crowbar-gg/crowbar-backend/storage"
	"github.com/crowbar-gg/crowbar-backend/utils"
)

type UserService interface {
	GetProfileByID(ctx context.Context, id int) (*models.User, error)
	UpdateProfile(ctx context.Context, id int, input UpdateProfileInput) (*models.User, error)
	UploadAvatar(ctx context.Context, userID int, contentType string, r io.Reader) (*models.User, error)
	Deactivate(ctx context.Context, id int) error
	ListUsers(ctx context.Context, page, pageSize int) ([]*models.User, error)
	Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error)
}

// UpdateProfileInput carries identity fields only. Rating and game counters
// are owned by the match ledger and cannot be edited through a profile.
type UpdateProfileInput struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	Password *string `json:"password,omitempty"`
}

type userService struct {
	userRepo repositories.UserRepository
	uploader storage.FileUploader
}

func NewUserService(userRepo repositories.UserRepository, uploader storage.FileUploader) UserService {
	return &userService{
		userRepo: userRepo,
		uploader: uploader,
	}
}

func (s *userService) GetProfileByID(ctx context.Context, id int) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapUserRepoError(err)
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, id int, input UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapUserRepoError(err)
	}

	if input.Username != nil {
		if !usernameRegex.MatchString(*input.Username) {
			return nil, ErrUsernameInvalid
		}
		user.Username = *input.Username
	}
	if input.Email != nil {
		if !utils.IsValidEmail(*input.Email) {
			return nil, ErrEmailInvalid
		}
		user.Email = *input.Email
	}
	if input.Avatar != nil {
		user.Avatar = input.Avatar
	}
	if input.Password != nil {
		if len(*input.Password) < minPasswordLength {
			return nil, ErrPasswordTooShort
		}
		hashed, hashErr := utils.HashPassword(*input.Password)
		if hashErr != nil {
			return nil, fmt.Errorf("failed to hash password: %w", hashErr)
		}
		user.PasswordHash = hashed
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repositories.ErrUserEmailConflict):
			return nil, ErrUserEmailConflict
		case errors.Is(err, repositories.ErrUserUsernameConflict):
			return nil, ErrUserUsernameConflict
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	user.PasswordHash = ""
	return user, nil
}

// UploadAvatar stores the image and records its public URL on the profile.
// The object key carries a timestamp so a replaced avatar gets a fresh URL
// and stale CDN/browser caches cannot serve the old image.
func (s *userService) UploadAvatar(ctx context.Context, userID int, contentType string, r io.Reader) (*models.User, error) {
	if s.uploader == nil {
		return nil, ErrAvatarStorageUnavailable
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserRepoError(err)
	}

	key := fmt.Sprintf("avatars/%d-%d", userID, time.Now().UnixNano())
	result, err := s.uploader.Upload(ctx, key, contentType, r)
	if err != nil {
		return nil, fmt.Errorf("failed to upload avatar: %w", err)
	}

	user.Avatar = &result.Location
	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save avatar url: %w", err)
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *userService) Deactivate(ctx context.Context, id int) error {
	if err := s.userRepo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to deactivate user %d: %w", id, err)
	}
	return nil
}

func (s *userService) ListUsers(ctx context.Context, page, pageSize int) ([]*models.User, error) {
	limit, offset := pageWindow(page, pageSize)
	users, err := s.userRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	for _, u := range users {
		u.PasswordHash = ""
	}
	return users, nil
}

func (s *userService) Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	if limit < 1 {
		limit = 10
	}
	entries, err := s.userRepo.Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return entries, nil
}
