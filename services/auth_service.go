package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/crowbar-gg/crowbar-backend/models"
	"github.com/crowbar-gg/crowbar-backend/repositories"
	"github.com/crowbar-gg/crowbar-backend/utils"
)

const minPasswordLength = 6

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9]{3,30}$`)

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*models.User, error)
}

type RegisterInput struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Avatar   *string `json:"avatar,omitempty"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authService struct {
	userRepo repositories.UserRepository
}

func NewAuthService(userRepo repositories.UserRepository) AuthService {
	return &authService{userRepo: userRepo}
}

// Register creates a new player at the default rating with zeroed counters.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if !usernameRegex.MatchString(input.Username) {
		return nil, ErrUsernameInvalid
	}
	if !utils.IsValidEmail(input.Email) {
		return nil, ErrEmailInvalid
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		Avatar:       input.Avatar,
		Rating:       models.DefaultRating,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserEmailConflict):
			return nil, ErrUserEmailConflict
		case errors.Is(err, repositories.ErrUserUsernameConflict):
			return nil, ErrUserUsernameConflict
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if !utils.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, ErrAuthInvalidCredentials
	}

	// Best effort; a failed timestamp update must not block the login.
	_ = s.userRepo.UpdateLastLogin(ctx, user.ID)

	user.PasswordHash = ""
	return user, nil
}
