package models

import "time"

type UserStatus string

const (
	UserStatusActive      UserStatus = "active"
	UserStatusDeactivated UserStatus = "deactivated"
)

// DefaultRating is the rating every player starts with at registration.
const DefaultRating = 1000

type User struct {
	ID           int        `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Avatar       *string    `json:"avatar,omitempty"`
	Rating       int        `json:"rating"`
	GamesPlayed  int        `json:"games_played"`
	GamesWon     int        `json:"games_won"`
	GamesLost    int        `json:"games_lost"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LeaderboardEntry is the public projection used by the leaderboard query.
type LeaderboardEntry struct {
	ID          int     `json:"id"`
	Username    string  `json:"username"`
	Avatar      *string `json:"avatar,omitempty"`
	Rating      int     `json:"rating"`
	GamesPlayed int     `json:"games_played"`
	GamesWon    int     `json:"games_won"`
	GamesLost   int     `json:"games_lost"`
}
