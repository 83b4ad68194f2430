package models

import "time"

type GameType string

const (
	GameTypeCasual     GameType = "casual"
	GameTypeRanked     GameType = "ranked"
	GameTypeTournament GameType = "tournament"
)

// ValidGameType reports whether t is one of the supported game types.
func ValidGameType(t GameType) bool {
	switch t {
	case GameTypeCasual, GameTypeRanked, GameTypeTournament:
		return true
	}
	return false
}

// Match is a single row of match_history. A match is immutable once created:
// both players' ratings before and after the game are frozen into the record.
type Match struct {
	ID                  int       `json:"id"`
	Player1ID           int       `json:"player1_id"`
	Player2ID           int       `json:"player2_id"`
	WinnerID            int       `json:"winner_id"`
	LoserID             int       `json:"loser_id"`
	Player1RatingBefore int       `json:"player1_rating_before"`
	Player2RatingBefore int       `json:"player2_rating_before"`
	Player1RatingAfter  int       `json:"player1_rating_after"`
	Player2RatingAfter  int       `json:"player2_rating_after"`
	RatingChange        int       `json:"rating_change"`
	GameType            GameType  `json:"game_type"`
	GameDuration        *int      `json:"game_duration,omitempty"`
	MatchDate           time.Time `json:"match_date"`
	Notes               *string   `json:"notes,omitempty"`
}

// MatchDetail is a match joined with player display fields for the read side.
type MatchDetail struct {
	Match
	Player1Username string  `json:"player1_username"`
	Player1Avatar   *string `json:"player1_avatar,omitempty"`
	Player2Username string  `json:"player2_username"`
	Player2Avatar   *string `json:"player2_avatar,omitempty"`
	WinnerUsername  string  `json:"winner_username"`
}

// RatingChange describes one player's old/new rating around a match.
type RatingChange struct {
	OldRating int `json:"old_rating"`
	NewRating int `json:"new_rating"`
	Change    int `json:"change"`
}

type RatingChanges struct {
	Player1 RatingChange `json:"player1"`
	Player2 RatingChange `json:"player2"`
}

// MatchResult is returned by the ledger after a successful CreateMatch.
type MatchResult struct {
	MatchID       int           `json:"match_id"`
	RatingChanges RatingChanges `json:"rating_changes"`
}

// PlayerStats aggregates a player's match history. WinRate is a percentage
// (0 when the player has no matches).
type PlayerStats struct {
	TotalMatches    int     `json:"total_matches"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	WinRate         float64 `json:"win_rate"`
	AvgRating       int     `json:"avg_rating"`
	AvgGameDuration int     `json:"avg_game_duration"`
}
