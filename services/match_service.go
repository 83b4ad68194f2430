package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/crowbar-gg/crowbar-backend/elo"
	"github.com/crowbar-gg/crowbar-backend/live"
	"github.com/crowbar-gg/crowbar-backend/models"
	"github.com/crowbar-gg/crowbar-backend/repositories"
)

// TxBeginner is the slice of *sql.DB the match service needs to open its
// write transaction.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// FeedBroadcaster pushes committed match events to live subscribers.
type FeedBroadcaster interface {
	BroadcastToRoom(room string, payload interface{})
}

const maxNotesLength = 500

type CreateMatchInput struct {
	Player1ID    int             `json:"player1_id"`
	Player2ID    int             `json:"player2_id"`
	WinnerID     int             `json:"winner_id"`
	GameType     models.GameType `json:"game_type"`
	GameDuration *int            `json:"game_duration,omitempty"`
	Notes        *string         `json:"notes,omitempty"`
}

// MatchFeedEvent is broadcast on the live feed after a match commits.
type MatchFeedEvent struct {
	MatchID       int                  `json:"match_id"`
	Player1ID     int                  `json:"player1_id"`
	Player2ID     int                  `json:"player2_id"`
	WinnerID      int                  `json:"winner_id"`
	GameType      models.GameType      `json:"game_type"`
	RatingChanges models.RatingChanges `json:"rating_changes"`
}

func (MatchFeedEvent) MessageType() string { return "MATCH_CREATED" }

// MatchService is the ledger guaranteeing that a match record and both
// players' rating/stat updates land together or not at all. It is the only
// component allowed to write rating and game-counter fields.
type MatchService interface {
	CreateMatch(ctx context.Context, input CreateMatchInput) (*models.MatchResult, error)
	GetMatchByID(ctx context.Context, id int) (*models.MatchDetail, error)
	ListUserMatches(ctx context.Context, userID, page, pageSize int) ([]*models.MatchDetail, error)
	ListAllMatches(ctx context.Context, page, pageSize int) ([]*models.MatchDetail, error)
	ListRecentMatches(ctx context.Context, limit int) ([]*models.MatchDetail, error)
	GetPlayerStats(ctx context.Context, userID int) (*models.PlayerStats, error)
}

type matchService struct {
	db        TxBeginner
	matchRepo repositories.MatchRepository
	userRepo  repositories.UserRepository
	hub       FeedBroadcaster
	logger    *slog.Logger
	kFactor   int
}

func NewMatchService(
	db TxBeginner,
	matchRepo repositories.MatchRepository,
	userRepo repositories.UserRepository,
	hub FeedBroadcaster,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		db:        db,
		matchRepo: matchRepo,
		userRepo:  userRepo,
		hub:       hub,
		logger:    logger,
		kFactor:   elo.DefaultK,
	}
}

// CreateMatch records a finished match: it reads both players' current
// ratings, computes the ELO deltas, then inserts the match row and updates
// both player rows inside a single transaction.
//
// The rating reads happen before the transaction opens, so two overlapping
// calls touching the same player can both base their math on the same
// pre-match rating. That read-then-write window is inherited from the
// original system and left as is; the write unit itself is atomic.
func (s *matchService) CreateMatch(ctx context.Context, input CreateMatchInput) (*models.MatchResult, error) {
	if err := validateCreateMatchInput(&input); err != nil {
		return nil, err
	}

	player1, err := s.userRepo.GetByID(ctx, input.Player1ID)
	if err != nil {
		return nil, mapUserRepoError(err)
	}
	player2, err := s.userRepo.GetByID(ctx, input.Player2ID)
	if err != nil {
		return nil, mapUserRepoError(err)
	}

	player1Won := input.WinnerID == player1.ID
	loserID := player2.ID
	winnerRating, loserRating := player1.Rating, player2.Rating
	if !player1Won {
		loserID = player1.ID
		winnerRating, loserRating = player2.Rating, player1.Rating
	}

	// Deltas are oriented from the winner's rating pair.
	winnerDelta, loserDelta := elo.ComputeChange(winnerRating, loserRating, true, s.kFactor)

	player1Change, player2Change := winnerDelta, loserDelta
	if !player1Won {
		player1Change, player2Change = loserDelta, winnerDelta
	}

	player1After := player1.Rating + player1Change
	player2After := player2.Rating + player2Change

	match := &models.Match{
		Player1ID:           player1.ID,
		Player2ID:           player2.ID,
		WinnerID:            input.WinnerID,
		LoserID:             loserID,
		Player1RatingBefore: player1.Rating,
		Player2RatingBefore: player2.Rating,
		Player1RatingAfter:  player1After,
		Player2RatingAfter:  player2After,
		RatingChange:        abs(winnerDelta),
		GameType:            input.GameType,
		GameDuration:        input.GameDuration,
		Notes:               input.Notes,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", ErrMatchTransactionFailed, err)
	}

	var txErr error
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed after match transaction error",
					slog.Any("error", rbErr), slog.Any("tx_error", txErr))
			}
		}
	}()

	if txErr = s.matchRepo.Create(ctx, tx, match); txErr != nil {
		return nil, fmt.Errorf("%w: insert match: %v", ErrMatchTransactionFailed, txErr)
	}
	if txErr = s.userRepo.UpdateCompetitive(ctx, tx, player1.ID, player1After, player1Won); txErr != nil {
		return nil, fmt.Errorf("%w: update player %d: %v", ErrMatchTransactionFailed, player1.ID, txErr)
	}
	if txErr = s.userRepo.UpdateCompetitive(ctx, tx, player2.ID, player2After, !player1Won); txErr != nil {
		return nil, fmt.Errorf("%w: update player %d: %v", ErrMatchTransactionFailed, player2.ID, txErr)
	}

	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrMatchTransactionFailed, txErr)
	}

	result := &models.MatchResult{
		MatchID: match.ID,
		RatingChanges: models.RatingChanges{
			Player1: models.RatingChange{
				OldRating: player1.Rating,
				NewRating: player1After,
				Change:    player1Change,
			},
			Player2: models.RatingChange{
				OldRating: player2.Rating,
				NewRating: player2After,
				Change:    player2Change,
			},
		},
	}

	s.logger.Info("match recorded",
		slog.Int("match_id", match.ID),
		slog.Int("winner_id", input.WinnerID),
		slog.Int("rating_change", match.RatingChange),
	)

	if s.hub != nil {
		s.hub.BroadcastToRoom(live.FeedRoom, MatchFeedEvent{
			MatchID:       match.ID,
			Player1ID:     player1.ID,
			Player2ID:     player2.ID,
			WinnerID:      input.WinnerID,
			GameType:      input.GameType,
			RatingChanges: result.RatingChanges,
		})
	}

	return result, nil
}

func (s *matchService) GetMatchByID(ctx context.Context, id int) (*models.MatchDetail, error) {
	match, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}
	return match, nil
}

func (s *matchService) ListUserMatches(ctx context.Context, userID, page, pageSize int) ([]*models.MatchDetail, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, mapUserRepoError(err)
	}

	limit, offset := pageWindow(page, pageSize)
	matches, err := s.matchRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for user %d: %w", userID, err)
	}
	return matches, nil
}

func (s *matchService) ListAllMatches(ctx context.Context, page, pageSize int) ([]*models.MatchDetail, error) {
	limit, offset := pageWindow(page, pageSize)
	matches, err := s.matchRepo.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return matches, nil
}

func (s *matchService) ListRecentMatches(ctx context.Context, limit int) ([]*models.MatchDetail, error) {
	if limit < 1 {
		limit = 1
	}
	matches, err := s.matchRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent matches: %w", err)
	}
	return matches, nil
}

// GetPlayerStats aggregates a player's match history. A player with no
// matches gets an all-zero result, never an error.
func (s *matchService) GetPlayerStats(ctx context.Context, userID int) (*models.PlayerStats, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, mapUserRepoError(err)
	}

	row, err := s.matchRepo.StatsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats for user %d: %w", userID, err)
	}

	stats := &models.PlayerStats{
		TotalMatches: row.TotalMatches,
		Wins:         row.Wins,
		Losses:       row.Losses,
	}
	if row.TotalMatches > 0 {
		stats.WinRate = math.Round(float64(row.Wins)/float64(row.TotalMatches)*100*100) / 100
	}
	if row.AvgRating.Valid {
		stats.AvgRating = int(math.Round(row.AvgRating.Float64))
	}
	if row.AvgGameDuration.Valid {
		stats.AvgGameDuration = int(math.Round(row.AvgGameDuration.Float64))
	}
	return stats, nil
}

func validateCreateMatchInput(input *CreateMatchInput) error {
	if input.Player1ID <= 0 || input.Player2ID <= 0 || input.WinnerID <= 0 {
		return ErrValidationFailed
	}
	if input.Player1ID == input.Player2ID {
		return ErrSelfMatch
	}
	if input.WinnerID != input.Player1ID && input.WinnerID != input.Player2ID {
		return ErrWinnerNotInMatch
	}
	if input.GameType == "" {
		input.GameType = models.GameTypeCasual
	}
	if !models.ValidGameType(input.GameType) {
		return ErrGameTypeInvalid
	}
	if input.GameDuration != nil && *input.GameDuration <= 0 {
		return ErrDurationInvalid
	}
	if input.Notes != nil && len(*input.Notes) > maxNotesLength {
		return ErrNotesTooLong
	}
	return nil
}

func mapUserRepoError(err error) error {
	if errors.Is(err, repositories.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("failed to resolve user: %w", err)
}

func pageWindow(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return pageSize, (page - 1) * pageSize
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
