package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crowbar-gg/crowbar-backend/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound      = errors.New("match not found")
	ErrMatchPlayerInvalid = errors.New("match references an invalid player")
)

// PlayerStatsRow is the raw aggregate a stats query produces. Averages are
// NULL when the player has no matches (or no recorded durations); the service
// layer normalizes them.
type PlayerStatsRow struct {
	TotalMatches    int
	Wins            int
	Losses          int
	AvgRating       sql.NullFloat64
	AvgGameDuration sql.NullFloat64
}

type MatchRepository interface {
	// Create inserts a match row on the caller's executor so the insert can
	// share a transaction with the player updates.
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.MatchDetail, error)
	ListByUser(ctx context.Context, userID int, limit, offset int) ([]*models.MatchDetail, error)
	ListAll(ctx context.Context, limit, offset int) ([]*models.MatchDetail, error)
	ListRecent(ctx context.Context, limit int) ([]*models.MatchDetail, error)
	StatsByUser(ctx context.Context, userID int) (*PlayerStatsRow, error)
	Count(ctx context.Context) (int, error)
	CountToday(ctx context.Context) (int, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO match_history
			(player1_id, player2_id, winner_id, loser_id,
			 player1_rating_before, player2_rating_before,
			 player1_rating_after, player2_rating_after,
			 rating_change, game_type, game_duration, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, match_date`

	err := exec.QueryRowContext(ctx, query,
		match.Player1ID,
		match.Player2ID,
		match.WinnerID,
		match.LoserID,
		match.Player1RatingBefore,
		match.Player2RatingBefore,
		match.Player1RatingAfter,
		match.Player2RatingAfter,
		match.RatingChange,
		match.GameType,
		match.GameDuration,
		match.Notes,
	).Scan(&match.ID, &match.MatchDate)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			// Any of the four player FKs failing means the same thing here.
			return ErrMatchPlayerInvalid
		}
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

// matchDetailColumns joins the match row with both players' display fields
// and the winner's username.
const matchDetailColumns = `
		mh.id, mh.player1_id, mh.player2_id, mh.winner_id, mh.loser_id,
		mh.player1_rating_before, mh.player2_rating_before,
		mh.player1_rating_after, mh.player2_rating_after,
		mh.rating_change, mh.game_type, mh.game_duration, mh.match_date, mh.notes,
		u1.username, u1.avatar,
		u2.username, u2.avatar,
		uw.username`

const matchDetailJoins = `
	FROM match_history mh
	JOIN users u1 ON mh.player1_id = u1.id
	JOIN users u2 ON mh.player2_id = u2.id
	JOIN users uw ON mh.winner_id = uw.id`

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.MatchDetail, error) {
	query := `SELECT ` + matchDetailColumns + matchDetailJoins + ` WHERE mh.id = $1`

	detail, err := scanMatchDetail(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return detail, nil
}

func (r *postgresMatchRepository) ListByUser(ctx context.Context, userID int, limit, offset int) ([]*models.MatchDetail, error) {
	query := `SELECT ` + matchDetailColumns + matchDetailJoins + `
		WHERE mh.player1_id = $1 OR mh.player2_id = $1
		ORDER BY mh.match_date DESC, mh.id DESC
		LIMIT $2 OFFSET $3`

	return r.queryMatchDetails(ctx, query, userID, limit, offset)
}

func (r *postgresMatchRepository) ListAll(ctx context.Context, limit, offset int) ([]*models.MatchDetail, error) {
	query := `SELECT ` + matchDetailColumns + matchDetailJoins + `
		ORDER BY mh.match_date DESC, mh.id DESC
		LIMIT $1 OFFSET $2`

	return r.queryMatchDetails(ctx, query, limit, offset)
}

func (r *postgresMatchRepository) ListRecent(ctx context.Context, limit int) ([]*models.MatchDetail, error) {
	query := `SELECT ` + matchDetailColumns + matchDetailJoins + `
		ORDER BY mh.match_date DESC, mh.id DESC
		LIMIT $1`

	return r.queryMatchDetails(ctx, query, limit)
}

func (r *postgresMatchRepository) StatsByUser(ctx context.Context, userID int) (*PlayerStatsRow, error) {
	query := `
		SELECT
			COUNT(*) AS total_matches,
			COALESCE(SUM(CASE WHEN winner_id = $1 THEN 1 ELSE 0 END), 0) AS wins,
			COALESCE(SUM(CASE WHEN winner_id <> $1 THEN 1 ELSE 0 END), 0) AS losses,
			AVG(CASE WHEN player1_id = $1 THEN player1_rating_after ELSE player2_rating_after END) AS avg_rating,
			AVG(game_duration) AS avg_game_duration
		FROM match_history
		WHERE player1_id = $1 OR player2_id = $1`

	var row PlayerStatsRow
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&row.TotalMatches,
		&row.Wins,
		&row.Losses,
		&row.AvgRating,
		&row.AvgGameDuration,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats for user %d: %w", userID, err)
	}
	return &row, nil
}

func (r *postgresMatchRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_history`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return count, nil
}

func (r *postgresMatchRepository) CountToday(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM match_history WHERE match_date >= date_trunc('day', now())`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count today's matches: %w", err)
	}
	return count, nil
}

func (r *postgresMatchRepository) queryMatchDetails(ctx context.Context, query string, args ...interface{}) ([]*models.MatchDetail, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.MatchDetail, 0)
	for rows.Next() {
		detail, scanErr := scanMatchDetail(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, detail)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMatchDetail(row rowScanner) (*models.MatchDetail, error) {
	var d models.MatchDetail
	err := row.Scan(
		&d.ID,
		&d.Player1ID,
		&d.Player2ID,
		&d.WinnerID,
		&d.LoserID,
		&d.Player1RatingBefore,
		&d.Player2RatingBefore,
		&d.Player1RatingAfter,
		&d.Player2RatingAfter,
		&d.RatingChange,
		&d.GameType,
		&d.GameDuration,
		&d.MatchDate,
		&d.Notes,
		&d.Player1Username,
		&d.Player1Avatar,
		&d.Player2Username,
		&d.Player2Avatar,
		&d.WinnerUsername,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
