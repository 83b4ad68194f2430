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
	ErrUserNotFound         = errors.New("user not found")
	ErrUserEmailConflict    = errors.New("user email conflict")
	ErrUserUsernameConflict = errors.New("user username conflict")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	// UpdateCompetitive applies the ledger's mutation of a player row: new
	// rating plus one more game won or lost. It runs on the caller's executor
	// so it can participate in the match-creation transaction.
	UpdateCompetitive(ctx context.Context, exec SQLExecutor, userID int, newRating int, won bool) error
	UpdateLastLogin(ctx context.Context, id int) error
	Deactivate(ctx context.Context, id int) error
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error)
	CountActive(ctx context.Context) (int, error)
	CountActivePlayers(ctx context.Context) (int, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, avatar, rating,
		games_played, games_won, games_lost, status, created_at, updated_at, last_login`

func (r *postgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, avatar, rating)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, status, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Avatar,
		user.Rating,
	).Scan(&user.ID, &user.Status, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case "users_email_key":
				return ErrUserEmailConflict
			case "users_username_key":
				return ErrUserUsernameConflict
			}
		}
		return err
	}
	return nil
}

// GetByID resolves an active user only; deactivated accounts behave as absent.
func (r *postgresUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND status = 'active'`
	return r.scanUser(ctx, query, id)
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 AND status = 'active'`
	return r.scanUser(ctx, query, email)
}

func (r *postgresUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1 AND status = 'active'`
	return r.scanUser(ctx, query, username)
}

// UpdateProfile writes identity fields only. Rating and game counters are
// owned by the match ledger and never touched here.
func (r *postgresUserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET
			username = $1,
			email = $2,
			password_hash = $3,
			avatar = $4,
			updated_at = now()
		WHERE id = $5 AND status = 'active'`

	result, err := r.db.ExecContext(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Avatar,
		user.ID,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case "users_email_key":
				return ErrUserEmailConflict
			case "users_username_key":
				return ErrUserUsernameConflict
			}
		}
		return err
	}

	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) UpdateCompetitive(ctx context.Context, exec SQLExecutor, userID int, newRating int, won bool) error {
	query := `
		UPDATE users SET
			rating = $1,
			games_played = games_played + 1,
			games_won = games_won + $2,
			games_lost = games_lost + $3,
			updated_at = now()
		WHERE id = $4 AND status = 'active'`

	wonInc, lostInc := 0, 1
	if won {
		wonInc, lostInc = 1, 0
	}

	result, err := exec.ExecContext(ctx, query, newRating, wonInc, lostInc, userID)
	if err != nil {
		return fmt.Errorf("failed to update competitive state for user %d: %w", userID, err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) UpdateLastLogin(ctx context.Context, id int) error {
	query := `UPDATE users SET last_login = now() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

// Deactivate soft-deletes a user. The row stays so match history keeps
// resolving, but every active-only lookup stops returning it.
func (r *postgresUserRepository) Deactivate(ctx context.Context, id int) error {
	query := `UPDATE users SET status = 'deactivated', updated_at = now() WHERE id = $1 AND status = 'active'`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE status = 'active'
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		var user models.User
		if scanErr := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.PasswordHash,
			&user.Avatar,
			&user.Rating,
			&user.GamesPlayed,
			&user.GamesWon,
			&user.GamesLost,
			&user.Status,
			&user.CreatedAt,
			&user.UpdatedAt,
			&user.LastLogin,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", scanErr)
		}
		users = append(users, &user)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during user rows iteration: %w", err)
	}
	return users, nil
}

// Leaderboard returns the top active players by rating. Players who have not
// finished a single game are excluded.
func (r *postgresUserRepository) Leaderboard(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	query := `
		SELECT id, username, avatar, rating, games_played, games_won, games_lost
		FROM users
		WHERE status = 'active' AND games_played > 0
		ORDER BY rating DESC, games_won DESC, id ASC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.LeaderboardEntry, 0)
	for rows.Next() {
		var e models.LeaderboardEntry
		if scanErr := rows.Scan(
			&e.ID,
			&e.Username,
			&e.Avatar,
			&e.Rating,
			&e.GamesPlayed,
			&e.GamesWon,
			&e.GamesLost,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", scanErr)
		}
		entries = append(entries, &e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during leaderboard rows iteration: %w", err)
	}
	return entries, nil
}

func (r *postgresUserRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE status = 'active'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *postgresUserRepository) CountActivePlayers(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE status = 'active' AND games_played > 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active players: %w", err)
	}
	return count, nil
}

func (r *postgresUserRepository) scanUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Avatar,
		&user.Rating,
		&user.GamesPlayed,
		&user.GamesWon,
		&user.GamesLost,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
