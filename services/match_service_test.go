package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/crowbar-gg/crowbar-backend/models"
	"github.com/crowbar-gg/crowbar-backend/repositories"
)

// stubDriver is a minimal database/sql driver whose only job is to hand out
// transactions and record whether they were committed or rolled back. The
// repositories are faked, so no statement ever reaches the connection.
type stubConn struct {
	begins    int
	commits   int
	rollbacks int
}

func (c *stubConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("stub driver does not prepare statements")
}
func (c *stubConn) Close() error              { return nil }
func (c *stubConn) Begin() (driver.Tx, error) { return c.BeginTx(context.Background(), driver.TxOptions{}) }

func (c *stubConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	c.begins++
	return &stubTx{conn: c}, nil
}

type stubTx struct{ conn *stubConn }

func (t *stubTx) Commit() error   { t.conn.commits++; return nil }
func (t *stubTx) Rollback() error { t.conn.rollbacks++; return nil }

type stubConnector struct{ conn *stubConn }

func (c *stubConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c *stubConnector) Driver() driver.Driver                        { return stubDrv{} }

type stubDrv struct{}

func (stubDrv) Open(string) (driver.Conn, error) { return &stubConn{}, nil }

func newStubDB() (*sql.DB, *stubConn) {
	conn := &stubConn{}
	db := sql.OpenDB(&stubConnector{conn: conn})
	db.SetMaxOpenConns(1)
	return db, conn
}

// fakeUserRepo serves lookups from a map of "committed" users and records
// competitive updates without ever applying them: whether they stick is the
// transaction's business, which is exactly what the tests assert on.
type competitiveUpdate struct {
	userID    int
	newRating int
	won       bool
}

type fakeUserRepo struct {
	repositories.UserRepository

	users   map[int]*models.User
	lookups int

	updates      []competitiveUpdate
	failOnUpdate int // 1-based update call that fails; 0 = never
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	f.lookups++
	user, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) UpdateCompetitive(ctx context.Context, exec repositories.SQLExecutor, userID int, newRating int, won bool) error {
	if f.failOnUpdate > 0 && len(f.updates)+1 == f.failOnUpdate {
		return errors.New("simulated storage fault")
	}
	f.updates = append(f.updates, competitiveUpdate{userID: userID, newRating: newRating, won: won})
	return nil
}

type fakeMatchRepo struct {
	repositories.MatchRepository

	staged     []*models.Match
	statsRow   *repositories.PlayerStatsRow
	failCreate bool
}

func (f *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	if f.failCreate {
		return errors.New("simulated insert fault")
	}
	match.ID = len(f.staged) + 1
	f.staged = append(f.staged, match)
	return nil
}

func (f *fakeMatchRepo) StatsByUser(ctx context.Context, userID int) (*repositories.PlayerStatsRow, error) {
	return f.statsRow, nil
}

type fakeBroadcaster struct {
	rooms    []string
	payloads []interface{}
}

func (f *fakeBroadcaster) BroadcastToRoom(room string, payload interface{}) {
	f.rooms = append(f.rooms, room)
	f.payloads = append(f.payloads, payload)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func twoPlayers(rating1, rating2 int) *fakeUserRepo {
	return &fakeUserRepo{users: map[int]*models.User{
		1: {ID: 1, Username: "alice", Rating: rating1, Status: models.UserStatusActive},
		2: {ID: 2, Username: "bob", Rating: rating2, Status: models.UserStatusActive},
	}}
}

func TestCreateMatchRejectsSelfMatch(t *testing.T) {
	db, conn := newStubDB()
	defer db.Close()
	userRepo := twoPlayers(1000, 1000)
	svc := NewMatchService(db, &fakeMatchRepo{}, userRepo, nil, testLogger())

	_, err := svc.CreateMatch(context.Background(), CreateMatchInput{
		Player1ID: 5, Player2ID: 5, WinnerID: 5,
	})
	if !errors.Is(err, ErrSelfMatch) {
		t.Fatalf("CreateMatch error = %v, want ErrSelfMatch", err)
	}
	if userRepo.lookups != 0 {
		t.Errorf("validation failure touched storage: %d lookups", userRepo.lookups)
	}
	if conn.begins != 0 {
		t.Errorf("validation failure opened %d transactions", conn.begins)
	}
}

func TestCreateMatchRejectsOutsideWinner(t *testing.T) {
	db, conn := newStubDB()
	defer db.Close()
	userRepo := twoPlayers(1000, 1000)
	svc := NewMatchService(db, &fakeMatchRepo{}, userRepo, nil, testLogger())

	_, err := svc.CreateMatch(context.Background(), CreateMatchInput{
		Player1ID: 1, Player2ID: 2, WinnerID: 99,
	})
	if !errors.Is(err, ErrWinnerNotInMatch) {
		t.Fatalf("CreateMatch error = %v, want ErrWinnerNotInMatch", err)
	}
	if userRepo.lookups != 0 || conn.begins != 0 {
		t.Errorf("validation failure reached storage (lookups=%d begins=%d)", userRepo.lookups, conn.begins)
	}
}

func TestCreateMatchRejectsInvalidInput(t *testing.T) {
	db, _ := newStubDB()
	defer db.Close()
	svc := NewMatchService(db, &fakeMatchRepo{}, twoPlayers(1000, 1000), nil, testLogger())

	t.Run("bad game type", func(t *testing.T) {
		_, err := svc.CreateMatch(context.Background(), CreateMatchInput{
			Player1ID: 1, Player2ID: 2, WinnerID: 1, GameType: "speedrun",
		})
		if !errors.Is(err, ErrGameTypeInvalid) {
			t.Fatalf("error = %v, want ErrGameTypeInvalid", err)
		}
	})
	t.Run("non-positive duration", func(t *testing.T) {
		duration := 0
		_, err := svc.CreateMatch(context.Background(), CreateMatchInput{
			Player1ID: 1, Player2ID: 2, WinnerID: 1, GameDuration: &duration,
		})
		if !errors.Is(err, ErrDurationInvalid) {
			t.Fatalf("error = %v, want ErrDurationInvalid", err)
		}
	})
	t.Run("oversized notes", func(t *testing.T) {
		notes := string(make([]byte, 501))
		_, err := svc.CreateMatch(context.Background(), CreateMatchInput{
			Player1ID: 1, Player2ID: 2, WinnerID: 1, Notes: &notes,
		})
		if !errors.Is(err, ErrNotesTooLong) {
			t.Fatalf("error = %v, want ErrNotesTooLong", err)
		}
	})
}

func TestCreateMatchPlayerNotFound(t *testing.T) {
	db, conn := newStubDB()
	defer db.Close()
	userRepo := &fakeUserRepo{users: map[int]*models.User{
		1: {ID: 1, Username: "alice", Rating: 1000},
	}}
	svc := NewMatchService(db, &fakeMatchRepo{}, userRepo, nil, testLogger())

	_, err := svc.CreateMatch(context.Background(), CreateMatchInput{
		Player1ID: 1, Player2ID: 2, WinnerID: 1,
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("CreateMatch error = %v, want ErrUserNotFound", err)
	}
	if conn.begins != 0 {
		t.Errorf("missing player opened %d transactions, want 0", conn.begins)
	}
}

func TestCreateMatchEqualRatings(t *testing.T) {
	db, conn := newStubDB()
	defer db.Close()
	userRepo := twoPlayers(1000, 1000)
	matchRepo := &fakeMatchRepo{}
	hub := &fakeBroadcaster{}
	svc := NewMatchService(db, matchRepo, userRepo, hub, testLogger())

	result, err := svc.CreateMatch(context.Background(), CreateMatchInput{
		Player1ID: 1, Player2ID: 2, WinnerID: 1, GameType: models.GameTypeRanked,
	})
	if err != nil {
		t.Fatalf("CreateMatch error = %v", err)
	}

	if result.MatchID != 1 {
		t.Errorf("MatchID = %d, want 1", result.MatchID)
	}
	p1 := result.RatingChanges.Player1
	p2 := result.RatingChanges.Player2
	if p1.OldRating != 1000 || p1.NewRating != 1016 || p1.Change != 16 {
		t.Errorf("player1 change = %+v, want 1000 -> 1016 (+16)", p1)
	}
	if p2.OldRating != 1000 || p2.NewRating != 984 || p2.Change != -16 {
		t.Errorf("player2 change = %+v, want 1000 -> 984 (-16)", p2)
	}

	if len(matchRepo.staged) != 1 {
		t.Fatalf("staged %d match rows, want 1", len(matchRepo.staged))
	}
	match := matchRepo.staged[0]
	if match.LoserID != 2 {
		t.Errorf("LoserID = %d, want 2", match.LoserID)
	}
	if match.RatingChange != 16 {
		t.Errorf("RatingChange = %d, want 16", match.RatingChange)
	}
	if match.Player1RatingAfter != match.Player1RatingBefore+16 {
		t.Errorf("player1 after = %d, want before+16", match.Player1RatingAfter)
	}
	if match.Player2RatingAfter != match.Player2RatingBefore-16 {
		t.Errorf("player2 after = %d, want before-16", match.Player2RatingAfter)
	}

	wantUpdates := []competitiveUpdate{
		{userID: 1, newRating: 1016, won: true},
		{userID: 2, newRating: 984, won: false},
	}
	if len(userRepo.updates) != len(wantUpdates) {
		t.Fatalf("recorded %d updates, want %d", len(userRepo.updates), len(wantUpdates))
	}
	for i, want := range wantUpdates {
		if userRepo.updates[i] != want {
			t.Errorf("update[%d] = %+v, want %+v", i, userRepo.updates[i], want)
		}
	}

	if conn.commits != 1 || conn.rollbacks != 0 {
		t.Errorf("commits=%d rollbacks=%d, want 1/0", conn.commits, conn.rollbacks)
	}

	if len(hub.rooms) != 1 {
		t.Fatalf("broadcast %d events, want 1", len(hub.rooms))
	}
	event, ok := hub.payloads[0].(MatchFeedEvent)
	if !ok {
		t.Fatalf("broadcast payload is %T, want MatchFeedEvent", hub.payloads[0])
	}
	if event.MatchID != 1 || event.WinnerID != 1 {
		t.Errorf("feed event = %+v", event)
	}
}

func TestCreateMatchWinnerOrientation(t *testing.T) {
	// player2 wins as the underdog; deltas must be computed from the
	// winner's rating pair, not from player1's perspective.
	db, _ := newStubDB()
	defer db.Close()
	userRepo := twoPlayers(1200, 1000)
	svc := NewMatchService(db, &fakeMatchRepo{}, userRepo, nil, testLogger())

	result, err := svc.CreateMatch(context.Background(), CreateMatchInput{
		Player1ID: 1, Player2ID: 2, WinnerID: 2,
	})
	if err != nil {
		t.Fatalf("CreateMatch error = %v", err)
	}

	if result.RatingChanges.Player2.Change <= 16 {
		t.Errorf("underdog winner change = %d, want > 16", result.RatingChanges.Player2.Change)
	}
	if result.RatingChanges.Player1.Change >= 0 {
		t.Errorf("favorite loser change = %d, want negative", result.RatingChanges.Player1.Change)
	}
}

func TestCreateMatchRollsBackOnSecondWrite(t *testing.T) {
	db, conn := newStubDB()
	defer db.Close()
	userRepo := twoPlayers(1000, 1000)
	userRepo.failOnUpdate = 2 // insert and first update succeed, second update fails
	matchRepo := &fakeMatchRepo{}
	hub := &fakeBroadcaster{}
	svc := NewMatchService(db, matchRepo, userRepo, hub, testLogger())

	_, err := svc.CreateMatch(context.Background(), CreateMatchInput{
		Player1ID: 1, Player2ID: 2, WinnerID: 1,
	})
	if !errors.Is(err, ErrMatchTransactionFailed) {
		t.Fatalf("CreateMatch error = %v, want ErrMatchTransactionFailed", err)
	}

	if conn.begins != 1 || conn.rollbacks != 1 || conn.commits != 0 {
		t.Errorf("begins=%d rollbacks=%d commits=%d, want 1/1/0", conn.begins, conn.rollbacks, conn.commits)
	}
	// Committed player state is untouched.
	if userRepo.users[1].Rating != 1000 || userRepo.users[2].Rating != 1000 {
		t.Errorf("player ratings mutated despite rollback: %d, %d",
			userRepo.users[1].Rating, userRepo.users[2].Rating)
	}
	if len(hub.rooms) != 0 {
		t.Errorf("broadcast fired for a rolled-back match")
	}
}

func TestCreateMatchRollsBackOnInsertFailure(t *testing.T) {
	db, conn := newStubDB()
	defer db.Close()
	userRepo := twoPlayers(1000, 1000)
	svc := NewMatchService(db, &fakeMatchRepo{failCreate: true}, userRepo, nil, testLogger())

	_, err := svc.CreateMatch(context.Background(), CreateMatchInput{
		Player1ID: 1, Player2ID: 2, WinnerID: 2,
	})
	if !errors.Is(err, ErrMatchTransactionFailed) {
		t.Fatalf("CreateMatch error = %v, want ErrMatchTransactionFailed", err)
	}
	if conn.rollbacks != 1 || conn.commits != 0 {
		t.Errorf("rollbacks=%d commits=%d, want 1/0", conn.rollbacks, conn.commits)
	}
	if len(userRepo.updates) != 0 {
		t.Errorf("player updates attempted after failed insert: %d", len(userRepo.updates))
	}
}

func TestGetPlayerStatsZeroMatches(t *testing.T) {
	db, _ := newStubDB()
	defer db.Close()
	userRepo := twoPlayers(1000, 1000)
	matchRepo := &fakeMatchRepo{statsRow: &repositories.PlayerStatsRow{}}
	svc := NewMatchService(db, matchRepo, userRepo, nil, testLogger())

	stats, err := svc.GetPlayerStats(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetPlayerStats error = %v", err)
	}
	want := models.PlayerStats{}
	if *stats != want {
		t.Errorf("stats = %+v, want all zero values", stats)
	}
}

func TestGetPlayerStatsComputation(t *testing.T) {
	db, _ := newStubDB()
	defer db.Close()
	userRepo := twoPlayers(1000, 1000)
	matchRepo := &fakeMatchRepo{statsRow: &repositories.PlayerStatsRow{
		TotalMatches:    8,
		Wins:            5,
		Losses:          3,
		AvgRating:       sql.NullFloat64{Float64: 1023.4, Valid: true},
		AvgGameDuration: sql.NullFloat64{Float64: 95.6, Valid: true},
	}}
	svc := NewMatchService(db, matchRepo, userRepo, nil, testLogger())

	stats, err := svc.GetPlayerStats(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetPlayerStats error = %v", err)
	}
	if stats.WinRate != 62.5 {
		t.Errorf("WinRate = %v, want 62.5", stats.WinRate)
	}
	if stats.AvgRating != 1023 {
		t.Errorf("AvgRating = %d, want 1023", stats.AvgRating)
	}
	if stats.AvgGameDuration != 96 {
		t.Errorf("AvgGameDuration = %d, want 96", stats.AvgGameDuration)
	}
}

func TestGetPlayerStatsUnknownUser(t *testing.T) {
	db, _ := newStubDB()
	defer db.Close()
	svc := NewMatchService(db, &fakeMatchRepo{}, &fakeUserRepo{users: map[int]*models.User{}}, nil, testLogger())

	_, err := svc.GetPlayerStats(context.Background(), 42)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("GetPlayerStats error = %v, want ErrUserNotFound", err)
	}
}

func TestPageWindow(t *testing.T) {
	// Consecutive pages must map to contiguous, disjoint windows.
	limit1, offset1 := pageWindow(1, 10)
	limit2, offset2 := pageWindow(2, 10)
	if limit1 != 10 || offset1 != 0 {
		t.Errorf("page 1 window = (%d,%d), want (10,0)", limit1, offset1)
	}
	if limit2 != 10 || offset2 != 10 {
		t.Errorf("page 2 window = (%d,%d), want (10,10)", limit2, offset2)
	}

	t.Run("defaults", func(t *testing.T) {
		limit, offset := pageWindow(0, 0)
		if limit != 10 || offset != 0 {
			t.Errorf("window = (%d,%d), want (10,0)", limit, offset)
		}
	})
}
