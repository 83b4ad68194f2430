package services

import (
	"context"
	"fmt"

	"github.com/crowbar-gg/crowbar-backend/models"
	"github.com/crowbar-gg/crowbar-backend/repositories"
	"golang.org/x/sync/errgroup"
)

type DashboardService interface {
	GetStats(ctx context.Context) (models.DashboardStats, error)
}

type dashboardService struct {
	userRepo  repositories.UserRepository
	matchRepo repositories.MatchRepository
}

func NewDashboardService(userRepo repositories.UserRepository, matchRepo repositories.MatchRepository) DashboardService {
	return &dashboardService{
		userRepo:  userRepo,
		matchRepo: matchRepo,
	}
}

// GetStats runs the four count queries concurrently; any failure cancels the
// rest.
func (s *dashboardService) GetStats(ctx context.Context) (models.DashboardStats, error) {
	var stats models.DashboardStats

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.userRepo.CountActive(gCtx)
		if err != nil {
			return fmt.Errorf("users total: %w", err)
		}
		stats.UsersTotal = n
		return nil
	})
	g.Go(func() error {
		n, err := s.userRepo.CountActivePlayers(gCtx)
		if err != nil {
			return fmt.Errorf("active players: %w", err)
		}
		stats.ActivePlayers = n
		return nil
	})
	g.Go(func() error {
		n, err := s.matchRepo.Count(gCtx)
		if err != nil {
			return fmt.Errorf("matches total: %w", err)
		}
		stats.MatchesTotal = n
		return nil
	})
	g.Go(func() error {
		n, err := s.matchRepo.CountToday(gCtx)
		if err != nil {
			return fmt.Errorf("matches today: %w", err)
		}
		stats.MatchesToday = n
		return nil
	})

	if err := g.Wait(); err != nil {
		return models.DashboardStats{}, fmt.Errorf("failed to load dashboard stats: %w", err)
	}
	return stats, nil
}
