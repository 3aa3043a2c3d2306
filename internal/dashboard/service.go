package dashboard

import (
	"context"
	"log/slog"
	"time"
)

// Service computes the dashboard window. Loads stay on the board for 30
// minutes after departure so spectators can still see who just went up.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Today returns the rest of today's loads plus anything that departed in
// the last half hour.
func (s *Service) Today(ctx context.Context) ([]Load, error) {
	now := s.now()
	from := now.Add(-30 * time.Minute)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := start.Add(24*time.Hour - time.Nanosecond)
	return s.repo.Loads(ctx, from, to)
}
