package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"
)

// exportLimit caps one CSV download; narrow the date range for more.
const exportLimit = 1000

// Service reads and exports the audit trail.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// List returns matching entries, newest first.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Entry, error) {
	return s.repo.List(ctx, req)
}

// ExportCSV renders matching entries as a CSV document.
func (s *Service) ExportCSV(ctx context.Context, req ListRequest) ([]byte, error) {
	if req.Limit <= 0 || req.Limit > exportLimit {
		req.Limit = exportLimit
	}
	entries, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"at", "actor_id", "actor_name", "action", "entity", "entity_id", "meta"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		meta := ""
		if len(e.Meta) > 0 {
			raw, err := json.Marshal(e.Meta)
			if err != nil {
				return nil, err
			}
			meta = string(raw)
		}
		record := []string{
			e.At.UTC().Format(time.RFC3339),
			formatID(e.ActorID),
			e.ActorName,
			e.Action,
			e.Entity,
			e.EntityID,
			meta,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	s.logger.Info("audit export", slog.Int("rows", len(entries)))
	return buf.Bytes(), nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
