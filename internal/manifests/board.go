package manifests

import (
	"context"
	"errors"
	"time"

	"github.com/dropzone-hq/dropzone/internal/jumps"
	"github.com/dropzone-hq/dropzone/internal/loads"
	"github.com/dropzone-hq/dropzone/internal/shared"
)

// Board is everything the manifesting page shows in one response: the
// day's loads, the jumps on the selected load and the manifested jumps
// still waiting for one.
type Board struct {
	Loads             []loads.Summary `json:"loads"`
	SelectedLoad      *int64          `json:"selected_load,omitempty"`
	SelectedLoadJumps []jumps.Jump    `json:"selected_load_jumps"`
	UnassignedJumps   []jumps.Jump    `json:"unassigned_jumps"`
}

// BoardRequest filters the board. Loads reuses the /loads query grammar;
// HideOld narrows to today's takeoffs.
type BoardRequest struct {
	Loads          loads.ListLoadsRequest
	SelectedLoadID *int64
	IsManifested   bool
}

// Board assembles the manifesting page. Without an explicit selection the
// load closest to departure wins, because that is the one the manifest
// manager is filling right now.
func (s *Service) Board(ctx context.Context, req BoardRequest) (*Board, error) {
	listReq := req.Loads
	if listReq.HideOld {
		start := startOfDay(s.now())
		end := start.Add(24*time.Hour - time.Nanosecond)
		listReq.From = &start
		listReq.To = &end
		listReq.HideOld = false
	}
	if listReq.Limit <= 0 {
		listReq.Limit = 100
	}
	summaries, err := s.loads.List(ctx, listReq)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []loads.Summary{}
	}

	board := &Board{
		Loads:             summaries,
		SelectedLoadJumps: []jumps.Jump{},
		UnassignedJumps:   []jumps.Jump{},
	}

	var selected *int64
	if req.SelectedLoadID != nil {
		// An explicit selection may point outside the filtered list; a
		// stale id just deselects.
		if _, err := s.loads.Get(ctx, *req.SelectedLoadID); err == nil {
			selected = req.SelectedLoadID
		} else if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	} else if len(summaries) > 0 {
		now := s.now()
		best := summaries[0]
		for _, candidate := range summaries[1:] {
			if absDuration(candidate.Departure.Sub(now)) < absDuration(best.Departure.Sub(now)) {
				best = candidate
			}
		}
		id := best.ID
		selected = &id
	}

	if selected != nil {
		loadJumps, err := s.jumps.ListByLoad(ctx, *selected)
		if err != nil {
			return nil, err
		}
		board.SelectedLoad = selected
		if loadJumps != nil {
			board.SelectedLoadJumps = loadJumps
		}
	}

	manifested := req.IsManifested
	noLoad := false
	noParent := false
	unassigned, err := s.jumps.List(ctx, jumps.ListJumpsRequest{
		IsManifested: &manifested,
		HasLoad:      &noLoad,
		HasParent:    &noParent,
		Limit:        100,
	})
	if err != nil {
		return nil, err
	}
	if unassigned != nil {
		board.UnassignedJumps = unassigned
	}
	return board, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
