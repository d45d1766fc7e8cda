package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is a simple in-memory append-only repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []Entry
	clock   func() time.Time

	// ForcedErr, when set, fails every Append. Test hook for the
	// persistence failure path.
	ForcedErr error

	// Actors/Organisations back the display-field join on List.
	Actors        map[string]ActorDisplay
	Organisations map[string]string
}

type ActorDisplay struct {
	Name  string
	Email string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		clock:         time.Now,
		Actors:        map[string]ActorDisplay{},
		Organisations: map[string]string{},
	}
}

func (r *MemoryRepo) Append(_ context.Context, e Entry) error {
	if r.ForcedErr != nil {
		return r.ForcedErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, stampEntry(e, r.clock().UTC()))
	return nil
}

func (r *MemoryRepo) List(_ context.Context, f Filter) ([]Entry, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []Entry
	for _, e := range r.entries {
		if f.ActorUserID != "" && e.ActorUserID != f.ActorUserID {
			continue
		}
		if f.EntityKind != "" && e.EntityKind != f.EntityKind {
			continue
		}
		if f.EntityID != "" && e.EntityID != f.EntityID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.OrganisationID != "" && e.OrganisationID != f.OrganisationID {
			continue
		}
		if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
			continue
		}
		if a, ok := r.Actors[e.ActorUserID]; ok {
			e.ActorName = a.Name
			e.ActorEmail = a.Email
		}
		if n, ok := r.Organisations[e.OrganisationID]; ok {
			e.OrganisationName = n
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(a, b int) bool {
		return matched[a].CreatedAt.After(matched[b].CreatedAt)
	})

	total := int64(len(matched))
	start := (f.Page - 1) * f.PageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + f.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *MemoryRepo) Stats(_ context.Context, since time.Time) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s Stats
	actors := map[string]struct{}{}
	counts := map[Action]int64{}
	var order []Action

	for _, e := range r.entries {
		s.TotalLogs++
		if !e.CreatedAt.Before(since) {
			s.TodayLogs++
		}
		if e.ActorUserID != "" {
			actors[e.ActorUserID] = struct{}{}
		}
		if _, seen := counts[e.Action]; !seen {
			order = append(order, e.Action)
		}
		counts[e.Action]++
	}
	s.DistinctActors = int64(len(actors))

	// Stable sort: ties keep first-seen order.
	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})
	for i, a := range order {
		if i == 5 {
			break
		}
		s.TopActions = append(s.TopActions, ActionCount{Action: a, Count: counts[a]})
	}
	return s, nil
}

// Entries returns a copy of all stored entries. Test helper.
func (r *MemoryRepo) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
