package audit

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidRequest = errors.New("audit: invalid request")

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service is the read-only query side over recorded entries. The write side
// belongs exclusively to the interceptor.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// ListPage is one page of audit entries.
type ListPage struct {
	Entries  []Entry `json:"entries"`
	Total    int64   `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

func (s *Service) List(ctx context.Context, f Filter) (ListPage, error) {
	if s.repo == nil {
		return ListPage{}, errors.New("audit: repository not configured")
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.To.After(f.From) {
		return ListPage{}, ErrInvalidRequest
	}
	if f.Action != "" && !validAction(f.Action) {
		return ListPage{}, ErrInvalidRequest
	}

	entries, total, err := s.repo.List(ctx, f)
	if err != nil {
		return ListPage{}, err
	}
	return ListPage{Entries: entries, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

// Stats aggregates entry counters. "Today" starts at local server midnight.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if s.repo == nil {
		return Stats{}, errors.New("audit: repository not configured")
	}
	now := s.clock()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.repo.Stats(ctx, midnight)
}

func validAction(a Action) bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionCreateMany, ActionUpdateMany, ActionDeleteMany:
		return true
	default:
		return false
	}
}
