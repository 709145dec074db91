package issues

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pih12/Pravah/models"
)

// MemoryStore keeps issues in process. Used for local development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	issues map[primitive.ObjectID]models.Issue
	now    func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{issues: make(map[primitive.ObjectID]models.Issue), now: now}
}

func (s *MemoryStore) Create(_ context.Context, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	s.issues[issue.ID] = *issue
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.Issue, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Issue{}, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	issue, ok := s.issues[oid]
	if !ok {
		return models.Issue{}, ErrNotFound
	}
	return issue, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, update models.IssueUpdate) (models.Issue, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Issue{}, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[oid]
	if !ok {
		return models.Issue{}, ErrNotFound
	}

	if update.AssignedAuthority != nil {
		issue.AssignedAuthority = *update.AssignedAuthority
	}
	if update.Status != nil {
		issue.Status = *update.Status
	}
	if update.AuthorityRemarks != nil {
		issue.AuthorityRemarks = *update.AuthorityRemarks
	}
	next := models.StoreTime(s.now())
	if floor := issue.Timestamps.Updated.Add(time.Millisecond); next.Before(floor) {
		next = floor
	}
	issue.Timestamps.Updated = next

	s.issues[oid] = issue
	return issue, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issues[oid]; !ok {
		return ErrNotFound
	}
	delete(s.issues, oid)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]models.Issue, error) {
	return s.filter(func(models.Issue) bool { return true }), nil
}

func (s *MemoryStore) ListByReporter(_ context.Context, reporterID string) ([]models.Issue, error) {
	return s.filter(func(i models.Issue) bool { return i.ReporterID == reporterID }), nil
}

func (s *MemoryStore) filter(keep func(models.Issue) bool) []models.Issue {
	s.mu.RLock()
	list := make([]models.Issue, 0, len(s.issues))
	for _, issue := range s.issues {
		if keep(issue) {
			list = append(list, issue)
		}
	}
	s.mu.RUnlock()
	sortNewestFirst(list)
	return list
}
