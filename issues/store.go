// Package issues owns the issue records: persistence, the store-side access
// policy and the mutation service every write goes through.
package issues

import (
	"bytes"
	"context"
	"errors"
	"sort"

	"github.com/pih12/Pravah/models"
)

var ErrNotFound = errors.New("issue not found")

// Store persists issues. List and ListByReporter return newest first, ties
// broken by id descending.
type Store interface {
	Create(ctx context.Context, issue *models.Issue) error
	Get(ctx context.Context, id string) (models.Issue, error)
	Update(ctx context.Context, id string, update models.IssueUpdate) (models.Issue, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Issue, error)
	ListByReporter(ctx context.Context, reporterID string) ([]models.Issue, error)
}

func sortNewestFirst(list []models.Issue) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.Timestamps.Created.Equal(b.Timestamps.Created) {
			return a.Timestamps.Created.After(b.Timestamps.Created)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) > 0
	})
}
