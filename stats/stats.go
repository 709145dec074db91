// Package stats derives dashboard counts from an issue snapshot.
package stats

import (
	"strings"

	"github.com/pih12/Pravah/models"
)

type Bucket string

const (
	BucketPending   Bucket = "pending"
	BucketWork      Bucket = "work"
	BucketCompleted Bucket = "completed"
	BucketDelayed   Bucket = "delayed"
)

// Counts are always recomputed from a whole snapshot.
type Counts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Work      int `json:"work"`
	Completed int `json:"completed"`
	Delayed   int `json:"delayed"`
}

// BucketOf maps a status to its bucket, case-insensitively. An absent status
// counts as Submitted.
func BucketOf(status string) Bucket {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "" {
		s = strings.ToLower(string(models.StatusSubmitted))
	}
	switch s {
	case "completed":
		return BucketCompleted
	case "rejected", "not started":
		return BucketDelayed
	case "work started", "under construction":
		return BucketWork
	default:
		return BucketPending
	}
}

func Compute(issues []models.Issue) Counts {
	var c Counts
	for _, issue := range issues {
		c.Total++
		switch BucketOf(string(issue.Status)) {
		case BucketCompleted:
			c.Completed++
		case BucketDelayed:
			c.Delayed++
		case BucketWork:
			c.Work++
		default:
			c.Pending++
		}
	}
	return c
}

// Consistent reports whether the buckets add up to the total.
func (c Counts) Consistent() bool {
	return c.Total == c.Pending+c.Work+c.Completed+c.Delayed
}
