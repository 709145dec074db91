package issues

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pih12/Pravah/apperr"
	"github.com/pih12/Pravah/metrics"
	"github.com/pih12/Pravah/models"
)

type ChangeOp string

const (
	OpCreated ChangeOp = "created"
	OpUpdated ChangeOp = "updated"
	OpDeleted ChangeOp = "deleted"
)

// Change describes a committed mutation.
type Change struct {
	Op      ChangeOp           `json:"op"`
	ID      string             `json:"id"`
	IssueID string             `json:"issueId"`
	Actor   string             `json:"actor"`
	Status  models.IssueStatus `json:"status,omitempty"`
	At      time.Time          `json:"at"`
}

// ChangeNotifier is told about every committed mutation. Implementations must
// not block for long; errors are theirs to log.
type ChangeNotifier interface {
	NotifyChanged(ctx context.Context, change Change)
}

// Locator supplies a position for reports submitted without one.
type Locator interface {
	Locate() models.GPS
}

// NewIssue is what a reporter submits.
type NewIssue struct {
	Type        string      `json:"type"`
	Description string      `json:"description"`
	District    string      `json:"district"`
	Feedback    string      `json:"feedback"`
	ImageURL    string      `json:"imageUrl"`
	GPS         *models.GPS `json:"gps,omitempty"`
}

// Validate checks the fields a reporter must supply.
func (in NewIssue) Validate() error {
	if strings.TrimSpace(in.Description) == "" || strings.TrimSpace(in.District) == "" {
		return apperr.Validation("Please fill all required fields.")
	}
	if in.GPS != nil && !validGPS(*in.GPS) {
		return apperr.Validation("gps coordinates are out of range")
	}
	return nil
}

type Service struct {
	store     Store
	policy    AccessPolicy
	locator   Locator
	notifiers []ChangeNotifier
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithNotifier(n ChangeNotifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifiers = append(s.notifiers, n)
		}
	}
}

func NewService(store Store, locator Locator, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{store: store, locator: locator, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddNotifier registers n after construction, for notifiers that need the
// service themselves.
func (s *Service) AddNotifier(n ChangeNotifier) {
	s.notifiers = append(s.notifiers, n)
}

func (s *Service) Create(ctx context.Context, p models.Principal, in NewIssue) (models.Issue, error) {
	if err := s.policy.CanCreate(p); err != nil {
		return models.Issue{}, err
	}

	if err := in.Validate(); err != nil {
		return models.Issue{}, err
	}
	description := strings.TrimSpace(in.Description)
	district := strings.TrimSpace(in.District)

	var gps models.GPS
	switch {
	case in.GPS != nil:
		gps = *in.GPS
	case s.locator != nil:
		gps = s.locator.Locate()
	}

	now := models.StoreTime(s.now())
	issue := models.Issue{
		IssueID:     strconv.FormatInt(now.UnixMilli(), 10),
		ReporterID:  p.Subject,
		Type:        strings.TrimSpace(in.Type),
		Description: description,
		District:    district,
		Feedback:    in.Feedback,
		ImageURL:    in.ImageURL,
		GPS:         gps,
		Status:      models.StatusSubmitted,
		Timestamps:  models.Timestamps{Created: now, Updated: now},
	}

	err := s.store.Create(ctx, &issue)
	metrics.MutationsTotal.WithLabelValues(string(OpCreated), metrics.Result(err)).Inc()
	if err != nil {
		s.logger.Error("create issue failed", zap.String("reporter", p.Subject), zap.Error(err))
		return models.Issue{}, apperr.Mutation("Failed to submit report", err)
	}

	s.logger.Info("issue created", zap.String("id", issue.ID.Hex()), zap.String("reporter", p.Subject))
	s.notify(ctx, Change{Op: OpCreated, ID: issue.ID.Hex(), IssueID: issue.IssueID, Actor: p.Subject, Status: issue.Status, At: now})
	return issue, nil
}

// Update applies a privileged change. Status is matched case-insensitively
// and stored in its canonical spelling. Applying the same update twice
// leaves the same field values.
func (s *Service) Update(ctx context.Context, p models.Principal, id string, update models.IssueUpdate) (models.Issue, error) {
	if err := s.policy.CanModify(p); err != nil {
		return models.Issue{}, err
	}
	if update.Empty() {
		return models.Issue{}, apperr.Validation("nothing to update")
	}
	if update.Status != nil {
		st, ok := models.ParseStatus(string(*update.Status))
		if !ok {
			return models.Issue{}, apperr.Validation("Invalid status")
		}
		update.Status = &st
	}

	issue, err := s.store.Update(ctx, id, update)
	metrics.MutationsTotal.WithLabelValues(string(OpUpdated), metrics.Result(err)).Inc()
	if errors.Is(err, ErrNotFound) {
		return models.Issue{}, apperr.NotFound("Issue not found")
	}
	if err != nil {
		s.logger.Error("update issue failed", zap.String("id", id), zap.Error(err))
		return models.Issue{}, apperr.Mutation("Failed to update issue", err)
	}

	s.logger.Info("issue updated", zap.String("id", id), zap.String("actor", p.Subject), zap.String("status", string(issue.Status)))
	s.notify(ctx, Change{Op: OpUpdated, ID: id, IssueID: issue.IssueID, Actor: p.Subject, Status: issue.Status, At: issue.Timestamps.Updated})
	return issue, nil
}

func (s *Service) Delete(ctx context.Context, p models.Principal, id string) error {
	if err := s.policy.CanModify(p); err != nil {
		return err
	}

	err := s.store.Delete(ctx, id)
	metrics.MutationsTotal.WithLabelValues(string(OpDeleted), metrics.Result(err)).Inc()
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("Issue not found")
	}
	if err != nil {
		s.logger.Error("delete issue failed", zap.String("id", id), zap.Error(err))
		return apperr.Mutation("Failed to delete issue", err)
	}

	s.logger.Info("issue deleted", zap.String("id", id), zap.String("actor", p.Subject))
	s.notify(ctx, Change{Op: OpDeleted, ID: id, Actor: p.Subject, At: models.StoreTime(s.now())})
	return nil
}

func (s *Service) Get(ctx context.Context, p models.Principal, id string) (models.Issue, error) {
	if err := s.policy.CanRead(p); err != nil {
		return models.Issue{}, err
	}
	issue, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return models.Issue{}, apperr.NotFound("Issue not found")
	}
	if err != nil {
		return models.Issue{}, apperr.Internal(err)
	}
	return issue, nil
}

// List returns every issue, newest first. It is also what the feed uses to
// build snapshots, so it does not take a principal.
func (s *Service) List(ctx context.Context) ([]models.Issue, error) {
	return s.store.List(ctx)
}

// Mine returns the issues p reported.
func (s *Service) Mine(ctx context.Context, p models.Principal) ([]models.Issue, error) {
	if err := s.policy.CanRead(p); err != nil {
		return nil, err
	}
	list, err := s.store.ListByReporter(ctx, p.Subject)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return list, nil
}

// notify runs detached from the request so a client that disconnects right
// after its write still triggers the broadcast.
func (s *Service) notify(ctx context.Context, change Change) {
	ctx = context.WithoutCancel(ctx)
	for _, n := range s.notifiers {
		n.NotifyChanged(ctx, change)
	}
}

func validGPS(gps models.GPS) bool {
	if math.IsNaN(gps.Lat) || math.IsNaN(gps.Lng) || math.IsInf(gps.Lat, 0) || math.IsInf(gps.Lng, 0) {
		return false
	}
	return gps.Lat >= -90 && gps.Lat <= 90 && gps.Lng >= -180 && gps.Lng <= 180
}
