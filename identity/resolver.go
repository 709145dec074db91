// Package identity turns an authenticated subject into a role-tagged profile,
// repairing or improvising one when the profile store lets it down.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pih12/Pravah/apperr"
	"github.com/pih12/Pravah/metrics"
	"github.com/pih12/Pravah/models"
)

type Source string

const (
	SourceStored    Source = "stored"
	SourceRepaired  Source = "repaired"
	SourceEphemeral Source = "ephemeral"
)

const (
	repairedName  = "Unknown"
	temporaryName = "Temporary User"
)

// FallbackStore keeps an ephemeral profile for the lifetime of one session.
type FallbackStore interface {
	SaveFallbackProfile(ctx context.Context, sid string, p models.Profile) error
	FallbackProfile(ctx context.Context, sid string) (models.Profile, error)
}

type ResolveRequest struct {
	Subject   Subject
	SessionID string
	// RoleHint is the role picked on the registration form, if any.
	RoleHint models.Role
	Name     string
}

type Resolution struct {
	Profile models.Profile
	Source  Source
}

type ResolverConfig struct {
	AdminEmails     []string
	LegacyHeuristic bool
	Attempts        int
	Backoff         time.Duration
}

type Resolver struct {
	profiles  ProfileStore
	intents   IntentStore
	fallback  FallbackStore
	admins    map[string]struct{}
	heuristic bool
	attempts  int
	backoff   time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
	logger    *zap.Logger
}

func NewResolver(profiles ProfileStore, intents IntentStore, fallback FallbackStore, cfg ResolverConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Resolver{
		profiles:  profiles,
		intents:   intents,
		fallback:  fallback,
		admins:    admins,
		heuristic: cfg.LegacyHeuristic,
		attempts:  cfg.Attempts,
		backoff:   cfg.Backoff,
		sleep:     sleepCtx,
		now:       time.Now,
		logger:    logger,
	}
}

// Resolve reads the stored profile with retries, repairs a missing one, and
// falls back to a session-only profile when the repair write fails too.
// Profile-layer failures are logged, never returned; the only error is a
// cancelled context.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (Resolution, error) {
	log := r.logger.With(zap.String("uid", req.Subject.UID))

	for attempt := 1; attempt <= r.attempts; attempt++ {
		p, err := r.profiles.GetProfile(ctx, req.Subject.UID)
		if err == nil {
			return r.done(Resolution{Profile: r.applyAllowList(p), Source: SourceStored}), nil
		}
		if errors.Is(err, ErrProfileNotFound) {
			log.Debug("profile not found", zap.Int("attempt", attempt))
		} else {
			log.Warn("profile read failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		if attempt < r.attempts {
			if err := r.sleep(ctx, r.backoff); err != nil {
				return Resolution{}, err
			}
		}
	}

	intended, hasIntent := r.intendedRole(ctx, req.Subject.Email)

	repaired := models.Profile{
		UID:       req.Subject.UID,
		Email:     req.Subject.Email,
		Role:      models.RolePublic,
		Name:      repairedName,
		CreatedAt: models.StoreTime(r.now()),
		Repaired:  true,
	}
	if hasIntent {
		repaired.Role = intended
	}
	log = log.With(zap.String("code", string(apperr.KindProfileInconsistency)))
	err := r.profiles.CreateProfile(ctx, repaired)
	if err == nil {
		log.Warn("profile missing, repaired with default", zap.String("role", string(repaired.Role)))
		return r.done(Resolution{Profile: repaired, Source: SourceRepaired}), nil
	}
	if ctx.Err() != nil {
		return Resolution{}, ctx.Err()
	}
	log.Error("profile repair failed, using session-only profile", zap.Error(err))

	return r.done(Resolution{Profile: r.Ephemeral(ctx, req), Source: SourceEphemeral}), nil
}

// Ephemeral builds a session-only profile and stores it in the fallback
// store. It never touches the shared profile store.
func (r *Resolver) Ephemeral(ctx context.Context, req ResolveRequest) models.Profile {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = temporaryName
	}
	p := models.Profile{
		UID:       req.Subject.UID,
		Email:     req.Subject.Email,
		Role:      r.ephemeralRole(ctx, req),
		Name:      name,
		CreatedAt: models.StoreTime(r.now()),
		LocalMode: true,
	}
	if req.SessionID != "" && r.fallback != nil {
		if err := r.fallback.SaveFallbackProfile(ctx, req.SessionID, p); err != nil {
			r.logger.Warn("could not persist session-only profile",
				zap.String("uid", req.Subject.UID), zap.Error(err))
		}
	}
	return p
}

func (r *Resolver) ephemeralRole(ctx context.Context, req ResolveRequest) models.Role {
	if role, ok := models.ParseRole(string(req.RoleHint)); ok {
		return role
	}
	if role, ok := r.intendedRole(ctx, req.Subject.Email); ok {
		return role
	}
	if r.heuristic {
		email := strings.ToLower(req.Subject.Email)
		if strings.Contains(email, "ngo") {
			return models.RoleNGO
		}
		if strings.Contains(email, "admin") {
			return models.RoleAdmin
		}
	}
	return models.RolePublic
}

func (r *Resolver) intendedRole(ctx context.Context, email string) (models.Role, bool) {
	if r.intents == nil || email == "" {
		return "", false
	}
	role, ok, err := r.intents.IntendedRole(ctx, email)
	if err != nil {
		r.logger.Warn("intended role lookup failed", zap.String("email", email), zap.Error(err))
		return "", false
	}
	return role, ok
}

// applyAllowList forces admin for allow-listed emails. The stored document
// is left as it is.
func (r *Resolver) applyAllowList(p models.Profile) models.Profile {
	if _, ok := r.admins[normalizeEmail(p.Email)]; ok {
		p.Role = models.RoleAdmin
	}
	return p
}

func (r *Resolver) done(res Resolution) Resolution {
	metrics.IdentityResolutionsTotal.WithLabelValues(string(res.Source)).Inc()
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
