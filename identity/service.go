package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pih12/Pravah/apperr"
	"github.com/pih12/Pravah/authz"
	"github.com/pih12/Pravah/models"
	"github.com/pih12/Pravah/session"
)

// SessionStore is the part of the session store the identity flows need.
type SessionStore interface {
	FallbackStore
	Create(ctx context.Context, rec session.Record) error
	Revoke(ctx context.Context, sid string) error
}

// TokenIssuer signs a bearer token for a session.
type TokenIssuer func(userID, sessionID string, role models.Role) (token string, expiresAt time.Time, err error)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	State    string `json:"state"`
	District string `json:"district"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by a successful register or login.
type AuthResult struct {
	Token       string            `json:"token"`
	SessionID   string            `json:"sessionId"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	Profile     models.Profile    `json:"profile"`
	Source      Source            `json:"source"`
	Label       string            `json:"label"`
	Destination string            `json:"destination"`
	Permissions authz.Permissions `json:"permissions"`
}

type Service struct {
	provider     *Provider
	resolver     *Resolver
	profiles     ProfileStore
	intents      IntentStore
	sessions     SessionStore
	issueToken   TokenIssuer
	allowedRoles map[models.Role]bool
	now          func() time.Time
	logger       *zap.Logger
}

func NewService(provider *Provider, resolver *Resolver, profiles ProfileStore, intents IntentStore,
	sessions SessionStore, issueToken TokenIssuer, registrationRoles []models.Role, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(registrationRoles) == 0 {
		registrationRoles = []models.Role{models.RolePublic, models.RoleNGO, models.RoleAuthority, models.RoleAdmin}
	}
	allowed := make(map[models.Role]bool, len(registrationRoles))
	for _, r := range registrationRoles {
		allowed[r] = true
	}
	return &Service{
		provider:     provider,
		resolver:     resolver,
		profiles:     profiles,
		intents:      intents,
		sessions:     sessions,
		issueToken:   issueToken,
		allowedRoles: allowed,
		now:          time.Now,
		logger:       logger,
	}
}

// Register creates the account and its profile. A profile write that fails
// after the account exists does not fail registration: the user continues on
// a session-only profile.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (AuthResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Surname = strings.TrimSpace(req.Surname)
	req.State = strings.TrimSpace(req.State)
	req.District = strings.TrimSpace(req.District)
	if req.Name == "" || req.Surname == "" || req.State == "" || req.District == "" {
		return AuthResult{}, apperr.Validation("Please fill in all personal details")
	}

	role := models.RolePublic
	if req.Role != "" {
		r, ok := models.ParseRole(req.Role)
		if !ok || !s.allowedRoles[r] {
			return AuthResult{}, apperr.Validation("Selected role is not available for registration")
		}
		role = r
	}

	subject, err := s.provider.Register(ctx, req.Email, req.Password)
	if err != nil {
		return AuthResult{}, err
	}
	log := s.logger.With(zap.String("uid", subject.UID))

	// Saved before the profile write so a later repair picks it up.
	if s.intents != nil {
		if err := s.intents.SaveIntendedRole(ctx, subject.Email, role); err != nil {
			log.Warn("could not save intended role", zap.Error(err))
		}
	}

	sid := uuid.NewString()
	profile := models.Profile{
		UID:       subject.UID,
		Email:     subject.Email,
		Role:      role,
		Name:      req.Name,
		Surname:   req.Surname,
		State:     req.State,
		District:  req.District,
		CreatedAt: models.StoreTime(s.now()),
	}
	source := SourceStored
	if err := s.profiles.CreateProfile(ctx, profile); err != nil {
		log.Error("profile write failed after account creation", zap.Error(err))
		profile = s.resolver.Ephemeral(ctx, ResolveRequest{Subject: subject, SessionID: sid, RoleHint: role, Name: req.Name})
		source = SourceEphemeral
	}
	profile = s.resolver.applyAllowList(profile)

	return s.startSession(ctx, sid, subject, Resolution{Profile: profile, Source: source})
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (AuthResult, error) {
	subject, err := s.provider.Login(ctx, req.Email, req.Password)
	if err != nil {
		s.logger.Info("login rejected", zap.String("email", normalizeEmail(req.Email)), zap.Error(err))
		return AuthResult{}, err
	}

	sid := uuid.NewString()
	res, err := s.resolver.Resolve(ctx, ResolveRequest{Subject: subject, SessionID: sid})
	if err != nil {
		return AuthResult{}, apperr.Internal(err)
	}
	return s.startSession(ctx, sid, subject, res)
}

func (s *Service) startSession(ctx context.Context, sid string, subject Subject, res Resolution) (AuthResult, error) {
	role := models.NormalizeRole(string(res.Profile.Role))
	rec := session.Record{
		SessionID: sid,
		UserID:    subject.UID,
		Email:     subject.Email,
		Role:      role,
		CreatedAt: s.now().UTC(),
	}
	if err := s.sessions.Create(ctx, rec); err != nil {
		return AuthResult{}, apperr.Internal(err)
	}
	token, expiresAt, err := s.issueToken(subject.UID, sid, role)
	if err != nil {
		return AuthResult{}, apperr.Internal(err)
	}

	s.logger.Info("session started",
		zap.String("uid", subject.UID),
		zap.String("role", string(role)),
		zap.String("source", string(res.Source)))

	return AuthResult{
		Token:       token,
		SessionID:   sid,
		ExpiresAt:   expiresAt,
		Profile:     res.Profile,
		Source:      res.Source,
		Label:       authz.Label(role),
		Destination: authz.Destination(role),
		Permissions: authz.PermissionsFor(role),
	}, nil
}

func (s *Service) Logout(ctx context.Context, sid string) error {
	if err := s.sessions.Revoke(ctx, sid); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// Current returns the profile behind a running session: the stored one when
// it can be read, otherwise the session-only profile, otherwise a fresh
// resolution.
func (s *Service) Current(ctx context.Context, rec session.Record) (models.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, rec.UserID)
	if err == nil {
		return s.resolver.applyAllowList(p), nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		s.logger.Warn("profile read failed", zap.String("uid", rec.UserID), zap.Error(err))
	}
	if fb, err := s.sessions.FallbackProfile(ctx, rec.SessionID); err == nil {
		return fb, nil
	}
	res, err := s.resolver.Resolve(ctx, ResolveRequest{
		Subject:   Subject{UID: rec.UserID, Email: rec.Email},
		SessionID: rec.SessionID,
		RoleHint:  rec.Role,
	})
	if err != nil {
		return models.Profile{}, apperr.Internal(err)
	}
	return res.Profile, nil
}

// UpdateProfile writes the self-service fields. Session-only profiles are
// updated in the session store and stay out of the shared collection.
func (s *Service) UpdateProfile(ctx context.Context, sc session.Context, update models.ProfileUpdate) (models.Profile, error) {
	if err := authz.Authorize(sc.Role, authz.OpUpdateProfile); err != nil {
		return models.Profile{}, apperr.Forbidden("You cannot update this profile")
	}
	update.Name = strings.TrimSpace(update.Name)
	update.District = strings.TrimSpace(update.District)
	update.PublicName = strings.TrimSpace(update.PublicName)

	if sc.Profile.LocalMode {
		p := sc.Profile
		update.Apply(&p)
		if err := s.sessions.SaveFallbackProfile(ctx, sc.SessionID, p); err != nil {
			return models.Profile{}, apperr.Mutation("Failed to update profile", err)
		}
		return p, nil
	}

	p, err := s.profiles.UpdateProfile(ctx, sc.UserID, update)
	if errors.Is(err, ErrProfileNotFound) {
		return models.Profile{}, apperr.NotFound("Profile not found")
	}
	if err != nil {
		s.logger.Error("profile update failed", zap.String("uid", sc.UserID), zap.Error(err))
		return models.Profile{}, apperr.Mutation("Failed to update profile", err)
	}
	return s.resolver.applyAllowList(p), nil
}
