package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pih12/Pravah/apperr"
	"github.com/pih12/Pravah/authz"
	"github.com/pih12/Pravah/models"
	"github.com/pih12/Pravah/session"
)

// flakyProfiles wraps a memory store and fails on demand.
type flakyProfiles struct {
	*MemoryProfileStore
	mu        sync.Mutex
	readErr   error
	failReads int
	writeErr  error
	reads     int
	writes    int
}

func newFlakyProfiles() *flakyProfiles {
	return &flakyProfiles{MemoryProfileStore: NewMemoryProfileStore()}
}

func (f *flakyProfiles) GetProfile(ctx context.Context, uid string) (models.Profile, error) {
	f.mu.Lock()
	f.reads++
	fail := f.readErr != nil && (f.failReads == 0 || f.reads <= f.failReads)
	f.mu.Unlock()
	if fail {
		return models.Profile{}, f.readErr
	}
	return f.MemoryProfileStore.GetProfile(ctx, uid)
}

func (f *flakyProfiles) CreateProfile(ctx context.Context, p models.Profile) error {
	f.mu.Lock()
	f.writes++
	err := f.writeErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryProfileStore.CreateProfile(ctx, p)
}

type fixture struct {
	profiles *flakyProfiles
	intents  *RedisIntentStore
	sessions *session.RedisStore
	resolver *Resolver
	service  *Service
	redis    *miniredis.Miniredis
	sleeps   []time.Duration
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T, cfg ResolverConfig) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	f := &fixture{
		profiles: newFlakyProfiles(),
		intents:  NewRedisIntentStore(client),
		sessions: session.NewRedisStore(client, time.Hour),
		redis:    mr,
		logs:     logs,
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Second
	}
	f.resolver = NewResolver(f.profiles, f.intents, f.sessions, cfg, logger)
	f.resolver.sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}

	issue := func(uid, sid string, role models.Role) (string, time.Time, error) {
		return "token-" + sid, time.Now().Add(time.Hour), nil
	}
	f.service = NewService(NewProvider(NewMemoryAccountStore()), f.resolver, f.profiles, f.intents,
		f.sessions, issue, nil, logger)
	return f
}

var subject = Subject{UID: "uid-1", Email: "citizen@example.in"}

func TestResolveStoredProfile(t *testing.T) {
	f := newFixture(t, ResolverConfig{})
	ctx := context.Background()
	require.NoError(t, f.profiles.MemoryProfileStore.CreateProfile(ctx, models.Profile{UID: subject.UID, Email: subject.Email, Role: models.RoleNGO}))

	res, err := f.resolver.Resolve(ctx, ResolveRequest{Subject: subject})
	require.NoError(t, err)
	assert.Equal(t, SourceStored, res.Source)
	assert.Equal(t, models.RoleNGO, res.Profile.Role)
	assert.Empty(t, f.sleeps)
}

func TestResolveRetriesTransientReads(t *testing.T) {
	f := newFixture(t, ResolverConfig{})
	ctx := context.Background()
	require.NoError(t, f.profiles.MemoryProfileStore.CreateProfile(ctx, models.Profile{UID: subject.UID, Email: subject.Email, Role: models.RolePublic}))
	f.profiles.readErr = errors.New("unavailable")
	f.profiles.failReads = 2

	res, err := f.resolver.Resolve(ctx, ResolveRequest{Subject: subject})
	require.NoError(t, err)
	assert.Equal(t, SourceStored, res.Source)
	assert.Equal(t, 3, f.profiles.reads)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, f.sleeps)
}

func TestResolveRepairDefaultsToPublic(t *testing.T) {
	f := newFixture(t, ResolverConfig{})
	ctx := context.Background()

	res, err := f.resolver.Resolve(ctx, ResolveRequest{Subject: subject})
	require.NoError(t, err)
	assert.Equal(t, SourceRepaired, res.Source)
	assert.Equal(t, models.RolePublic, res.Profile.Role)
	assert.Equal(t, "Unknown", res.Profile.Name)
	assert.True(t, res.Profile.Repaired)
	// three reads, two waits: no sleep after the last attempt
	assert.Equal(t, 3, f.profiles.reads)
	assert.Len(t, f.sleeps, 2)

	stored, err := f.profiles.MemoryProfileStore.GetProfile(ctx, subject.UID)
	require.NoError(t, err)
	assert.Equal(t, models.RolePublic, stored.Role)
	assert.True(t, stored.Repaired)
}

func TestResolveRepairUsesIntendedRole(t *testing.T) {
	f := newFixture(t, ResolverConfig{})
	ctx := context.Background()
	require.NoError(t, f.intents.SaveIntendedRole(ctx, "Citizen@Example.in", models.RoleAuthority))

	res, err := f.resolver.Resolve(ctx, ResolveRequest{Subject: subject})
	require.NoError(t, err)
	assert.Equal(t, SourceRepaired, res.Source)
	assert.Equal(t, models.RoleAuthority, res.Profile.Role)
	assert.Equal(t, time.Duration(0), f.redis.TTL("intended_role:citizen@example.in"))
}

func TestResolveEphemeralWhenRepairFails(t *testing.T) {
	f := newFixture(t, ResolverConfig{})
	ctx := context.Background()
	f.profiles.writeErr = errors.New("permission denied")

	res, err := f.resolver.Resolve(ctx, ResolveRequest{Subject: subject, SessionID: "sid-1"})
	require.NoError(t, err)
	assert.Equal(t, SourceEphemeral, res.Source)
	assert.Equal(t, models.RolePublic, res.Profile.Role)
	assert.Equal(t, "Temporary User", res.Profile.Name)
	assert.True(t, res.Profile.LocalMode)

	_, err = f.profiles.MemoryProfileStore.GetProfile(ctx, subject.UID)
	assert.ErrorIs(t, err, ErrProfileNotFound, "ephemeral profile must not reach the shared store")

	fb, err := f.sessions.FallbackProfile(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, res.Profile.UID, fb.UID)
	assert.True(t, fb.LocalMode)

	repairLogs := f.logs.FilterMessage("profile repair failed, using session-only profile").All()
	require.Len(t, repairLogs, 1)
	assert.Equal(t, string(apperr.KindProfileInconsistency), repairLogs[0].ContextMap()["code"])
}

func TestEphemeralRoleChain(t *testing.T) {
	cases := []struct {
		name      string
		email     string
		hint      models.Role
		intent    models.Role
		heuristic bool
		want      models.Role
	}{
		{name: "hint wins", email: "a@x.in", hint: models.RoleNGO, intent: models.RoleAuthority, want: models.RoleNGO},
		{name: "intent next", email: "a@x.in", intent: models.RoleAuthority, want: models.RoleAuthority},
		{name: "heuristic off", email: "helper.ngo@x.in", want: models.RolePublic},
		{name: "heuristic ngo", email: "helper.ngo@x.in", heuristic: true, want: models.RoleNGO},
		{name: "heuristic admin", email: "admin.desk@x.in", heuristic: true, want: models.RoleAdmin},
		{name: "default public", email: "plain@x.in", heuristic: true, want: models.RolePublic},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, ResolverConfig{LegacyHeuristic: tc.heuristic})
			ctx := context.Background()
			if tc.intent != "" {
				require.NoError(t, f.intents.SaveIntendedRole(ctx, tc.email, tc.intent))
			}
			p := f.resolver.Ephemeral(ctx, ResolveRequest{Subject: Subject{UID: "u", Email: tc.email}, RoleHint: tc.hint})
			assert.Equal(t, tc.want, p.Role)
		})
	}
}

func TestAdminAllowListOverridesStoredRole(t *testing.T) {
	f := newFixture(t, ResolverConfig{AdminEmails: []string{"Chief@Pravah.in"}})
	ctx := context.Background()
	chief := Subject{UID: "uid-chief", Email: "chief@pravah.in"}
	require.NoError(t, f.profiles.MemoryProfileStore.CreateProfile(ctx, models.Profile{UID: chief.UID, Email: chief.Email, Role: models.RolePublic}))

	res, err := f.resolver.Resolve(ctx, ResolveRequest{Subject: chief})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.Profile.Role)

	stored, _ := f.profiles.MemoryProfileStore.GetProfile(ctx, chief.UID)
	assert.Equal(t, models.RolePublic, stored.Role)
}

func TestStoredProfileIgnoresAdminSubstring(t *testing.T) {
	f := newFixture(t, ResolverConfig{LegacyHeuristic: true})
	ctx := context.Background()
	s := Subject{UID: "uid-x", Email: "badminton.club@example.in"}
	require.NoError(t, f.profiles.MemoryProfileStore.CreateProfile(ctx, models.Profile{UID: s.UID, Email: s.Email, Role: models.RolePublic}))

	res, err := f.resolver.Resolve(ctx, ResolveRequest{Subject: s})
	require.NoError(t, err)
	assert.Equal(t, models.RolePublic, res.Profile.Role)
}

func TestResolveStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t, ResolverConfig{})
	f.resolver.sleep = sleepCtx
	f.resolver.backoff = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.resolver.Resolve(ctx, ResolveRequest{Subject: subject})
	assert.ErrorIs(t, err, context.Canceled)
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Email:    "new.user@example.in",
		Password: "secret123",
		Role:     "ngo",
		Name:     "Asha",
		Surname:  "Patel",
		State:    "Gujarat",
		District: "Vadodara",
	}
}

func TestRegisterStoresProfileAndIntent(t *testing.T) {
	f := newFixture(t, ResolverConfig{})
	ctx := context.Background()

	res, err := f.service.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.Equal(t, SourceStored, res.Source)
	assert.Equal(t, models.RoleNGO, res.Profile.Role)
	assert.Equal(t, "ngo-dashboard", res.Destination)
	assert.Equal(t, "NGO / Supervisor", res.Label)
	assert.Equal(t, "token-"+res.SessionID, res.Token)

	role, ok, err := f.intents.IntendedRole(ctx, "new.user@example.in")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.RoleNGO, role)

	rec, err := f.sessions.Lookup(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, res.Profile.UID, rec.UserID)
	assert.Equal(t, models.RoleNGO, rec.Role)
}

func TestRegisterAppliesAdminAllowList(t *testing.T) {
	f := newFixture(t, ResolverConfig{AdminEmails: []string{"new.user@example.in"}})
	ctx := context.Background()
	req := validRegistration()
	req.Role = "public"

	res, err := f.service.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.Profile.Role)
	assert.Equal(t, "admin-dashboard", res.Destination)
	assert.Equal(t, authz.PermissionsFor(models.RoleAdmin), res.Permissions)

	rec, err := f.sessions.Lookup(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, rec.Role)

	stored, err := f.profiles.MemoryProfileStore.GetProfile(ctx, res.Profile.UID)
	require.NoError(t, err)
	assert.Equal(t, models.RolePublic, stored.Role)
}

func TestRegisterSurvivesProfileWriteFailure(t *testing.T) {
	f := newFixture(t, ResolverConfig{})
	ctx := context.Background()
	f.profiles.writeErr = errors.New("quota exceeded")

	res, err := f.service.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.Equal(t, SourceEphemeral, res.Source)
	assert.True(t, res.Profile.LocalMode)
	assert.Equal(t, models.RoleNGO, res.Profile.Role)
	assert.Equal(t, "Asha", res.Profile.Name)

	// the account exists, so logging in later repairs with the intended role
	f.profiles.writeErr = nil
	login, err := f.service.Login(ctx, LoginRequest{Email: "new.user@example.in", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, SourceRepaired, login.Source)
	assert.Equal(t, models.RoleNGO, login.Profile.Role)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t, ResolverConfig{})
	ctx := context.Background()

	missing := validRegistration()
	missing.District = " "
	_, err := f.service.Register(ctx, missing)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "Please fill in all personal details", ae.Message)

	badRole := validRegistration()
	badRole.Role = "superuser"
	_, err = f.service.Register(ctx, badRole)
	ae, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, ae.Kind)

	_, err = f.service.Register(ctx, validRegistration())
	require.NoError(t, err)
	_, err = f.service.Register(ctx, validRegistration())
	ae, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindAuth, ae.Kind)
	assert.Equal(t, "email-already-in-use", ae.Message)
}

func TestLoginFailureIsNotRetried(t *testing.T) {
	f := newFixture(t, ResolverConfig{})
	ctx := context.Background()
	_, err := f.service.Register(ctx, validRegistration())
	require.NoError(t, err)
	readsBefore := f.profiles.reads

	_, err = f.service.Login(ctx, LoginRequest{Email: "new.user@example.in", Password: "wrong-pass"})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindAuth, ae.Kind)
	assert.Equal(t, readsBefore, f.profiles.reads)
	assert.Empty(t, f.sleeps)
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newFixture(t, ResolverConfig{})
	ctx := context.Background()
	res, err := f.service.Register(ctx, validRegistration())
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, res.SessionID))
	_, err = f.sessions.Lookup(ctx, res.SessionID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestCurrentFallsBackToSessionProfile(t *testing.T) {
	f := newFixture(t, ResolverConfig{})
	ctx := context.Background()
	f.profiles.writeErr = errors.New("down")
	res, err := f.service.Register(ctx, validRegistration())
	require.NoError(t, err)

	rec, err := f.sessions.Lookup(ctx, res.SessionID)
	require.NoError(t, err)
	p, err := f.service.Current(ctx, rec)
	require.NoError(t, err)
	assert.True(t, p.LocalMode)
	assert.Equal(t, "Asha", p.Name)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t, ResolverConfig{})
	ctx := context.Background()
	res, err := f.service.Register(ctx, validRegistration())
	require.NoError(t, err)

	sc := session.Context{SessionID: res.SessionID, UserID: res.Profile.UID, Role: res.Profile.Role, Profile: res.Profile}
	p, err := f.service.UpdateProfile(ctx, sc, models.ProfileUpdate{Name: " Asha B ", District: "Anand", PublicName: "asha"})
	require.NoError(t, err)
	assert.Equal(t, "Asha B", p.Name)
	assert.Equal(t, "Anand", p.District)
	assert.Equal(t, models.RoleNGO, p.Role)
	assert.Equal(t, "Patel", p.Surname)
}

func TestUpdateLocalModeProfileStaysInSession(t *testing.T) {
	f := newFixture(t, ResolverConfig{})
	ctx := context.Background()
	f.profiles.writeErr = errors.New("down")
	res, err := f.service.Register(ctx, validRegistration())
	require.NoError(t, err)

	sc := session.Context{SessionID: res.SessionID, UserID: res.Profile.UID, Role: res.Profile.Role, Profile: res.Profile}
	p, err := f.service.UpdateProfile(ctx, sc, models.ProfileUpdate{Name: "Asha", District: "Kheda"})
	require.NoError(t, err)
	assert.Equal(t, "Kheda", p.District)

	fb, err := f.sessions.FallbackProfile(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Kheda", fb.District)
	_, err = f.profiles.MemoryProfileStore.GetProfile(ctx, res.Profile.UID)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}
