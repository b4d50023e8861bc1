package lottery

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/elskow/lottery-web/internal/auth"
	"github.com/elskow/lottery-web/internal/config"
	"github.com/elskow/lottery-web/internal/cryptobox"
	"github.com/elskow/lottery-web/internal/securitylog"
)

const (
	adminID uint = 1
	aliceID uint = 2
	bobID   uint = 3
)

// userDirectory is an auth.Repository over a fixed set of users.
type userDirectory struct {
	users map[uint]*auth.User
	mu    sync.Mutex
}

func newUserDirectory() *userDirectory {
	return &userDirectory{users: map[uint]*auth.User{
		adminID: {ID: adminID, Email: "admin@email.com", FirstName: "Ada", LastName: "Admin", Role: auth.RoleAdmin, PinKey: "BFB5S34STBLZCOB22K6PPYDCMZMH46OJ"},
		aliceID: {ID: aliceID, Email: "alice@example.com", FirstName: "Alice", LastName: "Smith", Role: auth.RoleUser, PinKey: "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"},
		bobID:   {ID: bobID, Email: "bob@example.com", FirstName: "Bob", LastName: "Jones", Role: auth.RoleUser, PinKey: "KRSXG5CTMVRXEZLUKRSXG5CTMVRXEZLU"},
	}}
}

func (d *userDirectory) CreateUser(_ context.Context, user *auth.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user.ID = uint(len(d.users) + 1)
	c := *user
	d.users[user.ID] = &c
	return nil
}

func (d *userDirectory) GetUserByID(_ context.Context, id uint) (*auth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (d *userDirectory) GetUserByEmail(_ context.Context, email string) (*auth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (d *userDirectory) ListUsersByRole(_ context.Context, role auth.Role) ([]auth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []auth.User
	for _, u := range d.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *userDirectory) RecordLogin(context.Context, uint, time.Time) error {
	return nil
}

func (d *userDirectory) remove(id uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, id)
}

type testEnv struct {
	store    *Store
	engine   *Engine
	repo     *mockRepository
	users    *userDirectory
	authSvc  *auth.Service
	authCfg  *config.AuthConfig
	security *securitylog.Log
	events   *observer.ObservedLogs
	metrics  *MetricsCollector
	log      *zap.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	log := zap.NewNop()
	core, events := observer.New(zapcore.InfoLevel)
	security := securitylog.New(core)

	authCfg := &config.AuthConfig{
		JWTSecret:        "test-secret-key",
		TokenExpiration:  time.Hour,
		SessionTTL:       time.Hour,
		MaxLoginAttempts: 3,
		PinKeyLength:     32,
		SessionCookie:    "lottery_session",
		TokenCookie:      "lottery_token",
	}
	users := newUserDirectory()
	guard := auth.NewGuard(auth.NewMemorySessionStore(time.Hour), 3)
	authSvc := auth.NewService(authCfg, log, users, guard, security)

	repo := newMockRepository()
	store := NewStore(repo, cryptobox.NewKeyRing(authSvc), security, log, 60)
	metrics := NewMetricsCollector()

	return &testEnv{
		store:    store,
		engine:   NewEngine(store, authSvc, metrics, log),
		repo:     repo,
		users:    users,
		authSvc:  authSvc,
		authCfg:  authCfg,
		security: security,
		events:   events,
		metrics:  metrics,
		log:      log,
	}
}

func (e *testEnv) principal(id uint) *auth.Principal {
	u := e.users.users[id]
	return auth.PrincipalFor(u, "sid")
}

func (e *testEnv) admin() *auth.Principal { return e.principal(adminID) }
func (e *testEnv) alice() *auth.Principal { return e.principal(aliceID) }
func (e *testEnv) bob() *auth.Principal   { return e.principal(bobID) }

func (e *testEnv) submit(t *testing.T, p *auth.Principal, numbers ...int) *DrawView {
	v, err := e.store.SubmitDraw(context.Background(), p, numbers)
	require.NoError(t, err)
	return v
}

func (e *testEnv) publish(t *testing.T, numbers ...int) *DrawView {
	v, err := e.store.PublishWinningDraw(context.Background(), e.admin(), numbers)
	require.NoError(t, err)
	return v
}

func (e *testEnv) draw(t *testing.T, id uint) Draw {
	e.repo.mu.Lock()
	defer e.repo.mu.Unlock()
	d, ok := e.repo.draws[id]
	require.True(t, ok, "draw %d missing", id)
	return cloneDraw(d)
}

func (e *testEnv) snapshot() map[uint]Draw {
	e.repo.mu.Lock()
	defer e.repo.mu.Unlock()
	out := make(map[uint]Draw, len(e.repo.draws))
	for id, d := range e.repo.draws {
		out[id] = cloneDraw(d)
	}
	return out
}

func TestFormatAndParseNumbers(t *testing.T) {
	assert.Equal(t, "0 10 20 30 40 60", FormatNumbers([]int{0, 10, 20, 30, 40, 60}))

	numbers, err := ParseNumbers("  1 2\t3 4  5 6 ")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, numbers)

	_, err = ParseNumbers("1 2 x")
	assert.Error(t, err)
}

func TestSameDraw(t *testing.T) {
	assert.True(t, SameDraw("1 2 3 4 5 6", "1 2 3 4 5 6 "))
	assert.True(t, SameDraw(" 1  2 3 4 5 6", "1 2 3 4 5 6"))
	assert.False(t, SameDraw("1 2 3 4 5 6", "1 2 3 4 5 7"))
	assert.False(t, SameDraw("1 2 3 4 5 6", "12 3 4 5 6"))
}

func (r *mockRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.draws)
}
