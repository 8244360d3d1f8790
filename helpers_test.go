package gateAuth

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/gateAuth/password"
	"github.com/MrEthical07/gateAuth/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-password-123"

type memUser struct {
	principal Principal
	hash      string
	roles     []string
}

// memDirectory is an in-memory IdentityStore, RoleStore and Directory.
type memDirectory struct {
	mu     sync.Mutex
	hasher password.Hasher
	nextID int
	users  map[string]*memUser
	roles  map[string]permission.Role
	txs    []permission.Transaction

	rolesGrantingCalls atomic.Int64
	failRoles          error
	failCount          error
}

func newMemDirectory(hasher password.Hasher) *memDirectory {
	return &memDirectory{
		hasher: hasher,
		users:  map[string]*memUser{},
		roles:  map[string]permission.Role{},
	}
}

func (d *memDirectory) findByName(username string) *memUser {
	for _, u := range d.users {
		if strings.EqualFold(u.principal.Username, username) {
			return u
		}
	}
	return nil
}

func (d *memDirectory) FindPrincipalByUsername(_ context.Context, username string) (*Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := d.findByName(username)
	if u == nil {
		return nil, ErrUserNotFound
	}
	p := u.principal
	return &p, nil
}

func (d *memDirectory) VerifyPassword(_ context.Context, principalID, pw string) (bool, error) {
	d.mu.Lock()
	u, ok := d.users[principalID]
	var hash string
	if ok {
		hash = u.hash
	}
	d.mu.Unlock()
	if !ok {
		return false, nil
	}
	return d.hasher.Verify(pw, hash)
}

func (d *memDirectory) RolesOf(_ context.Context, principalID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failRoles != nil {
		return nil, d.failRoles
	}
	u, ok := d.users[principalID]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), u.roles...), nil
}

func (d *memDirectory) CountPrincipals(context.Context) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failCount != nil {
		return 0, d.failCount
	}
	return int64(len(d.users)), nil
}

func (d *memDirectory) RolesGranting(_ context.Context, names []string) ([]permission.Role, error) {
	d.rolesGrantingCalls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]permission.Role, 0, len(names))
	for _, name := range names {
		if r, ok := d.roles[permission.NormalizeRoleName(name)]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (d *memDirectory) CreatePrincipal(_ context.Context, np NewPrincipal) (*Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findByName(np.Username) != nil {
		return nil, ErrUserExists
	}
	for _, r := range np.Roles {
		if _, ok := d.roles[permission.NormalizeRoleName(r)]; !ok {
			return nil, ErrRoleNotFound
		}
	}
	d.nextID++
	u := &memUser{
		principal: Principal{
			ID:             "u" + strconv.Itoa(d.nextID),
			Username:       np.Username,
			Email:          np.Email,
			PhoneNumber:    np.PhoneNumber,
			EmailConfirmed: np.EmailConfirmed,
		},
		hash:  np.PasswordHash,
		roles: append([]string(nil), np.Roles...),
	}
	d.users[u.principal.ID] = u
	p := u.principal
	return &p, nil
}

func (d *memDirectory) GetPrincipal(_ context.Context, id string) (*Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	p := u.principal
	return &p, nil
}

func (d *memDirectory) UpdatePrincipal(_ context.Context, p *Principal, passwordHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[p.ID]
	if !ok {
		return ErrUserNotFound
	}
	if other := d.findByName(p.Username); other != nil && other != u {
		return ErrUserExists
	}
	u.principal = *p
	if passwordHash != "" {
		u.hash = passwordHash
	}
	return nil
}

func (d *memDirectory) DeletePrincipal(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(d.users, id)
	return nil
}

func (d *memDirectory) ListPrincipals(context.Context) ([]Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Principal, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, u.principal)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (d *memDirectory) CreateRole(_ context.Context, name string) (*permission.Role, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := permission.NormalizeRoleName(name)
	if _, ok := d.roles[key]; ok {
		return nil, ErrRoleExists
	}
	r := permission.Role{Name: name}
	d.roles[key] = r
	return &r, nil
}

func (d *memDirectory) ListRoles(context.Context) ([]permission.Role, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]permission.Role, 0, len(d.roles))
	for _, r := range d.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *memDirectory) SetRoles(_ context.Context, principalID string, roles []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[principalID]
	if !ok {
		return ErrUserNotFound
	}
	for _, r := range roles {
		if _, ok := d.roles[permission.NormalizeRoleName(r)]; !ok {
			return ErrRoleNotFound
		}
	}
	u.roles = append([]string(nil), roles...)
	return nil
}

func (d *memDirectory) ListTransactions(context.Context) ([]permission.Transaction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]permission.Transaction(nil), d.txs...), nil
}

func (d *memDirectory) GrantAllTransactions(_ context.Context, role string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := permission.NormalizeRoleName(role)
	r, ok := d.roles[key]
	if !ok {
		return 0, ErrRoleNotFound
	}
	have := map[string]bool{}
	for _, t := range r.Transactions {
		have[t.Code] = true
	}
	added := 0
	for _, t := range d.txs {
		if !have[t.Code] {
			r.Transactions = append(r.Transactions, t)
			added++
		}
	}
	d.roles[key] = r
	return added, nil
}

// seedRole creates a role granting urls directly, bypassing the engine.
func (d *memDirectory) seedRole(name string, urls ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := permission.Role{Name: name}
	for i, u := range urls {
		r.Transactions = append(r.Transactions, permission.Transaction{Code: name + strconv.Itoa(i), URL: u})
	}
	d.roles[permission.NormalizeRoleName(name)] = r
}

// seedUser stores a principal with testPassword, bypassing the engine.
func (d *memDirectory) seedUser(tb testing.TB, username string, roles ...string) *Principal {
	tb.Helper()
	hash, err := d.hasher.Hash(testPassword)
	if err != nil {
		tb.Fatalf("hash: %v", err)
	}
	p, err := d.CreatePrincipal(context.Background(), NewPrincipal{
		Username:     username,
		Email:        username,
		PasswordHash: hash,
		Roles:        roles,
	})
	if err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return p
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type engineFixture struct {
	engine *Engine
	dir    *memDirectory
	redis  *miniredis.Miniredis
	clock  *testClock
}

type fixtureOption func(*Builder)

func withSink(sink AuditSink) fixtureOption {
	return func(b *Builder) { b.WithAuditSink(sink) }
}

func withoutDirectory() fixtureOption {
	return func(b *Builder) { b.WithDirectory(nil) }
}

func newEngineFixture(tb testing.TB, cfg Config, opts ...fixtureOption) *engineFixture {
	tb.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		tb.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	hasher, err := password.NewChain(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		tb.Fatalf("hasher: %v", err)
	}

	dir := newMemDirectory(hasher)
	dir.seedRole(cfg.Accounts.AdminRole)
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityStore(dir).
		WithRoleStore(dir).
		WithDirectory(dir).
		WithPasswordHasher(hasher).
		WithClock(clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		tb.Fatalf("build: %v", err)
	}

	tb.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &engineFixture{engine: engine, dir: dir, redis: mr, clock: clock}
}

func expectErr(tb testing.TB, err, want error) {
	tb.Helper()
	if !errors.Is(err, want) {
		tb.Fatalf("expected %v, got %v", want, err)
	}
}
