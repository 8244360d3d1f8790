package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	gateAuth "github.com/MrEthical07/gateAuth"
	"github.com/MrEthical07/gateAuth/password"
	"github.com/MrEthical07/gateAuth/permission"
	"github.com/google/uuid"
)

// ErrUnknownTransaction is returned by Grant for a code that was never imported.
var ErrUnknownTransaction = errors.New("unknown transaction code")

type account struct {
	principal gateAuth.Principal
	hash      string
	roles     []string
}

// Store keeps principals, roles and transactions in process memory. It
// implements [gateAuth.IdentityStore], [gateAuth.RoleStore] and
// [gateAuth.Directory] and is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	hasher   password.Hasher
	accounts map[string]*account
	byName   map[string]string
	roles    map[string]*permission.Role
	txs      map[string]permission.Transaction
}

var (
	_ gateAuth.IdentityStore = (*Store)(nil)
	_ gateAuth.RoleStore     = (*Store)(nil)
	_ gateAuth.Directory     = (*Store)(nil)
)

// New returns an empty store that verifies passwords with hasher.
func New(hasher password.Hasher) *Store {
	return &Store{
		hasher:   hasher,
		accounts: make(map[string]*account),
		byName:   make(map[string]string),
		roles:    make(map[string]*permission.Role),
		txs:      make(map[string]permission.Transaction),
	}
}

func nameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *Store) FindPrincipalByUsername(_ context.Context, username string) (*gateAuth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[nameKey(username)]
	if !ok {
		return nil, gateAuth.ErrUserNotFound
	}
	p := s.accounts[id].principal
	return &p, nil
}

func (s *Store) VerifyPassword(_ context.Context, principalID, pw string) (bool, error) {
	s.mu.RLock()
	a, ok := s.accounts[principalID]
	var hash string
	if ok {
		hash = a.hash
	}
	s.mu.RUnlock()

	if !ok || hash == "" {
		return false, nil
	}
	return s.hasher.Verify(pw, hash)
}

func (s *Store) RolesOf(_ context.Context, principalID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[principalID]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), a.roles...), nil
}

func (s *Store) CountPrincipals(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.accounts)), nil
}

// RolesGranting returns copies of the named roles with their grants.
func (s *Store) RolesGranting(_ context.Context, names []string) ([]permission.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]permission.Role, 0, len(names))
	for _, name := range names {
		r, ok := s.roles[permission.NormalizeRoleName(name)]
		if !ok {
			continue
		}
		out = append(out, copyRole(r))
	}
	return out, nil
}

func (s *Store) CreatePrincipal(_ context.Context, np gateAuth.NewPrincipal) (*gateAuth.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := nameKey(np.Username)
	if _, taken := s.byName[key]; taken {
		return nil, gateAuth.ErrUserExists
	}
	if err := s.checkRolesLocked(np.Roles); err != nil {
		return nil, err
	}

	a := &account{
		principal: gateAuth.Principal{
			ID:             uuid.NewString(),
			Username:       np.Username,
			Email:          np.Email,
			PhoneNumber:    np.PhoneNumber,
			EmailConfirmed: np.EmailConfirmed,
		},
		hash:  np.PasswordHash,
		roles: append([]string(nil), np.Roles...),
	}
	s.accounts[a.principal.ID] = a
	s.byName[key] = a.principal.ID

	p := a.principal
	return &p, nil
}

func (s *Store) GetPrincipal(_ context.Context, id string) (*gateAuth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, gateAuth.ErrUserNotFound
	}
	p := a.principal
	return &p, nil
}

func (s *Store) UpdatePrincipal(_ context.Context, p *gateAuth.Principal, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[p.ID]
	if !ok {
		return gateAuth.ErrUserNotFound
	}

	oldKey, newKey := nameKey(a.principal.Username), nameKey(p.Username)
	if oldKey != newKey {
		if _, taken := s.byName[newKey]; taken {
			return gateAuth.ErrUserExists
		}
		delete(s.byName, oldKey)
		s.byName[newKey] = p.ID
	}

	a.principal = *p
	if passwordHash != "" {
		a.hash = passwordHash
	}
	return nil
}

func (s *Store) DeletePrincipal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return gateAuth.ErrUserNotFound
	}
	delete(s.byName, nameKey(a.principal.Username))
	delete(s.accounts, id)
	return nil
}

// ListPrincipals returns every principal ordered by username.
func (s *Store) ListPrincipals(context.Context) ([]gateAuth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]gateAuth.Principal, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.principal)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) CreateRole(_ context.Context, name string) (*permission.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := permission.NormalizeRoleName(name)
	if _, ok := s.roles[key]; ok {
		return nil, gateAuth.ErrRoleExists
	}
	r := &permission.Role{Name: strings.TrimSpace(name)}
	s.roles[key] = r

	out := copyRole(r)
	return &out, nil
}

func (s *Store) ListRoles(context.Context) ([]permission.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]permission.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, copyRole(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) SetRoles(_ context.Context, principalID string, roles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[principalID]
	if !ok {
		return gateAuth.ErrUserNotFound
	}
	if err := s.checkRolesLocked(roles); err != nil {
		return err
	}
	a.roles = append([]string(nil), roles...)
	return nil
}

// ListTransactions returns every known transaction ordered by code.
func (s *Store) ListTransactions(context.Context) ([]permission.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]permission.Transaction, 0, len(s.txs))
	for _, t := range s.txs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) GrantAllTransactions(_ context.Context, role string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roles[permission.NormalizeRoleName(role)]
	if !ok {
		return 0, gateAuth.ErrRoleNotFound
	}

	granted := make(map[string]struct{}, len(r.Transactions))
	for _, t := range r.Transactions {
		granted[t.Code] = struct{}{}
	}

	codes := make([]string, 0, len(s.txs))
	for code := range s.txs {
		if _, ok := granted[code]; !ok {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	for _, code := range codes {
		r.Transactions = append(r.Transactions, s.txs[code])
	}
	return len(codes), nil
}

// Grant adds the transactions with the given codes to role.
func (s *Store) Grant(role string, codes ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roles[permission.NormalizeRoleName(role)]
	if !ok {
		return gateAuth.ErrRoleNotFound
	}
	for _, code := range codes {
		t, ok := s.txs[code]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTransaction, code)
		}
		r.Transactions = append(r.Transactions, t)
	}
	return nil
}

// ImportCatalog upserts every catalog transaction by code and returns how
// many were new.
func (s *Store) ImportCatalog(c *permission.Catalog) (int, error) {
	txs, err := c.Transactions()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, t := range txs {
		if _, ok := s.txs[t.Code]; !ok {
			added++
		}
		s.txs[t.Code] = t
	}
	return added, nil
}

func (s *Store) checkRolesLocked(roles []string) error {
	for _, name := range roles {
		if _, ok := s.roles[permission.NormalizeRoleName(name)]; !ok {
			return gateAuth.ErrRoleNotFound
		}
	}
	return nil
}

func copyRole(r *permission.Role) permission.Role {
	return permission.Role{
		Name:         r.Name,
		Transactions: append([]permission.Transaction(nil), r.Transactions...),
	}
}
