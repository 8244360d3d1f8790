package gormstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	gateAuth "github.com/MrEthical07/gateAuth"
	"github.com/MrEthical07/gateAuth/password"
	"github.com/MrEthical07/gateAuth/permission"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is a gorm-backed account directory. It implements
// [gateAuth.IdentityStore], [gateAuth.RoleStore] and [gateAuth.Directory].
type Store struct {
	db     *gorm.DB
	hasher password.Hasher
	log    logrus.FieldLogger
}

var (
	_ gateAuth.IdentityStore = (*Store)(nil)
	_ gateAuth.RoleStore     = (*Store)(nil)
	_ gateAuth.Directory     = (*Store)(nil)
)

// New returns a store over db. hasher must match the one the engine uses.
func New(db *gorm.DB, hasher password.Hasher, log logrus.FieldLogger) *Store {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Store{db: db, hasher: hasher, log: log}
}

// Migrate creates or updates every table.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(Models()...)
}

func (s *Store) FindPrincipalByUsername(ctx context.Context, username string) (*gateAuth.Principal, error) {
	var u User
	err := s.db.WithContext(ctx).
		Where("normalized_user_name = ?", normalizeUserName(username)).
		First(&u).Error
	if err != nil {
		return nil, notFound(err, gateAuth.ErrUserNotFound)
	}
	return toPrincipal(&u), nil
}

// VerifyPassword checks pw against the stored hash and upgrades hashes the
// hasher no longer produces. A failed upgrade is logged, not returned.
func (s *Store) VerifyPassword(ctx context.Context, principalID, pw string) (bool, error) {
	var hashes []string
	err := s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", principalID).
		Pluck("password_hash", &hashes).Error
	if err != nil {
		return false, err
	}
	if len(hashes) == 0 || hashes[0] == "" {
		return false, nil
	}

	ok, err := s.hasher.Verify(pw, hashes[0])
	if err != nil || !ok {
		return false, err
	}

	if s.hasher.NeedsRehash(hashes[0]) {
		s.rehash(ctx, principalID, pw)
	}
	return true, nil
}

func (s *Store) rehash(ctx context.Context, principalID, pw string) {
	hash, err := s.hasher.Hash(pw)
	if err == nil {
		err = s.db.WithContext(ctx).
			Model(&User{}).
			Where("id = ?", principalID).
			UpdateColumn("password_hash", hash).Error
	}
	if err != nil {
		s.log.WithField("principal_id", principalID).WithError(err).Warn("password rehash failed")
	}
}

func (s *Store) RolesOf(ctx context.Context, principalID string) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&Role{}).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", principalID).
		Order("roles.name").
		Pluck("roles.name", &names).Error
	return names, err
}

func (s *Store) CountPrincipals(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&User{}).Count(&n).Error
	return n, err
}

// RolesGranting loads the named roles and their granted transactions.
func (s *Store) RolesGranting(ctx context.Context, names []string) ([]permission.Role, error) {
	if len(names) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(names))
	for _, n := range names {
		keys = append(keys, permission.NormalizeRoleName(n))
	}

	var roles []Role
	if err := s.db.WithContext(ctx).Where("normalized_name IN ?", keys).Order("name").Find(&roles).Error; err != nil {
		return nil, err
	}
	return s.withGrants(ctx, s.db, roles)
}

type grantRow struct {
	RoleID string
	Transaction
}

func (s *Store) withGrants(ctx context.Context, db *gorm.DB, roles []Role) ([]permission.Role, error) {
	if len(roles) == 0 {
		return []permission.Role{}, nil
	}

	ids := make([]string, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}

	var rows []grantRow
	err := db.WithContext(ctx).
		Table("role_transactions").
		Select("role_transactions.role_id, transactions.*").
		Joins("JOIN transactions ON transactions.code = role_transactions.transaction_code").
		Where("role_transactions.role_id IN ?", ids).
		Order("transactions.code").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byRole := make(map[string][]permission.Transaction, len(roles))
	for _, row := range rows {
		byRole[row.RoleID] = append(byRole[row.RoleID], row.Transaction.toPermission())
	}

	out := make([]permission.Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, permission.Role{Name: r.Name, Transactions: byRole[r.ID]})
	}
	return out, nil
}

func (s *Store) CreatePrincipal(ctx context.Context, np gateAuth.NewPrincipal) (*gateAuth.Principal, error) {
	u := &User{
		UserName:       np.Username,
		Email:          np.Email,
		PhoneNumber:    np.PhoneNumber,
		EmailConfirmed: np.EmailConfirmed,
		PasswordHash:   np.PasswordHash,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&User{}).Where("normalized_user_name = ?", normalizeUserName(np.Username)).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return gateAuth.ErrUserExists
		}

		roleIDs, err := resolveRoleIDs(tx, np.Roles)
		if err != nil {
			return err
		}
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		return linkRoles(tx, u.ID, roleIDs)
	})
	if err != nil {
		return nil, err
	}
	return toPrincipal(u), nil
}

func (s *Store) GetPrincipal(ctx context.Context, id string) (*gateAuth.Principal, error) {
	var u User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err, gateAuth.ErrUserNotFound)
	}
	return toPrincipal(&u), nil
}

func (s *Store) UpdatePrincipal(ctx context.Context, p *gateAuth.Principal, passwordHash string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		normalized := normalizeUserName(p.Username)

		var clash int64
		err := tx.Model(&User{}).
			Where("normalized_user_name = ? AND id <> ?", normalized, p.ID).
			Count(&clash).Error
		if err != nil {
			return err
		}
		if clash > 0 {
			return gateAuth.ErrUserExists
		}

		updates := map[string]any{
			"user_name":              p.Username,
			"normalized_user_name":   normalized,
			"email":                  p.Email,
			"phone_number":           p.PhoneNumber,
			"email_confirmed":        p.EmailConfirmed,
			"phone_number_confirmed": p.PhoneNumberConfirmed,
		}
		if passwordHash != "" {
			updates["password_hash"] = passwordHash
		}

		res := tx.Model(&User{}).Where("id = ?", p.ID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gateAuth.ErrUserNotFound
		}
		return nil
	})
}

func (s *Store) DeletePrincipal(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&UserRole{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gateAuth.ErrUserNotFound
		}
		return nil
	})
}

func (s *Store) ListPrincipals(ctx context.Context) ([]gateAuth.Principal, error) {
	var users []User
	if err := s.db.WithContext(ctx).Order("user_name").Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]gateAuth.Principal, 0, len(users))
	for i := range users {
		out = append(out, *toPrincipal(&users[i]))
	}
	return out, nil
}

func (s *Store) CreateRole(ctx context.Context, name string) (*permission.Role, error) {
	r := &Role{Name: name}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&Role{}).Where("normalized_name = ?", permission.NormalizeRoleName(name)).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return gateAuth.ErrRoleExists
		}
		return tx.Create(r).Error
	})
	if err != nil {
		return nil, err
	}
	return &permission.Role{Name: r.Name}, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]permission.Role, error) {
	var roles []Role
	if err := s.db.WithContext(ctx).Order("name").Find(&roles).Error; err != nil {
		return nil, err
	}
	return s.withGrants(ctx, s.db, roles)
}

// SetRoles replaces the principal's role links.
func (s *Store) SetRoles(ctx context.Context, principalID string, roles []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&User{}).Where("id = ?", principalID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return gateAuth.ErrUserNotFound
		}

		roleIDs, err := resolveRoleIDs(tx, roles)
		if err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", principalID).Delete(&UserRole{}).Error; err != nil {
			return err
		}
		return linkRoles(tx, principalID, roleIDs)
	})
}

func (s *Store) ListTransactions(ctx context.Context) ([]permission.Transaction, error) {
	var txs []Transaction
	if err := s.db.WithContext(ctx).Order("code").Find(&txs).Error; err != nil {
		return nil, err
	}
	out := make([]permission.Transaction, 0, len(txs))
	for _, t := range txs {
		out = append(out, t.toPermission())
	}
	return out, nil
}

const grantAllSQL = `INSERT INTO role_transactions (role_id, transaction_code)
SELECT ?, t.code FROM transactions t
WHERE NOT EXISTS (
  SELECT 1 FROM role_transactions rt WHERE rt.role_id = ? AND rt.transaction_code = t.code
)`

// GrantAllTransactions links every transaction not yet granted to role.
func (s *Store) GrantAllTransactions(ctx context.Context, role string) (int, error) {
	var added int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r Role
		if err := tx.Where("normalized_name = ?", permission.NormalizeRoleName(role)).First(&r).Error; err != nil {
			return notFound(err, gateAuth.ErrRoleNotFound)
		}
		res := tx.Exec(grantAllSQL, r.ID, r.ID)
		if res.Error != nil {
			return res.Error
		}
		added = res.RowsAffected
		return nil
	})
	return int(added), err
}

// ImportCatalog upserts modules, applications and transactions by code and
// returns the number of transactions written.
func (s *Store) ImportCatalog(ctx context.Context, c *permission.Catalog) (int, error) {
	txs, err := c.Transactions()
	if err != nil {
		return 0, err
	}

	modules := make([]Module, 0, len(c.Modules))
	var apps []Application
	for _, m := range c.Modules {
		modules = append(modules, Module{Code: m.Code, Name: m.Name})
		for _, a := range m.Applications {
			apps = append(apps, Application{Code: a.Code, ModuleCode: m.Code, Name: a.Name, SortOrder: a.Order})
		}
	}

	rows := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, Transaction{
			Code:            t.Code,
			ApplicationCode: t.Application,
			Name:            t.Name,
			URL:             t.URL,
			SortOrder:       t.Order,
			ShowInMenu:      t.ShowInMenu,
		})
	}

	upsert := clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, UpdateAll: true}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(modules) > 0 {
			if err := tx.Clauses(upsert).Create(&modules).Error; err != nil {
				return fmt.Errorf("upsert modules: %w", err)
			}
		}
		if len(apps) > 0 {
			if err := tx.Clauses(upsert).Create(&apps).Error; err != nil {
				return fmt.Errorf("upsert applications: %w", err)
			}
		}
		if len(rows) > 0 {
			if err := tx.Clauses(upsert).Create(&rows).Error; err != nil {
				return fmt.Errorf("upsert transactions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func resolveRoleIDs(tx *gorm.DB, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		k := permission.NormalizeRoleName(n)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	var roles []Role
	if err := tx.Where("normalized_name IN ?", keys).Find(&roles).Error; err != nil {
		return nil, err
	}
	if len(roles) != len(keys) {
		return nil, gateAuth.ErrRoleNotFound
	}

	ids := make([]string, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func linkRoles(tx *gorm.DB, userID string, roleIDs []string) error {
	if len(roleIDs) == 0 {
		return nil
	}
	links := make([]UserRole, 0, len(roleIDs))
	for _, id := range roleIDs {
		links = append(links, UserRole{UserID: userID, RoleID: id})
	}
	return tx.Create(&links).Error
}

func toPrincipal(u *User) *gateAuth.Principal {
	return &gateAuth.Principal{
		ID:                   u.ID,
		Username:             u.UserName,
		Email:                u.Email,
		PhoneNumber:          u.PhoneNumber,
		EmailConfirmed:       u.EmailConfirmed,
		PhoneNumberConfirmed: u.PhoneNumberConfirmed,
	}
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
