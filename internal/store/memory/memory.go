// Package memory implementa core.Store en memoria. Se usa en tests y en
// el perfil dev; no es apto para múltiples procesos.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexaerp/authd/internal/store/core"
)

type Store struct {
	mu sync.RWMutex

	tenants        map[string]*core.Tenant // por id
	principals     map[string]*core.Principal
	roles          map[string]*core.Role // por id
	rolePerms      map[string][]string   // role id -> permisos
	principalRoles map[string][]string   // tenantID|principalID -> role ids
	directPerms    map[string][]string   // tenantID|principalID -> permisos
	twofactor      map[string]*core.TwoFactorCredential
	backupCodes    map[string]map[string]struct{} // principal id -> set de hashes
	resources      map[string]string              // resource|id -> tenant id
}

func New() *Store {
	return &Store{
		tenants:        map[string]*core.Tenant{},
		principals:     map[string]*core.Principal{},
		roles:          map[string]*core.Role{},
		rolePerms:      map[string][]string{},
		principalRoles: map[string][]string{},
		directPerms:    map[string][]string{},
		twofactor:      map[string]*core.TwoFactorCredential{},
		backupCodes:    map[string]map[string]struct{}{},
		resources:      map[string]string{},
	}
}

func scopedKey(tenantID, principalID string) string { return tenantID + "|" + principalID }

// ─── Seeding (tests / dev) ───

func (s *Store) AddTenant(t core.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.tenants[t.ID] = &t
}

func (s *Store) AddPrincipal(p core.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Memberships == nil {
		p.Memberships = map[string]bool{}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.principals[p.ID] = &p
}

func (s *Store) AddRole(tenantID, name string, perms ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.roles[id] = &core.Role{ID: id, TenantID: tenantID, Name: name, CreatedAt: time.Now().UTC()}
	s.rolePerms[id] = append([]string(nil), perms...)
	return id
}

func (s *Store) AssignRole(tenantID, principalID, roleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scopedKey(tenantID, principalID)
	s.principalRoles[k] = append(s.principalRoles[k], roleID)
}

func (s *Store) GrantDirect(tenantID, principalID string, perms ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scopedKey(tenantID, principalID)
	s.directPerms[k] = append(s.directPerms[k], perms...)
}

func (s *Store) AddResource(resource, id, tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[resource+"|"+id] = tenantID
}

// ─── core.Store ───

func (s *Store) Principals() core.PrincipalRepository { return (*principalRepo)(s) }
func (s *Store) Tenants() core.TenantRepository       { return (*tenantRepo)(s) }
func (s *Store) RBAC() core.RBACRepository            { return (*rbacRepo)(s) }
func (s *Store) TwoFactor() core.TwoFactorRepository  { return (*twoFactorRepo)(s) }
func (s *Store) Ownership() core.OwnershipChecker     { return (*ownershipRepo)(s) }

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close()                         {}

// ─── PrincipalRepository ───

type principalRepo Store

func (r *principalRepo) GetByEmail(ctx context.Context, tenantID, email string) (*core.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, p := range r.principals {
		if strings.ToLower(p.Email) == email {
			if _, member := p.Memberships[tenantID]; member {
				return clonePrincipal(p), nil
			}
		}
	}
	return nil, core.ErrNotFound
}

func (r *principalRepo) GetByID(ctx context.Context, id string) (*core.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.principals[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return clonePrincipal(p), nil
}

func (r *principalRepo) EmailExistsInTenant(ctx context.Context, email, tenantID string) (bool, error) {
	if _, err := r.GetByEmail(ctx, tenantID, email); err != nil {
		if err == core.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *principalRepo) UpdateRememberToken(ctx context.Context, principalID string, tokenHash *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.principals[principalID]
	if !ok {
		return core.ErrNotFound
	}
	p.RememberTokenHash = tokenHash
	return nil
}

func clonePrincipal(p *core.Principal) *core.Principal {
	cp := *p
	cp.Memberships = make(map[string]bool, len(p.Memberships))
	for k, v := range p.Memberships {
		cp.Memberships[k] = v
	}
	return &cp
}

// ─── TenantRepository ───

type tenantRepo Store

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*core.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *tenantRepo) GetByCode(ctx context.Context, code string) (*core.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tenants {
		if t.Code == code {
			cp := *t
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

// ─── RBACRepository ───

type rbacRepo Store

func (r *rbacRepo) GetPrincipalRoles(ctx context.Context, tenantID, principalID string) ([]core.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.Role
	for _, roleID := range r.principalRoles[scopedKey(tenantID, principalID)] {
		if ro, ok := r.roles[roleID]; ok && ro.TenantID == tenantID {
			out = append(out, *ro)
		}
	}
	return out, nil
}

func (r *rbacRepo) GetRolePermissions(ctx context.Context, tenantID, roleName string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, ro := range r.roles {
		if ro.TenantID == tenantID && ro.Name == roleName {
			return append([]string(nil), r.rolePerms[id]...), nil
		}
	}
	return nil, nil
}

func (r *rbacRepo) GetDirectPermissions(ctx context.Context, tenantID, principalID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.directPerms[scopedKey(tenantID, principalID)]...), nil
}

// ─── TwoFactorRepository ───

type twoFactorRepo Store

func (r *twoFactorRepo) UpsertPending(ctx context.Context, principalID, secretEnc string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	r.twofactor[principalID] = &core.TwoFactorCredential{
		PrincipalID:     principalID,
		SecretEncrypted: secretEnc,
		Confirmed:       false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return nil
}

func (r *twoFactorRepo) Confirm(ctx context.Context, principalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tf, ok := r.twofactor[principalID]
	if !ok {
		return core.ErrNotFound
	}
	tf.Confirmed = true
	tf.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *twoFactorRepo) Get(ctx context.Context, principalID string) (*core.TwoFactorCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tf, ok := r.twofactor[principalID]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *tf
	return &cp, nil
}

func (r *twoFactorRepo) Delete(ctx context.Context, principalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.twofactor, principalID)
	delete(r.backupCodes, principalID)
	return nil
}

func (r *twoFactorRepo) UpdateLastCounter(ctx context.Context, principalID string, counter int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tf, ok := r.twofactor[principalID]
	if !ok {
		return core.ErrNotFound
	}
	c := counter
	tf.LastCounterUsed = &c
	tf.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *twoFactorRepo) SetBackupCodes(ctx context.Context, principalID string, hashes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	r.backupCodes[principalID] = set
	return nil
}

func (r *twoFactorRepo) UseBackupCode(ctx context.Context, principalID, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.backupCodes[principalID]
	if !ok {
		return false, nil
	}
	if _, ok := set[hash]; !ok {
		return false, nil
	}
	delete(set, hash) // consumido bajo lock: single-use garantizado
	return true, nil
}

// ─── OwnershipChecker ───

type ownershipRepo Store

func (r *ownershipRepo) BelongsToTenant(ctx context.Context, resource, resourceID, tenantID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.resources[resource+"|"+resourceID]
	if !ok {
		return false, core.ErrNotFound
	}
	return owner == tenantID, nil
}
