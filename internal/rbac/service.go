package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// PermissionStore resolves permissions from the database.
type PermissionStore interface {
	EffectivePermissions(ctx context.Context, tenantID uuid.UUID, userID int64) ([]string, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	EnsurePermission(ctx context.Context, name, description string) (Permission, error)
	EnsureRole(ctx context.Context, tenantID uuid.UUID, name, description string) (Role, error)
	SetRolePermissions(ctx context.Context, roleID int64, names []string) error
	AssignRole(ctx context.Context, tenantID uuid.UUID, userID, roleID int64) error
	RemoveRole(ctx context.Context, tenantID uuid.UUID, userID, roleID int64) error
}

// Service evaluates permissions and caches effective sets in redis.
type Service struct {
	store  PermissionStore
	cache  redis.UniversalClient
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

var _ shared.Authorizer = (*Service)(nil)

// NewService constructs a Service. A nil cache disables caching.
func NewService(store PermissionStore, cache redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: cache, ttl: ttl, logger: logger}
}

func cacheKey(tenantID uuid.UUID, userID int64) string {
	return fmt.Sprintf("rbac:perms:%s:%d", tenantID, userID)
}

// HasPermission implements shared.Authorizer.
func (s *Service) HasPermission(ctx context.Context, actor shared.Actor, action shared.Action) (bool, error) {
	perms, err := s.EffectivePermissions(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		return false, err
	}
	code := action.String()
	for _, p := range perms {
		if p == code {
			return true, nil
		}
	}
	return false, nil
}

// EffectivePermissions returns the permission names held by the user. Concurrent
// misses for the same user share one database round trip.
func (s *Service) EffectivePermissions(ctx context.Context, tenantID uuid.UUID, userID int64) ([]string, error) {
	key := cacheKey(tenantID, userID)
	if perms, ok := s.cached(ctx, key); ok {
		return perms, nil
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		perms, err := s.store.EffectivePermissions(ctx, tenantID, userID)
		if err != nil {
			return nil, fmt.Errorf("rbac: load permissions: %w", err)
		}
		if perms == nil {
			perms = []string{}
		}
		s.remember(ctx, key, perms)
		return perms, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (s *Service) cached(ctx context.Context, key string) ([]string, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("rbac cache read", slog.String("key", key), slog.Any("error", err))
		}
		return nil, false
	}
	var perms []string
	if err := json.Unmarshal(raw, &perms); err != nil {
		s.logger.Warn("rbac cache decode", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	return perms, true
}

func (s *Service) remember(ctx context.Context, key string, perms []string) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(perms)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		s.logger.Warn("rbac cache write", slog.String("key", key), slog.Any("error", err))
	}
}

// Invalidate drops the cached permissions of one user.
func (s *Service) Invalidate(ctx context.Context, tenantID uuid.UUID, userID int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, cacheKey(tenantID, userID)).Err()
}

// InvalidateTenant drops every cached permission set of the tenant.
func (s *Service) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	iter := s.cache.Scan(ctx, 0, fmt.Sprintf("rbac:perms:%s:*", tenantID), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.cache.Del(ctx, keys...).Err()
}

// Catalogue lists the permission catalogue.
func (s *Service) Catalogue(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// SyncCatalogue upserts one permission per action.
func (s *Service) SyncCatalogue(ctx context.Context, actions []shared.Action) error {
	for _, a := range actions {
		if _, err := s.store.EnsurePermission(ctx, a.String(), a.Description()); err != nil {
			return fmt.Errorf("rbac: ensure %s: %w", a, err)
		}
	}
	return nil
}

// DefineRole upserts a tenant role and replaces its permissions.
func (s *Service) DefineRole(ctx context.Context, tenantID uuid.UUID, name, description string, actions []shared.Action) (Role, error) {
	if strings.TrimSpace(name) == "" {
		return Role{}, shared.Validationf("role name required")
	}
	role, err := s.store.EnsureRole(ctx, tenantID, name, description)
	if err != nil {
		return Role{}, err
	}
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, a.String())
	}
	if err := s.store.SetRolePermissions(ctx, role.ID, names); err != nil {
		return Role{}, err
	}
	if err := s.InvalidateTenant(ctx, tenantID); err != nil {
		s.logger.Warn("rbac invalidate tenant", slog.String("tenant_id", tenantID.String()), slog.Any("error", err))
	}
	return role, nil
}

// AssignRole grants a role and drops the user's cached set.
func (s *Service) AssignRole(ctx context.Context, tenantID uuid.UUID, userID, roleID int64) error {
	if err := s.store.AssignRole(ctx, tenantID, userID, roleID); err != nil {
		return err
	}
	return s.Invalidate(ctx, tenantID, userID)
}

// RemoveRole revokes a role and drops the user's cached set.
func (s *Service) RemoveRole(ctx context.Context, tenantID uuid.UUID, userID, roleID int64) error {
	if err := s.store.RemoveRole(ctx, tenantID, userID, roleID); err != nil {
		return err
	}
	return s.Invalidate(ctx, tenantID, userID)
}
