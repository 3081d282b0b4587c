package assets

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// RepositoryPort describes the reads used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, tenantID, assetID uuid.UUID) (Asset, error)
	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Asset, error)
}

// Service exposes the asset register.
type Service struct {
	repo  RepositoryPort
	authz shared.Authorizer
}

// NewService constructs the asset service.
func NewService(repo RepositoryPort, authz shared.Authorizer) *Service {
	return &Service{repo: repo, authz: authz}
}

// Get returns one asset of the caller's tenant.
func (s *Service) Get(ctx context.Context, actor shared.Actor, assetID uuid.UUID) (Asset, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionViewAssets); err != nil {
		return Asset{}, err
	}
	return s.repo.Get(ctx, actor.TenantID, assetID)
}

// List returns the caller's assets.
func (s *Service) List(ctx context.Context, actor shared.Actor, filter ListFilter) ([]Asset, error) {
	if err := shared.Authorize(ctx, s.authz, actor, shared.ActionViewAssets); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, actor.TenantID, filter)
}
