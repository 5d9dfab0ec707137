package handler

import (
	"context"

	"github.com/hitoshi/foodmark/internal/catalog"
	"github.com/hitoshi/foodmark/internal/membership"
	"github.com/hitoshi/foodmark/internal/user"
)

// RegistryAdapter は membership.Registry を ListsRegistry に適合させるアダプタ。
type RegistryAdapter struct {
	registry *membership.Registry
}

// NewRegistryAdapter はRegistryAdapterを生成する。
func NewRegistryAdapter(registry *membership.Registry) *RegistryAdapter {
	return &RegistryAdapter{registry: registry}
}

// Get はユーザーの個人リストを返す。
func (a *RegistryAdapter) Get(ctx context.Context, userID string) (PersonalLists, error) {
	store, err := a.registry.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

// Withdraw はユーザーの退会処理を実行する。
func (a *UserServiceAdapter) Withdraw(ctx context.Context, userID string) error {
	return a.svc.Withdraw(ctx, userID)
}

// --- compile-time interface checks ---

var _ ListsRegistry = (*RegistryAdapter)(nil)
var _ PersonalLists = (*membership.Store)(nil)
var _ UserServiceInterface = (*UserServiceAdapter)(nil)
var _ CatalogServiceInterface = (*catalog.Service)(nil)
