package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

type fakeStore struct {
	mu     sync.Mutex
	grants map[int64][]string
	loads  atomic.Int32
	gate   chan struct{}
	err    error
	roles  map[int64][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{grants: make(map[int64][]string), roles: make(map[int64][]string)}
}

func (f *fakeStore) EffectivePermissions(_ context.Context, _ uuid.UUID, userID int64) ([]string, error) {
	f.loads.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.grants[userID]...), nil
}

func (f *fakeStore) ListPermissions(context.Context) ([]Permission, error) {
	return []Permission{{ID: 1, Name: "budget.manage"}}, nil
}

func (f *fakeStore) EnsurePermission(_ context.Context, name, description string) (Permission, error) {
	return Permission{Name: name, Description: description}, nil
}

func (f *fakeStore) EnsureRole(_ context.Context, tenantID uuid.UUID, name, description string) (Role, error) {
	return Role{ID: 7, TenantID: tenantID, Name: name, Description: description}, nil
}

func (f *fakeStore) SetRolePermissions(_ context.Context, roleID int64, names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[roleID] = names
	return nil
}

func (f *fakeStore) AssignRole(_ context.Context, _ uuid.UUID, userID, roleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[userID] = append(f.grants[userID], f.roles[roleID]...)
	return nil
}

func (f *fakeStore) RemoveRole(_ context.Context, _ uuid.UUID, userID, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.grants, userID)
	return nil
}

func newTestService(t *testing.T, store *fakeStore) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(store, client, time.Minute, nil), mr
}

func TestHasPermissionUsesCache(t *testing.T) {
	store := newFakeStore()
	store.grants[5] = []string{shared.ActionManageBudget.String()}
	svc, mr := newTestService(t, store)
	ctx := context.Background()
	actor := shared.Actor{TenantID: uuid.New(), UserID: 5}

	ok, err := svc.HasPermission(ctx, actor, shared.ActionManageBudget)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = svc.HasPermission(ctx, actor, shared.ActionForceOverspend)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, int32(1), store.loads.Load())
	require.True(t, mr.Exists(cacheKey(actor.TenantID, actor.UserID)))

	mr.FastForward(2 * time.Minute)
	_, err = svc.HasPermission(ctx, actor, shared.ActionManageBudget)
	require.NoError(t, err)
	require.Equal(t, int32(2), store.loads.Load())
}

func TestEffectivePermissionsDeduplicatesConcurrentMisses(t *testing.T) {
	store := newFakeStore()
	store.grants[9] = []string{shared.ActionViewBudget.String()}
	store.gate = make(chan struct{})
	svc, _ := newTestService(t, store)
	tenant := uuid.New()

	results := make([][]string, 8)
	errs := make([]error, 8)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.EffectivePermissions(context.Background(), tenant, 9)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(store.gate)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, []string{shared.ActionViewBudget.String()}, results[i])
	}
	require.Equal(t, int32(1), store.loads.Load())
}

func TestEffectivePermissionsWithoutCache(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, time.Minute, nil)

	perms, err := svc.EffectivePermissions(context.Background(), uuid.New(), 1)
	require.NoError(t, err)
	require.Empty(t, perms)
	_, err = svc.EffectivePermissions(context.Background(), uuid.New(), 1)
	require.NoError(t, err)
	require.Equal(t, int32(2), store.loads.Load())

	store.err = errors.New("db down")
	_, err = svc.HasPermission(context.Background(), shared.Actor{TenantID: uuid.New(), UserID: 1}, shared.ActionViewAssets)
	require.Error(t, err)
}

func TestRoleChangesInvalidateCache(t *testing.T) {
	store := newFakeStore()
	svc, mr := newTestService(t, store)
	ctx := context.Background()
	actor := shared.Actor{TenantID: uuid.New(), UserID: 3}

	ok, err := svc.HasPermission(ctx, actor, shared.ActionReceiveOrder)
	require.NoError(t, err)
	require.False(t, ok)

	role, err := svc.DefineRole(ctx, actor.TenantID, "Receiver", "Warehouse", []shared.Action{shared.ActionReceiveOrder})
	require.NoError(t, err)
	require.False(t, mr.Exists(cacheKey(actor.TenantID, actor.UserID)))

	require.NoError(t, svc.AssignRole(ctx, actor.TenantID, actor.UserID, role.ID))
	ok, err = svc.HasPermission(ctx, actor, shared.ActionReceiveOrder)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.RemoveRole(ctx, actor.TenantID, actor.UserID, role.ID))
	ok, err = svc.HasPermission(ctx, actor, shared.ActionReceiveOrder)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = svc.DefineRole(ctx, actor.TenantID, " ", "", nil)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMiddlewareRequireAll(t *testing.T) {
	store := newFakeStore()
	store.grants[2] = []string{shared.ActionManageBudget.String()}
	svc, _ := newTestService(t, store)
	mw := Middleware{Authorizer: svc}
	tenant := uuid.New()
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	cases := []struct {
		name    string
		actor   *shared.Actor
		actions []shared.Action
		status  int
	}{
		{"granted", &shared.Actor{TenantID: tenant, UserID: 2}, []shared.Action{shared.ActionManageBudget}, http.StatusNoContent},
		{"missing one", &shared.Actor{TenantID: tenant, UserID: 2}, []shared.Action{shared.ActionManageBudget, shared.ActionDispose}, http.StatusForbidden},
		{"anonymous", nil, []shared.Action{shared.ActionManageBudget}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.actor != nil {
				req = req.WithContext(shared.ContextWithActor(req.Context(), *tc.actor))
			}
			rec := httptest.NewRecorder()
			mw.RequireAll(tc.actions...)(ok).ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)
		})
	}
}
