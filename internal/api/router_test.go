package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aomanu/cidrd/internal/api/auth"
	"github.com/aomanu/cidrd/pkg/config"
	"github.com/aomanu/cidrd/pkg/metrics"
	"github.com/aomanu/cidrd/pkg/models"
)

// fakeStore is an in-memory models.Store for router tests.
type fakeStore struct {
	usersByLogin map[string]*models.User
	usersByID    map[uuid.UUID]*models.User
	lists        map[string]*models.List
	cidrs        map[string][]models.Cidr
	jobs         []*models.CidrJob

	// updateJob captures the job passed to UpdateList, if any.
	updateJob *models.CidrJob

	// pageCall captures the last QueryCidrsPage arguments.
	pageCall struct {
		listID string
		before int64
		limit  int32
	}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		usersByLogin: map[string]*models.User{},
		usersByID:    map[uuid.UUID]*models.User{},
		lists:        map[string]*models.List{},
		cidrs:        map[string][]models.Cidr{},
	}
}

func (f *fakeStore) CreateUser(ctx context.Context, user *models.User) error {
	if _, ok := f.usersByLogin[user.Login]; ok {
		return models.ErrDuplicateUser
	}
	f.usersByLogin[user.Login] = user
	f.usersByID[user.ID] = user
	return nil
}

func (f *fakeStore) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	user, ok := f.usersByLogin[login]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.usersByID[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeStore) UpdatePassword(ctx context.Context, login, salt, hash string) error {
	user, ok := f.usersByLogin[login]
	if !ok {
		return models.ErrUserNotFound
	}
	user.Salt = salt
	user.HashedPassword = hash
	return nil
}

func (f *fakeStore) CreateList(ctx context.Context, list *models.List) error {
	if _, ok := f.lists[list.ID]; ok {
		return models.ErrDuplicateList
	}
	f.lists[list.ID] = list
	return nil
}

func (f *fakeStore) GetList(ctx context.Context, id string, userID uuid.UUID) (*models.List, error) {
	list, ok := f.lists[id]
	if !ok || list.UserID != userID {
		return nil, models.ErrListNotFound
	}
	copied := *list
	return &copied, nil
}

func (f *fakeStore) ListLists(ctx context.Context, userID uuid.UUID) ([]models.List, error) {
	var out []models.List
	for _, list := range f.lists {
		if list.UserID == userID {
			out = append(out, *list)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateList(ctx context.Context, list *models.List, job *models.CidrJob) error {
	if _, ok := f.lists[list.ID]; !ok {
		return models.ErrListNotFound
	}
	f.lists[list.ID] = list
	f.updateJob = job
	if job != nil {
		f.jobs = append(f.jobs, job)
	}
	return nil
}

func (f *fakeStore) DeleteList(ctx context.Context, id string, userID uuid.UUID) error {
	list, ok := f.lists[id]
	if !ok || list.UserID != userID {
		return models.ErrListNotFound
	}
	delete(f.lists, id)
	delete(f.cidrs, id)
	return nil
}

func (f *fakeStore) GetListCidrs(ctx context.Context, id string, userID uuid.UUID) ([]models.Cidr, error) {
	if _, err := f.GetList(ctx, id, userID); err != nil {
		return nil, err
	}
	return f.cidrs[id], nil
}

func (f *fakeStore) EnqueueJob(ctx context.Context, job *models.CidrJob) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeStore) QueryCidrs(ctx context.Context, filter models.CidrFilter) ([]models.Cidr, error) {
	var out []models.Cidr
	for id, list := range f.lists {
		if list.UserID != filter.UserID || !list.Enabled || list.ListType != filter.ListType {
			continue
		}
		if filter.ListID != "" && id != filter.ListID {
			continue
		}
		if filter.ListID == "" && len(filter.Tags) > 0 && !tagsOverlap(list.Tags, filter.Tags) {
			continue
		}
		out = append(out, f.cidrs[id]...)
	}
	return out, nil
}

func (f *fakeStore) QueryCidrsPage(ctx context.Context, listID string, beforeID int64, limit int32) ([]models.Cidr, error) {
	f.pageCall.listID = listID
	f.pageCall.before = beforeID
	f.pageCall.limit = limit
	return f.cidrs[listID], nil
}

func tagsOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

const (
	testPassword      = "Password123"
	testAdminPassword = "Adm1nPassword"
)

type env struct {
	store  *fakeStore
	router http.Handler
	tokens *auth.Service

	user  *models.User
	admin *models.User

	db *fakePinger
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := newFakeStore()
	user := addAccount(t, store, "alice_01", testPassword, models.RoleUser)
	admin := addAccount(t, store, "admin", testAdminPassword, models.RoleSuperuser)

	tokens, err := auth.NewService(auth.Config{
		Secret:   "0123456789abcdef0123456789abcdef",
		TokenTTL: time.Hour,
	})
	require.NoError(t, err)

	db := &fakePinger{}
	router := NewRouter(Deps{
		Store:   store,
		Tokens:  tokens,
		Cache:   auth.NewTokenCache(time.Minute),
		Metrics: metrics.New(),
		DB:      db,
		Config:  config.APIConfig{ListenAddr: ":0", RequestTimeout: 5 * time.Second},
		Cookie:  "apisessionkey",
	})

	return &env{store: store, router: router, tokens: tokens, user: user, admin: admin, db: db}
}

func addAccount(t *testing.T, store *fakeStore, login, password string, role models.Role) *models.User {
	t.Helper()
	salt, hash, err := models.HashPassword(password)
	require.NoError(t, err)
	user := &models.User{
		ID:             uuid.New(),
		Login:          login,
		Salt:           salt,
		HashedPassword: hash,
		Role:           role,
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func (e *env) token(t *testing.T, user *models.User) string {
	t.Helper()
	resp, err := e.tokens.Issue(user)
	require.NoError(t, err)
	return resp.AccessToken
}

func (e *env) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func (e *env) createList(t *testing.T, token, id string, listType models.ListType, enabled bool) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/list", token, map[string]any{
		"id":        id,
		"list_type": listType,
		"enabled":   enabled,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHealthEndpoints(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	e.db.err = errors.New("down")
	rec = e.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTokenEndpoint(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/v1/auth/token", "", map[string]string{
		"login": "alice_01", "password": testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[auth.TokenResponse](t, rec)
	assert.Equal(t, "Bearer", resp.TokenType)

	claims, err := e.tokens.Validate(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice_01", claims.Login)
}

func TestTokenEndpointRejectsBadCredentials(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/v1/auth/token", "", map[string]string{
		"login": "alice_01", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/auth/token", "", map[string]string{
		"login": "nobody", "password": testPassword,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/v1/list", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/list", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/list", e.token(t, e.user), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthCookieFallback(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/list", nil)
	req.AddCookie(&http.Cookie{Name: "apisessionkey", Value: e.token(t, e.user)})

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChangePassword(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPut, "/v1/auth/password", "", map[string]string{
		"login": "alice_01", "password": testPassword, "new_password": "NewPassword456",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The new credentials authenticate, the old ones do not.
	rec = e.do(t, http.MethodPost, "/v1/auth/token", "", map[string]string{
		"login": "alice_01", "password": "NewPassword456",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/auth/token", "", map[string]string{
		"login": "alice_01", "password": testPassword,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePasswordRejections(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPut, "/v1/auth/password", "", map[string]string{
		"login": "alice_01", "password": testPassword, "new_password": testPassword,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unchanged password")

	rec = e.do(t, http.MethodPut, "/v1/auth/password", "", map[string]string{
		"login": "alice_01", "password": testPassword, "new_password": "weak",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "policy violation")

	rec = e.do(t, http.MethodPut, "/v1/auth/password", "", map[string]string{
		"login": "alice_01", "password": "wrong", "new_password": "NewPassword456",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "wrong current password")
}

func TestSignupRequiresSuperuser(t *testing.T) {
	e := newEnv(t)
	body := map[string]string{"login": "bob_02", "password": "BobPassword1"}

	rec := e.do(t, http.MethodPost, "/v1/admin/signup", e.token(t, e.user), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/admin/signup", e.token(t, e.admin), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[models.User](t, rec)
	assert.Equal(t, "bob_02", created.Login)
	assert.Equal(t, models.RoleUser, created.Role)

	rec = e.do(t, http.MethodPost, "/v1/admin/signup", e.token(t, e.admin), body)
	assert.Equal(t, http.StatusConflict, rec.Code, "duplicate login")
}

func TestSignupValidation(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.admin)

	rec := e.do(t, http.MethodPost, "/v1/admin/signup", token, map[string]string{
		"login": "bob_02", "password": "weak",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/admin/signup", token, map[string]string{
		"login": "UPPER", "password": "BobPassword1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateList(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)

	rec := e.do(t, http.MethodPost, "/v1/list", token, map[string]any{
		"id": "BLOCKED_HOSTS", "list_type": "DENY", "tags": []string{"EDGE"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[models.List](t, rec)
	assert.True(t, created.Enabled, "enabled defaults to true")
	assert.Equal(t, []string{"DEFAULT", "EDGE"}, created.Tags)

	rec = e.do(t, http.MethodPost, "/v1/list", token, map[string]any{
		"id": "BLOCKED_HOSTS", "list_type": "DENY",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/list", token, map[string]any{
		"id": "lowercase", "list_type": "DENY",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListIsUserScoped(t *testing.T) {
	e := newEnv(t)
	e.createList(t, e.token(t, e.user), "MINE", models.ListTypeDeny, true)

	rec := e.do(t, http.MethodGet, "/v1/list/MINE", e.token(t, e.admin), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "other user's list is invisible")

	rec = e.do(t, http.MethodGet, "/v1/list/MINE", e.token(t, e.user), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteList(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)
	e.createList(t, token, "SHORTLIVED", models.ListTypeDeny, true)

	rec := e.do(t, http.MethodDelete, "/v1/list/SHORTLIVED", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/list/SHORTLIVED", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateList(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)
	e.createList(t, token, "DENY_A", models.ListTypeDeny, true)

	rec := e.do(t, http.MethodPut, "/v1/list/DENY_A", token, map[string]any{
		"description": "edge blocks",
		"enabled":     false,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decode[models.List](t, rec)
	assert.Equal(t, "edge blocks", updated.Description)
	assert.False(t, updated.Enabled)
	assert.Nil(t, e.store.updateJob, "no job for a DENY list update")
}

func TestEnablingSafeListEnqueuesUpdateJob(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)
	e.createList(t, token, "SAFE_A", models.ListTypeSafe, false)

	rec := e.do(t, http.MethodPut, "/v1/list/SAFE_A", token, map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NotNil(t, e.store.updateJob)
	assert.Equal(t, models.ActionUpdate, e.store.updateJob.Action)
	assert.Equal(t, "SAFE_A", e.store.updateJob.ListID)

	// Enabling an already enabled list does not fire another job.
	e.store.updateJob = nil
	rec = e.do(t, http.MethodPut, "/v1/list/SAFE_A", token, map[string]any{"enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, e.store.updateJob)
}

func TestAddCidrsEnqueuesJob(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)
	e.createList(t, token, "DENY_A", models.ListTypeDeny, true)

	rec := e.do(t, http.MethodPost, "/v1/list/DENY_A/cidr/add", token, map[string]any{
		"cidrs": []string{"8.8.8.0/24"}, "ttl": 60,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	job := decode[models.CidrJob](t, rec)
	assert.Equal(t, models.ActionAdd, job.Action)
	assert.Equal(t, []string{"8.8.8.0/24"}, job.Cidrs)
	require.NotNil(t, job.TTL)
	assert.EqualValues(t, 60, *job.TTL)

	require.Len(t, e.store.jobs, 1)
	assert.Equal(t, e.user.ID, e.store.jobs[0].UserID)
}

func TestAddCidrsRejections(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)
	e.createList(t, token, "DENY_A", models.ListTypeDeny, true)

	rec := e.do(t, http.MethodPost, "/v1/list/DENY_A/cidr/add", token, map[string]any{
		"cidrs": []string{"8.8.8.0/24"}, "ttl": 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "zero ttl")

	rec = e.do(t, http.MethodPost, "/v1/list/DENY_A/cidr/add", token, map[string]any{
		"cidrs": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty cidrs")

	rec = e.do(t, http.MethodPost, "/v1/list/NOSUCH/cidr/add", token, map[string]any{
		"cidrs": []string{"8.8.8.0/24"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Empty(t, e.store.jobs)
}

func TestAddCidrsRaw(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)
	e.createList(t, token, "DENY_A", models.ListTypeDeny, true)

	rec := e.do(t, http.MethodPost, "/v1/list/DENY_A/cidr/add/raw", token, map[string]any{
		"cidrs": "block 23.23.23.23/32,13.14.15.16/24 ip=2c0f:fb50::/128 garbage 300.1.2.300",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	job := decode[models.CidrJob](t, rec)
	assert.Equal(t,
		[]string{"13.14.15.0/24", "23.23.23.23/32", "2c0f:fb50::/128"},
		job.Cidrs)
}

func TestDeleteCidrs(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)
	e.createList(t, token, "DENY_A", models.ListTypeDeny, true)

	rec := e.do(t, http.MethodPost, "/v1/list/DENY_A/cidr/delete", token, map[string]any{
		"cidrs": []string{"8.8.8.0/24"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	job := decode[models.CidrJob](t, rec)
	assert.Equal(t, models.ActionDelete, job.Action)
	assert.Nil(t, job.TTL)
}

func TestGetListCidrs(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)
	e.createList(t, token, "DENY_A", models.ListTypeDeny, true)
	e.store.cidrs["DENY_A"] = []models.Cidr{
		{ID: 2, Address: "8.8.8.0/24", ListID: "DENY_A"},
		{ID: 1, Address: "1.1.1.0/24", ListID: "DENY_A"},
	}

	rec := e.do(t, http.MethodGet, "/v1/list/DENY_A/cidr", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ID    string        `json:"id"`
		Cidrs []models.Cidr `json:"cidrs"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "DENY_A", resp.ID)
	assert.Len(t, resp.Cidrs, 2)
}

func TestGetListCidrsPagination(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)
	e.createList(t, token, "DENY_A", models.ListTypeDeny, true)

	rec := e.do(t, http.MethodGet, "/v1/list/DENY_A/cidr?limit=10&before=42", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY_A", e.store.pageCall.listID)
	assert.EqualValues(t, 42, e.store.pageCall.before)
	assert.EqualValues(t, 10, e.store.pageCall.limit)

	// Oversized limits are clamped.
	rec = e.do(t, http.MethodGet, "/v1/list/DENY_A/cidr?limit=5000", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1000, e.store.pageCall.limit)

	rec = e.do(t, http.MethodGet, "/v1/list/DENY_A/cidr?limit=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/list/DENY_A/cidr?limit=10&before=-1", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func seedQueryData(t *testing.T, e *env, token string) {
	t.Helper()
	e.createList(t, token, "DENY_A", models.ListTypeDeny, true)
	e.createList(t, token, "DENY_OFF", models.ListTypeDeny, false)
	e.store.cidrs["DENY_A"] = []models.Cidr{
		{ID: 1, Address: "66.66.1.0/25", ListID: "DENY_A"},
		{ID: 2, Address: "66.66.1.128/25", ListID: "DENY_A"},
		{ID: 3, Address: "2c0f:fb50::/32", ListID: "DENY_A"},
	}
	e.store.cidrs["DENY_OFF"] = []models.Cidr{
		{ID: 4, Address: "99.99.0.0/16", ListID: "DENY_OFF"},
	}
}

func TestQueryCidrs(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)
	seedQueryData(t, e, token)

	rec := e.do(t, http.MethodGet, "/v1/cidr?list_type=DENY", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rows := decode[[]models.Cidr](t, rec)
	assert.Len(t, rows, 3, "disabled lists are excluded")
}

func TestQueryCidrsValidation(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)

	rec := e.do(t, http.MethodGet, "/v1/cidr", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "list_type required")

	rec = e.do(t, http.MethodGet, "/v1/cidr?list_type=BLOCK", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown list_type")

	rec = e.do(t, http.MethodGet, "/v1/cidr?list_type=DENY&tags=bad_tag", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "malformed tags")
}

func TestQueryCidrsCollapsed(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)
	seedQueryData(t, e, token)

	rec := e.do(t, http.MethodGet, "/v1/cidr/collapsed?list_type=DENY", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode[[]string](t, rec)
	assert.Equal(t, []string{"66.66.1.0/24", "2c0f:fb50::/32"}, out, "adjacent /25s merge")
}

func TestQueryCidrsCollapsedByVersion(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)
	seedQueryData(t, e, token)

	rec := e.do(t, http.MethodGet, "/v1/cidr/collapsed/by-ip-version?list_type=DENY", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		IPv4 []string `json:"ipv4"`
		IPv6 []string `json:"ipv6"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []string{"66.66.1.0/24"}, resp.IPv4)
	assert.Equal(t, []string{"2c0f:fb50::/32"}, resp.IPv6)
}

func TestQueryCidrsEmptySelection(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)

	rec := e.do(t, http.MethodGet, "/v1/cidr/collapsed?list_type=SAFE", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestProblemResponseShape(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/v1/list", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var body struct {
		Title  string `json:"title"`
		Status int    `json:"status"`
		Detail string `json:"detail"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Unauthorized", body.Title)
	assert.Equal(t, http.StatusUnauthorized, body.Status)
	assert.NotEmpty(t, body.Detail)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)

	// Generate one request so a counter exists, then scrape.
	e.do(t, http.MethodGet, "/health", "", nil)

	rec := e.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cidrd_http_requests_total")
}

func TestAuthCachedUserSkipsLookup(t *testing.T) {
	e := newEnv(t)
	token := e.token(t, e.user)

	rec := e.do(t, http.MethodGet, "/v1/list", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Remove the user from the store; the cached entry still authenticates.
	delete(e.store.usersByID, e.user.ID)
	rec = e.do(t, http.MethodGet, "/v1/list", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// A token for an unknown account misses the cache and hits the store.
	ghost := &models.User{ID: uuid.New(), Login: "ghost_01", Role: models.RoleUser}
	rec = e.do(t, http.MethodGet, "/v1/list", e.token(t, ghost), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
