package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopcore/shopd/internal/auth"
	"github.com/shopcore/shopd/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memUsers backs the handler and the auth middleware in tests.
type memUsers struct {
	mu      sync.Mutex
	byID    map[string]users.User
	byEmail map[string]string
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]users.User{}, byEmail: map[string]string{}}
}

func (m *memUsers) Create(_ context.Context, name, email, passwordHash, role string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmail[email]; taken {
		return nil, users.ErrEmailTaken
	}
	u := users.User{ID: uuid.NewString(), Name: name, Email: email,
		PasswordHash: passwordHash, Role: role, CreatedAt: time.Now()}
	m.byID[u.ID] = u
	m.byEmail[email] = u.ID
	return &u, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	u := m.byID[id]
	return &u, nil
}

func (m *memUsers) FindByID(_ context.Context, id string) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) FindRole(_ context.Context, id string) (string, error) {
	u, err := m.FindByID(context.Background(), id)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

func (m *memUsers) List(_ context.Context) ([]users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []users.User
	for _, u := range m.byID {
		out = append(out, u)
	}
	return out, nil
}

func (m *memUsers) Update(_ context.Context, u *users.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[u.ID]; !ok {
		return users.ErrNotFound
	}
	m.byID[u.ID] = *u
	return nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	delete(m.byEmail, u.Email)
	delete(m.byID, id)
	return nil
}

type usersFixture struct {
	router *chi.Mux
	repo   *memUsers
	tokens *auth.Tokens
}

func newUsersFixture(t *testing.T) *usersFixture {
	t.Helper()
	repo := newMemUsers()
	tokens := &auth.Tokens{Secret: []byte("test-secret"), TTL: time.Hour}
	h := &UsersHandler{Repo: repo, Tokens: tokens}

	r := chi.NewRouter()
	r.Route("/api/users", func(r chi.Router) {
		h.RegisterPublic(r)
		r.Group(func(r chi.Router) {
			r.Use(auth.Require(tokens, repo))
			h.RegisterPrivate(r)
		})
	})
	return &usersFixture{router: r, repo: repo, tokens: tokens}
}

func (f *usersFixture) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	if userID != "" {
		raw, err := f.tokens.Issue(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+raw)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *usersFixture) seed(t *testing.T, name, email, role string) users.User {
	t.Helper()
	hash, err := users.HashPassword("pw-" + name)
	require.NoError(t, err)
	u, err := f.repo.Create(context.Background(), name, email, hash, role)
	require.NoError(t, err)
	return *u
}

func TestRegister_AlwaysClientRole(t *testing.T) {
	f := newUsersFixture(t)

	// a role claim in the body must not be honored
	rec := f.do(t, http.MethodPost, "/api/users", "", map[string]any{
		"name": "Mallory", "email": "mallory@example.com", "password": "hunter2",
		"role": "admin",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	env := decodeEnvelope(t, rec)
	var u users.User
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, auth.RoleClient, u.Role)

	stored, err := f.repo.FindByEmail(context.Background(), "mallory@example.com")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleClient, stored.Role)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newUsersFixture(t)
	f.seed(t, "Alice", "alice@example.com", auth.RoleClient)

	rec := f.do(t, http.MethodPost, "/api/users", "", map[string]any{
		"name": "Alice2", "email": "alice@example.com", "password": "pw",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)
}

func TestLogin_RoundTrip(t *testing.T) {
	f := newUsersFixture(t)
	f.seed(t, "alice", "alice@example.com", auth.RoleClient)

	rec := f.do(t, http.MethodPost, "/api/users/login", "", map[string]any{
		"email": "alice@example.com", "password": "pw-alice",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Token string     `json:"token"`
		User  users.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &data))
	require.NotEmpty(t, data.Token)

	sub, err := f.tokens.Parse(data.Token)
	require.NoError(t, err)
	assert.Equal(t, data.User.ID, sub)

	rec = f.do(t, http.MethodPost, "/api/users/login", "", map[string]any{
		"email": "alice@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListUsers_AdminOnly(t *testing.T) {
	f := newUsersFixture(t)
	client := f.seed(t, "alice", "alice@example.com", auth.RoleClient)
	admin := f.seed(t, "root", "root@example.com", auth.RoleAdmin)

	rec := f.do(t, http.MethodGet, "/api/users", client.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/users", admin.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeEnvelope(t, rec).Count)
}

func TestUpdateUser_RoleElevationAdminOnly(t *testing.T) {
	f := newUsersFixture(t)
	client := f.seed(t, "alice", "alice@example.com", auth.RoleClient)
	admin := f.seed(t, "root", "root@example.com", auth.RoleAdmin)

	// owner cannot elevate their own role
	rec := f.do(t, http.MethodPut, "/api/users/"+client.ID, client.ID, map[string]any{
		"role": auth.RoleAdmin,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	got, err := f.repo.FindByID(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleClient, got.Role)

	// admin can
	rec = f.do(t, http.MethodPut, "/api/users/"+client.ID, admin.ID, map[string]any{
		"role": auth.RoleAdmin,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	got, err = f.repo.FindByID(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, got.Role)

	// non-owner non-admin is forbidden
	other := f.seed(t, "bob", "bob@example.com", auth.RoleClient)
	rec = f.do(t, http.MethodPut, "/api/users/"+admin.ID, other.ID, map[string]any{
		"name": "pwned",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
