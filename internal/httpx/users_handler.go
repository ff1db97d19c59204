package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopcore/shopd/internal/auth"
	"github.com/shopcore/shopd/internal/users"
)

// UserStore is what the handler needs from user persistence; *users.Repo
// implements it.
type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash, role string) (*users.User, error)
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	FindByID(ctx context.Context, id string) (*users.User, error)
	List(ctx context.Context) ([]users.User, error)
	Update(ctx context.Context, u *users.User) error
	Delete(ctx context.Context, id string) error
}

type UsersHandler struct {
	Repo   UserStore
	Tokens *auth.Tokens
}

// RegisterPublic mounts register and login.
func (h *UsersHandler) RegisterPublic(r chi.Router) {
	r.Post("/", h.register)
	r.Post("/login", h.login)
}

// RegisterPrivate mounts the authenticated routes; admin checks are done
// per-handler because owner-or-admin depends on the URL parameter.
func (h *UsersHandler) RegisterPrivate(r chi.Router) {
	r.Get("/me", h.me)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UsersHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.Name == "" || req.Email == "" || req.Password == "" {
		respondErr(w, http.StatusBadRequest, "name, email and password are required")
		return
	}
	// everyone registers as a client; only admins may elevate via update
	hash, err := users.HashPassword(req.Password)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "Server Error")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u, err := h.Repo.Create(ctx, req.Name, req.Email, hash, auth.RoleClient)
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			respondErr(w, http.StatusBadRequest, "Email already registered")
			return
		}
		respondErr(w, http.StatusInternalServerError, "Server Error")
		return
	}
	respondData(w, http.StatusCreated, u)
}

func (h *UsersHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.Email == "" || req.Password == "" {
		respondErr(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u, err := h.Repo.FindByEmail(ctx, req.Email)
	if err != nil {
		respondErr(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if users.CheckPassword(u.PasswordHash, req.Password) != nil {
		respondErr(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.Tokens.Issue(u.ID)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "Server Error")
		return
	}
	respondData(w, http.StatusOK, map[string]any{"token": token, "user": u})
}

func (h *UsersHandler) me(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.FromContext(r.Context())
	if !ok {
		respondErr(w, http.StatusUnauthorized, "Not authorized to access this route")
		return
	}
	u, err := h.Repo.FindByID(r.Context(), ident.ID)
	if err != nil {
		respondErr(w, http.StatusNotFound, "User not found")
		return
	}
	respondData(w, http.StatusOK, u)
}

func (h *UsersHandler) list(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.FromContext(r.Context())
	if !ok || !ident.IsAdmin() {
		respondErr(w, http.StatusForbidden, "Not authorized to access this route: Admin role required")
		return
	}
	us, err := h.Repo.List(r.Context())
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "Server Error")
		return
	}
	if us == nil {
		us = []users.User{}
	}
	respondList(w, len(us), us)
}

func (h *UsersHandler) get(w http.ResponseWriter, r *http.Request) {
	_, targetID, ok := h.ownerOrAdmin(w, r)
	if !ok {
		return
	}
	u, err := h.Repo.FindByID(r.Context(), targetID)
	if err != nil {
		respondErr(w, http.StatusNotFound, "User not found")
		return
	}
	respondData(w, http.StatusOK, u)
}

type updateUserReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *UsersHandler) update(w http.ResponseWriter, r *http.Request) {
	ident, targetID, ok := h.ownerOrAdmin(w, r)
	if !ok {
		return
	}

	var req updateUserReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	u, err := h.Repo.FindByID(r.Context(), targetID)
	if err != nil {
		respondErr(w, http.StatusNotFound, "User not found")
		return
	}
	if req.Name != "" {
		u.Name = req.Name
	}
	if req.Email != "" {
		u.Email = req.Email
	}
	// only admins may change roles
	if req.Role != "" && ident.IsAdmin() {
		u.Role = req.Role
	}
	if err := h.Repo.Update(r.Context(), u); err != nil {
		respondErr(w, http.StatusInternalServerError, "Server Error")
		return
	}
	respondData(w, http.StatusOK, u)
}

func (h *UsersHandler) delete(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.FromContext(r.Context())
	if !ok || !ident.IsAdmin() {
		respondErr(w, http.StatusForbidden, "Not authorized to access this route: Admin role required")
		return
	}
	if err := h.Repo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			respondErr(w, http.StatusNotFound, "User not found")
			return
		}
		respondErr(w, http.StatusInternalServerError, "Server Error")
		return
	}
	respondData(w, http.StatusOK, map[string]any{})
}

func (h *UsersHandler) ownerOrAdmin(w http.ResponseWriter, r *http.Request) (auth.Identity, string, bool) {
	ident, ok := auth.FromContext(r.Context())
	if !ok {
		respondErr(w, http.StatusUnauthorized, "Not authorized to access this route")
		return auth.Identity{}, "", false
	}
	targetID := chi.URLParam(r, "id")
	if !ident.IsAdmin() && ident.ID != targetID {
		respondErr(w, http.StatusForbidden, "Not authorized to access this resource")
		return auth.Identity{}, "", false
	}
	return ident, targetID, true
}
