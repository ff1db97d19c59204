package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopcore/shopd/internal/catalog"
	"github.com/shopcore/shopd/internal/redisx"
)

type ProductsHandler struct {
	Repo  *catalog.Repo
	Cache *redis.Client // nil disables the catalog cache
}

// RegisterPublic mounts the unauthenticated read routes.
func (h *ProductsHandler) RegisterPublic(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

// RegisterAdmin mounts the write routes; the caller wraps them in the auth
// and admin middleware.
func (h *ProductsHandler) RegisterAdmin(r chi.Router) {
	r.Post("/", h.create)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Cache != nil {
		if s, err := h.Cache.Get(ctx, redisx.KeyCatalog).Result(); err == nil && s != "" {
			var ps []catalog.Product
			if json.Unmarshal([]byte(s), &ps) == nil {
				respondList(w, len(ps), ps)
				return
			}
		}
	}

	ps, err := h.Repo.List(ctx)
	if err != nil {
		respondErr(w, http.StatusInternalServerError, "Server Error")
		return
	}
	if ps == nil {
		ps = []catalog.Product{}
	}
	if h.Cache != nil {
		if b, err := json.Marshal(ps); err == nil {
			_ = h.Cache.Set(ctx, redisx.KeyCatalog, b, redisx.TTLCatalogCache).Err()
		}
	}
	respondList(w, len(ps), ps)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Repo.FindByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondErr(w, http.StatusNotFound, "Product not found")
			return
		}
		respondErr(w, http.StatusInternalServerError, "Server Error")
		return
	}
	respondData(w, http.StatusOK, p)
}

type productReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int    `json:"price_cents"`
	Stock       int    `json:"stock"`
	Category    string `json:"category"`
}

func (req *productReq) valid() bool {
	return req.Name != "" && req.PriceCents >= 0 && req.Stock >= 0
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.valid() {
		respondErr(w, http.StatusBadRequest, "invalid product")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p := catalog.Product{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Stock:       req.Stock,
		Category:    req.Category,
	}
	if err := h.Repo.Create(ctx, &p); err != nil {
		respondErr(w, http.StatusInternalServerError, "Server Error")
		return
	}
	h.invalidateCatalog(ctx)
	respondData(w, http.StatusCreated, p)
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.valid() {
		respondErr(w, http.StatusBadRequest, "invalid product")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Repo.FindByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondErr(w, http.StatusNotFound, "Product not found")
			return
		}
		respondErr(w, http.StatusInternalServerError, "Server Error")
		return
	}

	p.Name = req.Name
	p.Description = req.Description
	p.PriceCents = req.PriceCents
	p.Stock = req.Stock
	p.Category = req.Category
	if err := h.Repo.Update(ctx, p); err != nil {
		respondErr(w, http.StatusInternalServerError, "Server Error")
		return
	}
	h.invalidateCatalog(ctx)
	respondData(w, http.StatusOK, p)
}

func (h *ProductsHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondErr(w, http.StatusNotFound, "Product not found")
			return
		}
		respondErr(w, http.StatusInternalServerError, "Server Error")
		return
	}
	h.invalidateCatalog(ctx)
	respondData(w, http.StatusOK, map[string]any{})
}

func (h *ProductsHandler) invalidateCatalog(ctx context.Context) {
	if h.Cache != nil {
		_ = h.Cache.Del(ctx, redisx.KeyCatalog).Err()
	}
}
