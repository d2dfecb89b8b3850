package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Yousefa7medmaher/cart-service/internal/catalog"
	"github.com/Yousefa7medmaher/cart-service/internal/domain"
	"github.com/Yousefa7medmaher/cart-service/internal/repository"
	s "github.com/Yousefa7medmaher/cart-service/internal/service"
	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	service *s.CartService
	timeout time.Duration
}

func NewCartHandler(service *s.CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		service: service,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"productId"`
	// Pointer so an omitted quantity (defaults to 1) is distinguishable
	// from an explicit 0, which is invalid.
	Quantity *int `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponse struct {
	Success bool         `json:"success"`
	Cart    *domain.Cart `json:"cart,omitempty"`
	Message string       `json:"message,omitempty"`
}

type CartListResponse struct {
	Success bool          `json:"success"`
	Count   int           `json:"count"`
	Carts   []domain.Cart `json:"carts"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// Routes mounts the cart endpoints. User routes operate on the caller's own
// cart; the /all and /user/{ownerID} reads are admin-only.
func (h *CartHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetCart)
	r.Post("/add", h.AddItem)
	r.Put("/update/{productID}", h.UpdateItem)
	r.Delete("/remove/{productID}", h.RemoveItem)
	r.Delete("/clear", h.ClearCart)

	r.Group(func(r chi.Router) {
		r.Use(RequireRole("admin"))
		r.Get("/all", h.ListAllCarts)
		r.Get("/user/{ownerID}", h.GetOwnerCart)
	})

	return r
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.service.GetOrCreateCart(ctx, getUserID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponse{Success: true, Cart: cart})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	cart, err := h.service.AddItem(ctx, getUserID(r.Context()), req.ProductID, quantity, getAuthToken(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponse{Success: true, Cart: cart, Message: "product added to cart"})
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "productID")

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart, err := h.service.UpdateItem(ctx, getUserID(r.Context()), productID, req.Quantity, getAuthToken(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponse{Success: true, Cart: cart, Message: "cart updated"})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.service.RemoveItem(ctx, getUserID(r.Context()), chi.URLParam(r, "productID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponse{Success: true, Cart: cart, Message: "product removed from cart"})
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.service.ClearCart(ctx, getUserID(r.Context()))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponse{Success: true, Cart: cart, Message: "cart cleared"})
}

func (h *CartHandler) ListAllCarts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	carts, err := h.service.ListAllCarts(ctx)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CartListResponse{Success: true, Count: len(carts), Carts: carts})
}

func (h *CartHandler) GetOwnerCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.service.GetCartForOwner(ctx, chi.URLParam(r, "ownerID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, CartResponse{Success: true, Cart: cart})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

func handleServiceError(w http.ResponseWriter, err error) {
	var stockErr *s.InsufficientStockError
	var upstreamErr *catalog.UpstreamError

	switch {
	case errors.Is(err, s.ErrInvalidQuantity), errors.Is(err, s.ErrMissingProductID):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.As(err, &stockErr):
		respondError(w, http.StatusBadRequest, "insufficient_stock", stockErr.Reason)
	case errors.Is(err, repository.ErrCartNotFound):
		respondError(w, http.StatusNotFound, "cart_not_found", "cart not found")
	case errors.Is(err, domain.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "item_not_found", "product not found in cart")
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
	case errors.As(err, &upstreamErr):
		respondError(w, http.StatusBadGateway, "catalog_unavailable", "product catalog unavailable")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
