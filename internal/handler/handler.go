// Package handler exposes the order pipeline over HTTP with a jx JSON codec.
package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/promo-orders/internal/domain/order"
	"github.com/xenking/promo-orders/internal/domain/product"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// OrderCreator creates orders. Implemented by *order.Service.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req order.CreateRequest) (*order.CreateResult, error)
}

var _ OrderCreator = (*order.Service)(nil)

// Handler serves the order and product endpoints.
type Handler struct {
	products product.Lister
	orders   OrderCreator
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(products product.Lister, orders OrderCreator) *Handler {
	return &Handler{products: products, orders: orders}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.CreateOrder)
	mux.HandleFunc("GET /api/products", h.ListProducts)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(e.Bytes()); err != nil {
		zctx.From(ctx).Debug("Write response", zap.Error(err))
	}
}

// writeError writes {"code": status, "error": kind, "message": msg}.
func writeError(ctx context.Context, w http.ResponseWriter, status int, kind, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("error")
	e.Str(kind)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(ctx, w, status, &e)
}
