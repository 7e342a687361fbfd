package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// ListProducts handles GET /api/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	products, err := h.products.List(ctx)
	if err != nil {
		zctx.From(ctx).Error("List products", zap.Error(err))
		writeError(ctx, w, http.StatusInternalServerError, "InternalError", "list products")
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, p := range products {
		e.ObjStart()
		e.FieldStart("sku")
		e.Str(p.SKU)
		e.FieldStart("name")
		e.Str(p.Name)
		e.FieldStart("basePrice")
		e.Str(p.BasePrice.String())
		e.FieldStart("price")
		e.Str(p.Price.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	writeJSON(ctx, w, http.StatusOK, &e)
}
