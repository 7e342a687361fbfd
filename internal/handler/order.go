package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/promo-orders/internal/domain/order"
	"github.com/xenking/promo-orders/internal/domain/promo"
)

// CreateOrder handles POST /api/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, "BadRequest", "read body: "+err.Error())
		return
	}
	req, err := decodeCreateRequest(body)
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	res, err := h.orders.CreateOrder(ctx, req)
	if err != nil {
		status, kind := classifyOrderError(err)
		msg := err.Error()
		if status >= http.StatusInternalServerError {
			zctx.From(ctx).Error("Create order", zap.Error(err))
			msg = http.StatusText(status)
		}
		writeError(ctx, w, status, kind, msg)
		return
	}

	var e jx.Encoder
	encodeCreateResult(&e, res)
	writeJSON(ctx, w, http.StatusCreated, &e)
}

// classifyOrderError maps domain errors to an HTTP status and error kind.
func classifyOrderError(err error) (int, string) {
	var (
		iqErr     *order.InvalidQuantityError
		pnfErr    *order.ProductNotFoundError
		lookupErr *promo.LookupError
		persErr   *order.PersistenceError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems):
		return http.StatusBadRequest, "EmptyItems"
	case errors.As(err, &iqErr):
		return http.StatusBadRequest, "InvalidQuantity"
	case errors.As(err, &pnfErr):
		return http.StatusUnprocessableEntity, "ProductNotFound"
	case errors.As(err, &lookupErr):
		return http.StatusServiceUnavailable, "PromoLookupFailure"
	case errors.As(err, &persErr):
		return http.StatusInternalServerError, "PersistenceError"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}

func decodeCreateRequest(body []byte) (order.CreateRequest, error) {
	var req order.CreateRequest
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "paymentMethod":
			return decodeOptStr(d, &req.PaymentMethod)
		case "paymentOrderId":
			return decodeOptStr(d, &req.PaymentOrderID)
		case "promoCode":
			return decodeOptStr(d, &req.PromoCode)
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				var item order.LineRequest
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "sku":
						v, err := d.Str()
						item.SKU = v
						return err
					case "quantity":
						v, err := d.Int()
						item.Quantity = v
						return err
					default:
						return d.Skip()
					}
				}); err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return order.CreateRequest{}, errors.Wrap(err, "decode request")
	}
	return req, nil
}

// decodeOptStr reads a string that may be null.
func decodeOptStr(d *jx.Decoder, dst *string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	v, err := d.Str()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func encodeCreateResult(e *jx.Encoder, res *order.CreateResult) {
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(res.OrderID)
	e.FieldStart("status")
	e.Str(string(res.Status))
	e.FieldStart("subtotal")
	e.Str(res.Breakdown.Subtotal.String())
	e.FieldStart("discountTotal")
	e.Str(res.Breakdown.DiscountTotal.String())
	e.FieldStart("grandTotal")
	e.Str(res.Breakdown.GrandTotal.String())
	if p := res.Promo; p != nil {
		e.FieldStart("promo")
		e.ObjStart()
		e.FieldStart("code")
		e.Str(p.Code)
		e.FieldStart("applied")
		e.Bool(p.IsApplied())
		if !p.IsApplied() {
			e.FieldStart("rejection")
			e.Str(string(p.Rejection))
		}
		e.ObjEnd()
	}
	e.ObjEnd()
}
