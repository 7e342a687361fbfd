package order

import (
	"context"
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/promo-orders/internal/domain/product"
	"github.com/xenking/promo-orders/internal/domain/promo"
	"github.com/xenking/promo-orders/internal/money"
)

const instrumentationName = "github.com/xenking/promo-orders/internal/domain/order"

// MaxQuantity is the largest quantity a single line can be stored with.
const MaxQuantity = math.MaxInt32

// LineRequest is a requested SKU and quantity.
type LineRequest struct {
	SKU      string
	Quantity int
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	PaymentMethod  string
	PaymentOrderID string
	// PromoCode is optional; empty means no promo.
	PromoCode string
	Items     []LineRequest
}

// CreateResult holds the output of a successfully created order.
type CreateResult struct {
	OrderID   string
	Status    Status
	Breakdown Breakdown
	// Promo is nil when the request carried no promo code. A rejected promo
	// is reported here and does not fail the order.
	Promo *promo.Outcome
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides order id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithTracerProvider sets the tracer provider used for CreateOrder spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider used for order counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// Service creates orders: it resolves products, prices them, validates the
// promo code and persists the result atomically.
type Service struct {
	catalog product.Catalog
	promos  promo.Validator
	orders  Repository

	now    func() time.Time
	newID  func() string
	tracer trace.Tracer
	meter  metric.Meter

	ordersCreated metric.Int64Counter
	promoOutcomes metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	catalog product.Catalog,
	promos promo.Validator,
	orders Repository,
	opts ...Option,
) *Service {
	s := &Service{
		catalog: catalog,
		promos:  promos,
		orders:  orders,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
		tracer:  tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:   metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.ordersCreated, err = s.meter.Int64Counter("orders.created",
		metric.WithDescription("Orders persisted"),
	); err != nil {
		s.ordersCreated = metricnoop.Int64Counter{}
	}
	if s.promoOutcomes, err = s.meter.Int64Counter("orders.promo.outcomes",
		metric.WithDescription("Promo validations by outcome"),
	); err != nil {
		s.promoOutcomes = metricnoop.Int64Counter{}
	}

	return s
}

// CreateOrder validates the request, resolves every requested SKU, computes
// the breakdown with an optional promo discount and saves the order with its
// items in one atomic write.
func (s *Service) CreateOrder(ctx context.Context, req CreateRequest) (_ *CreateResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "CreateOrder",
		trace.WithAttributes(attribute.Int("order.lines", len(req.Items))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 || item.Quantity > MaxQuantity {
			return nil, &InvalidQuantityError{SKU: item.SKU, Quantity: item.Quantity}
		}
	}

	lines, err := s.resolveLines(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	breakdown := Price(lines, money.Zero)

	var outcome *promo.Outcome
	if req.PromoCode != "" {
		o, err := s.promos.Validate(ctx, req.PromoCode, breakdown.Subtotal)
		if err != nil {
			return nil, err
		}
		outcome = &o
		s.promoOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcomeLabel(o))))

		if o.IsApplied() {
			breakdown = Price(lines, o.Discount)
		} else {
			zctx.From(ctx).Debug("Promo rejected",
				zap.String("promo_code", req.PromoCode),
				zap.String("reason", string(o.Rejection)),
			)
		}
	}

	o := &Order{
		ID:             s.newID(),
		PaymentMethod:  req.PaymentMethod,
		PaymentOrderID: req.PaymentOrderID,
		Subtotal:       breakdown.Subtotal,
		DiscountTotal:  breakdown.DiscountTotal,
		GrandTotal:     breakdown.GrandTotal,
		Status:         StatusPending,
		CreatedAt:      s.now(),
	}
	// A zero discount leaves the order untagged, so it does not count toward
	// the promo's usage.
	if outcome != nil && outcome.IsApplied() && outcome.Discount.IsPositive() {
		o.PromoCode = req.PromoCode
		o.PromoDiscount = outcome.Discount
	}
	span.SetAttributes(attribute.String("order.id", o.ID))

	if err := s.orders.SaveAtomically(ctx, o, snapshotItems(o.ID, lines)); err != nil {
		return nil, &PersistenceError{OrderID: o.ID, Err: err}
	}
	s.ordersCreated.Add(ctx, 1)

	zctx.From(ctx).Info("Order created",
		zap.String("order_id", o.ID),
		zap.Stringer("grand_total", o.GrandTotal),
		zap.String("promo_code", o.PromoCode),
	)

	return &CreateResult{
		OrderID:   o.ID,
		Status:    o.Status,
		Breakdown: breakdown,
		Promo:     outcome,
	}, nil
}

// resolveLines fetches the distinct SKUs in one catalog call and pairs every
// requested item with its product. Any unresolved SKU fails the request.
func (s *Service) resolveLines(ctx context.Context, items []LineRequest) ([]Line, error) {
	skus := uniqueSKUs(items)

	resolved, err := s.catalog.Resolve(ctx, skus)
	if err != nil {
		return nil, errors.Wrap(err, "resolve products")
	}

	bySKU := product.Index(resolved)
	var missing []string
	for _, sku := range skus {
		if _, ok := bySKU[sku]; !ok {
			missing = append(missing, sku)
		}
	}
	if len(missing) > 0 {
		return nil, &ProductNotFoundError{SKUs: missing}
	}

	lines := make([]Line, len(items))
	for i, item := range items {
		lines[i] = Line{Product: bySKU[item.SKU], Quantity: item.Quantity}
	}
	return lines, nil
}

// uniqueSKUs returns SKUs in first-seen order without duplicates.
func uniqueSKUs(items []LineRequest) []string {
	seen := make(map[string]struct{}, len(items))
	skus := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.SKU]; ok {
			continue
		}
		seen[item.SKU] = struct{}{}
		skus = append(skus, item.SKU)
	}
	return skus
}

func snapshotItems(orderID string, lines []Line) []Item {
	items := make([]Item, len(lines))
	for i, l := range lines {
		items[i] = Item{
			OrderID:   orderID,
			SKU:       l.Product.SKU,
			Name:      l.Product.Name,
			BasePrice: l.Product.BasePrice,
			Price:     l.Product.Price,
			Quantity:  l.Quantity,
		}
	}
	return items
}

func outcomeLabel(o promo.Outcome) string {
	if o.IsApplied() {
		return "applied"
	}
	return string(o.Rejection)
}
