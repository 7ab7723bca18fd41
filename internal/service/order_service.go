package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"marketplace/internal/domain"
	"marketplace/internal/pricing"
	"marketplace/internal/repository"
)

const (
	defaultPageLimit = 50
	orderIDAttempts  = 3
	// filterAll в фильтрах админки означает "без фильтра"
	filterAll = "all"
)

// Repositories набор репозиториев, с которыми работает OrderService
type Repositories struct {
	Products  repository.ProductRepository
	Carts     repository.CartRepository
	Addresses repository.AddressRepository
	Orders    repository.OrderRepository
}

// CartCleanupQueue очередь пользователей, чью корзину не удалось очистить после заказа
type CartCleanupQueue interface {
	Enqueue(ctx context.Context, userID string) error
}

// OrderEventPublisher получает события по заказам (лента для админки)
type OrderEventPublisher interface {
	Publish(ctx context.Context, ev domain.OrderEvent)
}

// OrderService реализует логику заказов: оформление из корзины, смена статусов, выборки
type OrderService struct {
	products  repository.ProductRepository
	carts     repository.CartRepository
	addresses repository.AddressRepository
	orders    repository.OrderRepository
	tx        repository.TxManager

	pricing       pricing.Policy
	reserveStock  bool
	verifyAddress bool
	cleanup       CartCleanupQueue
	events        OrderEventPublisher
	log           *slog.Logger
	tracer        trace.Tracer
	newOrderID    func() string
	now           func() time.Time

	// вернуть резерв вручную: tx не откатывает списание сам
	compensate bool
}

// Option настраивает OrderService
type Option func(*OrderService)

func WithPricing(p pricing.Policy) Option { return func(s *OrderService) { s.pricing = p } }

// WithReserveStock включает атомарное списание остатков при оформлении
func WithReserveStock(on bool) Option { return func(s *OrderService) { s.reserveStock = on } }

// WithAddressOwnership требует, чтобы адрес доставки принадлежал покупателю
func WithAddressOwnership(on bool) Option { return func(s *OrderService) { s.verifyAddress = on } }

func WithCleanupQueue(q CartCleanupQueue) Option { return func(s *OrderService) { s.cleanup = q } }

func WithEvents(p OrderEventPublisher) Option { return func(s *OrderService) { s.events = p } }

func WithLogger(l *slog.Logger) Option { return func(s *OrderService) { s.log = l } }

func WithOrderIDGenerator(fn func() string) Option {
	return func(s *OrderService) { s.newOrderID = fn }
}

func WithClock(fn func() time.Time) Option { return func(s *OrderService) { s.now = fn } }

func NewOrderService(repos Repositories, tx repository.TxManager, opts ...Option) *OrderService {
	s := &OrderService{
		products:   repos.Products,
		carts:      repos.Carts,
		addresses:  repos.Addresses,
		orders:     repos.Orders,
		tx:         tx,
		pricing:    pricing.DefaultPolicy(),
		cleanup:    noopCleanup{},
		events:     noopEvents{},
		log:        slog.Default(),
		tracer:     otel.Tracer("marketplace/internal/service"),
		newOrderID: NewOrderID,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.compensate = !repository.RollsBack(tx)
	return s
}

// NewOrderID генерирует номер заказа вида ORD-1A2B3C4D
func NewOrderID() string {
	head, _, _ := strings.Cut(uuid.NewString(), "-")
	return "ORD-" + strings.ToUpper(head)
}

// CreateOrderInput данные оформления заказа
type CreateOrderInput struct {
	DeliveryAddress string
	PaymentMethod   string
	Notes           string
}

// CreateOrder оформляет заказ из корзины пользователя и очищает корзину
func (s *OrderService) CreateOrder(ctx context.Context, userID string, in CreateOrderInput) (*domain.OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	view, err := s.createOrder(ctx, userID, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", view.OrderID))
	return view, nil
}

func (s *OrderService) createOrder(ctx context.Context, userID string, in CreateOrderInput) (*domain.OrderView, error) {
	if userID == "" {
		return nil, invalidInput("user is required")
	}
	addressID := strings.TrimSpace(in.DeliveryAddress)
	if addressID == "" {
		return nil, invalidInput("delivery address is required")
	}
	payment := strings.TrimSpace(in.PaymentMethod)
	if payment == "" {
		payment = domain.PaymentCashOnDelivery
	}

	if s.verifyAddress {
		a, err := s.addresses.GetByID(ctx, addressID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("load address: %w", err)
		}
		if a == nil || a.UserID != userID {
			return nil, fmt.Errorf("address %s: %w", addressID, repository.ErrNotFound)
		}
	}

	lines, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	priced, err := s.validateCart(ctx, lines)
	if err != nil {
		return nil, err
	}
	quote := s.pricing.Price(priced)

	order := domain.Order{
		UserID:          userID,
		DeliveryAddress: addressID,
		PaymentMethod:   payment,
		Notes:           in.Notes,
		OrderStatus:     domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
	}
	quote.Apply(&order)

	if err := s.persist(ctx, &order); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "order created",
		"order_id", order.OrderID, "user_id", userID, "items", len(order.Items), "total", order.Total)

	// the order stands even if the cart cannot be cleared
	s.clearCart(context.WithoutCancel(ctx), userID)

	view := s.resolveOrReport(ctx, order)
	s.events.Publish(ctx, domain.OrderEvent{Type: domain.OrderCreated, Order: view, At: s.now()})
	return &view, nil
}

// validateCart подгружает товары корзины и проверяет остатки.
// Ошибки возвращаются в порядке позиций корзины.
func (s *OrderService) validateCart(ctx context.Context, lines []domain.CartLine) ([]pricing.Line, error) {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.products.GetByIDs(ctx, uniq(ids))
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	out := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, &MissingProductError{CartLineID: l.ID, ProductID: l.ProductID}
		}
		if l.Quantity <= 0 {
			return nil, invalidInput(fmt.Sprintf("cart item %s has no quantity", l.ID))
		}
		if l.Quantity > p.Stock {
			return nil, &InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Available:   p.Stock,
				Requested:   l.Quantity,
			}
		}
		out = append(out, pricing.Line{Product: p, Quantity: l.Quantity})
	}
	return out, nil
}

// persist сохраняет заказ, при коллизии номера генерирует новый
func (s *OrderService) persist(ctx context.Context, order *domain.Order) error {
	op := func() (struct{}, error) {
		order.OrderID = s.newOrderID()
		err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
			return s.insert(ctx, order)
		})
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, repository.ErrConflict):
			s.log.WarnContext(ctx, "order id collision, regenerating", "order_id", order.OrderID)
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(10*time.Millisecond)),
		backoff.WithMaxTries(orderIDAttempts))
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("create order %s: %w", order.OrderID, err)
		}
		if errors.Is(err, ErrInsufficientStock) {
			return err
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// insert выполняется внутри транзакции: резерв остатков (если включён) и запись заказа.
// При ошибке уже зарезервированное возвращается на склад, если транзакция не откатит его сама.
func (s *OrderService) insert(ctx context.Context, order *domain.Order) (err error) {
	reserved := make([]domain.OrderItem, 0, len(order.Items))
	defer func() {
		if err == nil || !s.compensate {
			return
		}
		for _, it := range reserved {
			if rerr := s.products.ReleaseStock(ctx, it.ProductID, it.Quantity); rerr != nil {
				s.log.ErrorContext(ctx, "release reserved stock", "product_id", it.ProductID, "error", rerr)
			}
		}
	}()

	if s.reserveStock {
		for _, it := range order.Items {
			if err := s.products.ReserveStock(ctx, it.ProductID, it.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return s.stockError(ctx, it)
				}
				return fmt.Errorf("reserve stock for %s: %w", it.ProductID, err)
			}
			reserved = append(reserved, it)
		}
	}
	return s.orders.Create(ctx, order)
}

func (s *OrderService) stockError(ctx context.Context, it domain.OrderItem) error {
	e := &InsufficientStockError{ProductID: it.ProductID, ProductName: it.Name, Requested: it.Quantity}
	if p, err := s.products.GetByID(ctx, it.ProductID); err == nil {
		e.Available = p.Stock
	}
	return e
}

func (s *OrderService) clearCart(ctx context.Context, userID string) {
	n, err := s.carts.DeleteByUser(ctx, userID)
	if err == nil {
		s.log.DebugContext(ctx, "cart cleared", "user_id", userID, "lines", n)
		return
	}
	s.log.WarnContext(ctx, "cart cleanup failed, queued for retry", "user_id", userID, "error", err)
	if qerr := s.cleanup.Enqueue(ctx, userID); qerr != nil {
		s.log.ErrorContext(ctx, "enqueue cart cleanup", "user_id", userID, "error", qerr)
	}
}

// ListUserOrders заказы пользователя, от новых к старым
func (s *OrderService) ListUserOrders(ctx context.Context, userID string) ([]domain.OrderView, error) {
	if userID == "" {
		return nil, invalidInput("user is required")
	}
	orders, _, err := s.orders.List(ctx, repository.OrderFilter{UserID: userID}, repository.Page{})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return s.resolve(ctx, orders)
}

// GetUserOrder возвращает заказ по номеру, только если он принадлежит пользователю
func (s *OrderService) GetUserOrder(ctx context.Context, userID, orderID string) (*domain.OrderView, error) {
	if userID == "" || orderID == "" {
		return nil, ErrInvalidInput
	}
	o, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return s.resolveOne(ctx, *o)
}

// UpdateOrderStatus меняет статус заказа по его номеру (ORD-...)
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, status string) (*domain.OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.UpdateOrderStatus",
		trace.WithAttributes(attribute.String("order.id", orderID), attribute.String("order.status", status)))
	defer span.End()

	st, err := parseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.setStatus(ctx, o.ID, st)
}

// UpdateOrderStatusByID то же, что UpdateOrderStatus, но по внутреннему id
func (s *OrderService) UpdateOrderStatusByID(ctx context.Context, id string, status string) (*domain.OrderView, error) {
	st, err := parseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	return s.setStatus(ctx, id, st)
}

func (s *OrderService) setStatus(ctx context.Context, id string, st domain.OrderStatus) (*domain.OrderView, error) {
	o, err := s.orders.SetStatus(ctx, id, st)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "order status updated", "order_id", o.OrderID, "status", st)
	view := s.resolveOrReport(ctx, *o)
	s.events.Publish(ctx, domain.OrderEvent{Type: domain.OrderUpdated, Order: view, At: s.now()})
	return &view, nil
}

// UpdatePaymentStatus меняет статус оплаты
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, id string, status string) (*domain.OrderView, error) {
	st := domain.PaymentStatus(strings.ToLower(strings.TrimSpace(status)))
	if !st.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	o, err := s.orders.SetPaymentStatus(ctx, id, st)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "payment status updated", "order_id", o.OrderID, "status", st)
	view := s.resolveOrReport(ctx, *o)
	s.events.Publish(ctx, domain.OrderEvent{Type: domain.OrderUpdated, Order: view, At: s.now()})
	return &view, nil
}

// DeleteOrder удаляет заказ (админка)
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "order deleted", "order_id", o.OrderID)
	s.events.Publish(ctx, domain.OrderEvent{Type: domain.OrderDeleted, Order: viewOf(*o), At: s.now()})
	return nil
}

// AdminQuery параметры списка заказов в админке
type AdminQuery struct {
	Page   int
	Limit  int
	Search string
	Status string
	Type   string
}

// ListOrders постраничный список заказов с фильтрами
func (s *OrderService) ListOrders(ctx context.Context, q AdminQuery) ([]domain.OrderView, domain.Pagination, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageLimit
	}
	f, err := s.adminFilter(ctx, q)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	orders, total, err := s.orders.List(ctx, f, repository.Page{Offset: pageOffset(q.Page, q.Limit), Limit: q.Limit})
	if err != nil {
		return nil, domain.Pagination{}, fmt.Errorf("list orders: %w", err)
	}
	views, err := s.resolve(ctx, orders)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return views, domain.Pagination{
		CurrentPage:   q.Page,
		TotalPages:    int(math.Ceil(float64(total) / float64(q.Limit))),
		TotalOrders:   total,
		OrdersPerPage: q.Limit,
	}, nil
}

// pageOffset смещение страницы; страницы за пределами int дают смещение math.MaxInt
func pageOffset(page, limit int) int {
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

// ExportOrders все заказы под фильтр, без пагинации
func (s *OrderService) ExportOrders(ctx context.Context, q AdminQuery) ([]domain.OrderView, error) {
	f, err := s.adminFilter(ctx, q)
	if err != nil {
		return nil, err
	}
	orders, _, err := s.orders.List(ctx, f, repository.Page{})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return s.resolve(ctx, orders)
}

func (s *OrderService) adminFilter(ctx context.Context, q AdminQuery) (repository.OrderFilter, error) {
	var f repository.OrderFilter
	if status := strings.TrimSpace(q.Status); status != "" && !strings.EqualFold(status, filterAll) {
		st, err := parseOrderStatus(status)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	switch domain.PricingTier(strings.ToLower(q.Type)) {
	case domain.TierWholesale:
		f.Tier = domain.TierWholesale
	case domain.TierRetail:
		f.Tier = domain.TierRetail
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		f.Search = search
		ids, err := s.addresses.IDsByMobile(ctx, search)
		if err != nil {
			return f, fmt.Errorf("search addresses: %w", err)
		}
		f.SearchAddressIDs = ids
	}
	return f, nil
}

// Stats счётчики для админки; "сегодня" считается от локальной полуночи
func (s *OrderService) Stats(ctx context.Context) (domain.OrderStats, error) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	st, err := s.orders.Stats(ctx, midnight)
	if err != nil {
		return domain.OrderStats{}, fmt.Errorf("order stats: %w", err)
	}
	return st, nil
}

func parseOrderStatus(v string) (domain.OrderStatus, error) {
	st := domain.OrderStatus(strings.ToLower(strings.TrimSpace(v)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, v)
	}
	return st, nil
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type noopCleanup struct{}

func (noopCleanup) Enqueue(context.Context, string) error { return nil }

type noopEvents struct{}

func (noopEvents) Publish(context.Context, domain.OrderEvent) {}
