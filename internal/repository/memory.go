package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketplace/internal/domain"
	"marketplace/internal/pricing"
)

// MemoryStore объединённое in-memory хранилище
type MemoryStore struct {
	mu           sync.RWMutex
	productsByID map[string]domain.Product
	cartByID     map[string]domain.CartLine
	addrByID     map[string]domain.Address
	ordersByID   map[string]domain.Order
	// insertion order, oldest first; breaks CreatedAt ties in listings
	orderSeq []string
	cartSeq  map[string]int64
	nextSeq  int64
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		productsByID: make(map[string]domain.Product),
		cartByID:     make(map[string]domain.CartLine),
		addrByID:     make(map[string]domain.Address),
		ordersByID:   make(map[string]domain.Order),
		cartSeq:      make(map[string]int64),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// Ensure interfaces
var _ ProductRepository = (*MemoryStore)(nil)

// ProductRepository implementation
func (m *MemoryStore) Create(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = m.now()
	p.UpdatedAt = p.CreatedAt
	m.productsByID[p.ID] = cloneProduct(*p)
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneProduct(p)
	return &cp, nil
}

func (m *MemoryStore) GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.productsByID[id]; ok {
			out = append(out, cloneProduct(p))
		}
	}
	return out, nil
}

func (m *MemoryStore) Update(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	old, ok := m.productsByID[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.CreatedAt = old.CreatedAt
	p.UpdatedAt = m.now()
	m.productsByID[p.ID] = cloneProduct(*p)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.productsByID[id]; !ok {
		return ErrNotFound
	}
	delete(m.productsByID, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0)
	for _, p := range m.productsByID {
		if !containsIgnoreCase(p.Name, f.NameSubstring) {
			continue
		}
		if f.MinPrice != nil && p.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) ReserveStock(ctx context.Context, id string, qty int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return ErrNotFound
	}
	if p.Stock < qty {
		return ErrInsufficientStock
	}
	p.Stock -= qty
	p.UpdatedAt = m.now()
	m.productsByID[id] = p
	return nil
}

func (m *MemoryStore) ReleaseStock(ctx context.Context, id string, qty int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return ErrNotFound
	}
	p.Stock += qty
	p.UpdatedAt = m.now()
	m.productsByID[id] = p
	return nil
}

func cloneProduct(p domain.Product) domain.Product {
	if p.Images != nil {
		p.Images = append([]domain.Image(nil), p.Images...)
	}
	return p
}

// CartRepository implementation on wrapper type
type MemoryCarts struct{ store *MemoryStore }

func NewMemoryCarts(store *MemoryStore) *MemoryCarts { return &MemoryCarts{store: store} }

var _ CartRepository = (*MemoryCarts)(nil)

func (mc *MemoryCarts) Add(ctx context.Context, l *domain.CartLine) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	l.ID = uuid.NewString()
	l.CreatedAt = mc.store.now()
	mc.store.nextSeq++
	mc.store.cartSeq[l.ID] = mc.store.nextSeq
	mc.store.cartByID[l.ID] = *l
	return nil
}

func (mc *MemoryCarts) SetQuantity(ctx context.Context, userID, id string, qty int64) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	l, ok := mc.store.cartByID[id]
	if !ok || l.UserID != userID {
		return ErrNotFound
	}
	l.Quantity = qty
	mc.store.cartByID[id] = l
	return nil
}

func (mc *MemoryCarts) ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error) {
	mc.store.rlock(ctx)
	defer mc.store.runlock(ctx)
	out := make([]domain.CartLine, 0)
	for _, l := range mc.store.cartByID {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	seq := mc.store.cartSeq
	sort.Slice(out, func(i, j int) bool { return seq[out[i].ID] < seq[out[j].ID] })
	return out, nil
}

func (mc *MemoryCarts) Delete(ctx context.Context, userID, id string) error {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	l, ok := mc.store.cartByID[id]
	if !ok || l.UserID != userID {
		return ErrNotFound
	}
	delete(mc.store.cartByID, id)
	delete(mc.store.cartSeq, id)
	return nil
}

func (mc *MemoryCarts) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	mc.store.wlock(ctx)
	defer mc.store.wunlock(ctx)
	var n int64
	for id, l := range mc.store.cartByID {
		if l.UserID == userID {
			delete(mc.store.cartByID, id)
			delete(mc.store.cartSeq, id)
			n++
		}
	}
	return n, nil
}

// AddressRepository implementation on wrapper type
type MemoryAddresses struct{ store *MemoryStore }

func NewMemoryAddresses(store *MemoryStore) *MemoryAddresses {
	return &MemoryAddresses{store: store}
}

var _ AddressRepository = (*MemoryAddresses)(nil)

func (ma *MemoryAddresses) Create(ctx context.Context, a *domain.Address) error {
	ma.store.wlock(ctx)
	defer ma.store.wunlock(ctx)
	a.ID = uuid.NewString()
	a.CreatedAt = ma.store.now()
	ma.store.addrByID[a.ID] = *a
	return nil
}

func (ma *MemoryAddresses) GetByID(ctx context.Context, id string) (*domain.Address, error) {
	ma.store.rlock(ctx)
	defer ma.store.runlock(ctx)
	a, ok := ma.store.addrByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (ma *MemoryAddresses) GetByIDs(ctx context.Context, ids []string) ([]domain.Address, error) {
	ma.store.rlock(ctx)
	defer ma.store.runlock(ctx)
	out := make([]domain.Address, 0, len(ids))
	for _, id := range ids {
		if a, ok := ma.store.addrByID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (ma *MemoryAddresses) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	ma.store.rlock(ctx)
	defer ma.store.runlock(ctx)
	out := make([]domain.Address, 0)
	for _, a := range ma.store.addrByID {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (ma *MemoryAddresses) IDsByMobile(ctx context.Context, substr string) ([]string, error) {
	ma.store.rlock(ctx)
	defer ma.store.runlock(ctx)
	out := make([]string, 0)
	if substr == "" {
		return out, nil
	}
	for id, a := range ma.store.addrByID {
		if containsIgnoreCase(a.Mobile, substr) {
			out = append(out, id)
		}
	}
	return out, nil
}

// OrderRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	for _, existing := range mo.store.ordersByID {
		if existing.OrderID == o.OrderID {
			return ErrConflict
		}
	}
	o.ID = uuid.NewString()
	o.CreatedAt = mo.store.now()
	o.UpdatedAt = o.CreatedAt
	mo.store.ordersByID[o.ID] = cloneOrder(*o)
	mo.store.orderSeq = append(mo.store.orderSeq, o.ID)
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneOrder(o)
	return &cp, nil
}

func (mo *MemoryOrders) GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	for _, o := range mo.store.ordersByID {
		if o.OrderID == orderID {
			cp := cloneOrder(o)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (mo *MemoryOrders) List(ctx context.Context, f OrderFilter, p Page) ([]domain.Order, int64, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	matched := make([]domain.Order, 0)
	for i := len(mo.store.orderSeq) - 1; i >= 0; i-- {
		o, ok := mo.store.ordersByID[mo.store.orderSeq[i]]
		if !ok || !MatchOrder(o, f) {
			continue
		}
		matched = append(matched, o)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))

	start := min(max(p.Offset, 0), len(matched))
	end := len(matched)
	if p.Limit > 0 && p.Limit < end-start {
		end = start + p.Limit
	}
	out := make([]domain.Order, 0, end-start)
	for _, o := range matched[start:end] {
		out = append(out, cloneOrder(o))
	}
	return out, total, nil
}

func (mo *MemoryOrders) SetStatus(ctx context.Context, id string, s domain.OrderStatus) (*domain.Order, error) {
	return mo.mutate(ctx, id, func(o *domain.Order) { o.OrderStatus = s })
}

func (mo *MemoryOrders) SetPaymentStatus(ctx context.Context, id string, s domain.PaymentStatus) (*domain.Order, error) {
	return mo.mutate(ctx, id, func(o *domain.Order) { o.PaymentStatus = s })
}

func (mo *MemoryOrders) mutate(ctx context.Context, id string, fn func(o *domain.Order)) (*domain.Order, error) {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	fn(&o)
	o.UpdatedAt = mo.store.now()
	mo.store.ordersByID[id] = o
	cp := cloneOrder(o)
	return &cp, nil
}

func (mo *MemoryOrders) Delete(ctx context.Context, id string) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, ok := mo.store.ordersByID[id]; !ok {
		return ErrNotFound
	}
	delete(mo.store.ordersByID, id)
	for i, sid := range mo.store.orderSeq {
		if sid == id {
			mo.store.orderSeq = append(mo.store.orderSeq[:i], mo.store.orderSeq[i+1:]...)
			break
		}
	}
	return nil
}

func (mo *MemoryOrders) Stats(ctx context.Context, since time.Time) (domain.OrderStats, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	var st domain.OrderStats
	revenue := make([]float64, 0)
	for _, o := range mo.store.ordersByID {
		st.TotalOrders++
		switch o.OrderStatus {
		case domain.OrderStatusPending:
			st.PendingOrders++
		case domain.OrderStatusDelivered:
			st.DeliveredOrders++
			revenue = append(revenue, o.Total)
		}
		if o.HasTier(domain.TierWholesale) {
			st.WholesaleOrders++
		}
		if !o.CreatedAt.Before(since) {
			st.TodayOrders++
		}
	}
	st.TotalRevenue = pricing.Sum(revenue...)
	return st, nil
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}

// Tx manager using write lock to emulate transaction boundary
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if isTx(ctx) {
		return fn(ctx)
	}
	// Для in-memory используем блокировку записи и помечаем контекст, чтобы репозитории пропускали внутренние локи
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	ctx = context.WithValue(ctx, txKey{}, true)
	return fn(ctx)
}
