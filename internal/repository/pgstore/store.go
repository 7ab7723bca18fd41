// Package pgstore реализует репозитории поверх PostgreSQL через gorm.
// В отличие от документного хранилища, оформление заказа здесь целиком
// выполняется в одной ACID-транзакции.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"marketplace/internal/domain"
	"marketplace/internal/pricing"
	"marketplace/internal/repository"
)

// Store обёртка над *gorm.DB; репозитории создаются из неё
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open подключается к базе по DSN
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return New(db), nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Migrate создаёт или обновляет схему
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&productRow{}, &cartRow{}, &addressRow{}, &orderRow{}, &orderItemRow{})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Products() *Products   { return &Products{s} }
func (s *Store) Carts() *Carts         { return &Carts{s} }
func (s *Store) Addresses() *Addresses { return &Addresses{s} }
func (s *Store) Orders() *Orders       { return &Orders{s} }
func (s *Store) Tx() *Tx               { return &Tx{s} }

type txKey struct{}

// conn возвращает транзакцию из контекста, если она открыта
func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

// Tx открывает gorm-транзакцию и кладёт её в контекст
type Tx struct{ s *Store }

var (
	_ repository.TxManager  = (*Tx)(nil)
	_ repository.Rollbacker = (*Tx)(nil)
)

func (t *Tx) RollsBack() bool { return true }

func (t *Tx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", repository.ErrConflict, err)
	default:
		return err
	}
}

// likePattern экранирует спецсимволы LIKE и оборачивает подстроку в %
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func validUUIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func validUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return repository.ErrNotFound
	}
	return nil
}

// Products таблица товаров
type Products struct{ s *Store }

var _ repository.ProductRepository = (*Products)(nil)

func (r *Products) Create(ctx context.Context, p *domain.Product) error {
	p.ID = uuid.NewString()
	p.CreatedAt = r.s.now()
	p.UpdatedAt = p.CreatedAt
	row := toProductRow(*p)
	return mapErr(r.s.conn(ctx).Create(&row).Error)
}

func (r *Products) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if err := validUUID(id); err != nil {
		return nil, err
	}
	var row productRow
	if err := r.s.conn(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	p := row.domain()
	return &p, nil
}

func (r *Products) GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	ids = validUUIDs(ids)
	out := make([]domain.Product, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []productRow
	if err := r.s.conn(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, mapErr(err)
	}
	for _, row := range rows {
		out = append(out, row.domain())
	}
	return out, nil
}

func (r *Products) Update(ctx context.Context, p *domain.Product) error {
	if err := validUUID(p.ID); err != nil {
		return err
	}
	p.UpdatedAt = r.s.now()
	row := toProductRow(*p)
	res := r.s.conn(ctx).Model(&productRow{}).Where("id = ?", p.ID).
		Select("name", "images", "stock", "price", "wholesale_enabled", "wholesale_price", "moq", "updated_at").
		Updates(&row)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Products) Delete(ctx context.Context, id string) error {
	if err := validUUID(id); err != nil {
		return err
	}
	res := r.s.conn(ctx).Delete(&productRow{}, "id = ?", id)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Products) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, error) {
	q := r.s.conn(ctx).Model(&productRow{})
	if f.NameSubstring != "" {
		q = q.Where("name ILIKE ?", likePattern(f.NameSubstring))
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	var rows []productRow
	if err := q.Order("name").Find(&rows).Error; err != nil {
		return nil, mapErr(err)
	}
	out := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.domain())
	}
	return out, nil
}

// ReserveStock условный UPDATE: строка меняется, только если остатка хватает
func (r *Products) ReserveStock(ctx context.Context, id string, qty int64) error {
	if err := validUUID(id); err != nil {
		return err
	}
	db := r.s.conn(ctx)
	res := db.Model(&productRow{}).
		Where("id = ? AND stock >= ?", id, qty).
		Updates(map[string]any{"stock": gorm.Expr("stock - ?", qty), "updated_at": r.s.now()})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	var n int64
	if err := db.Model(&productRow{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrInsufficientStock
}

func (r *Products) ReleaseStock(ctx context.Context, id string, qty int64) error {
	if err := validUUID(id); err != nil {
		return err
	}
	res := r.s.conn(ctx).Model(&productRow{}).Where("id = ?", id).
		Updates(map[string]any{"stock": gorm.Expr("stock + ?", qty), "updated_at": r.s.now()})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Carts таблица позиций корзины
type Carts struct{ s *Store }

var _ repository.CartRepository = (*Carts)(nil)

func (r *Carts) Add(ctx context.Context, l *domain.CartLine) error {
	l.ID = uuid.NewString()
	l.CreatedAt = r.s.now()
	row := cartRow{ID: l.ID, UserID: l.UserID, ProductID: l.ProductID, Quantity: l.Quantity, CreatedAt: l.CreatedAt}
	return mapErr(r.s.conn(ctx).Create(&row).Error)
}

func (r *Carts) SetQuantity(ctx context.Context, userID, id string, qty int64) error {
	if err := validUUID(id); err != nil {
		return err
	}
	res := r.s.conn(ctx).Model(&cartRow{}).Where("id = ? AND user_id = ?", id, userID).Update("quantity", qty)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Carts) ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error) {
	var rows []cartRow
	if err := r.s.conn(ctx).Where("user_id = ?", userID).Order("seq").Find(&rows).Error; err != nil {
		return nil, mapErr(err)
	}
	out := make([]domain.CartLine, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.domain())
	}
	return out, nil
}

func (r *Carts) Delete(ctx context.Context, userID, id string) error {
	if err := validUUID(id); err != nil {
		return err
	}
	res := r.s.conn(ctx).Delete(&cartRow{}, "id = ? AND user_id = ?", id, userID)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Carts) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res := r.s.conn(ctx).Delete(&cartRow{}, "user_id = ?", userID)
	if res.Error != nil {
		return 0, mapErr(res.Error)
	}
	return res.RowsAffected, nil
}

// Addresses таблица адресов
type Addresses struct{ s *Store }

var _ repository.AddressRepository = (*Addresses)(nil)

func (r *Addresses) Create(ctx context.Context, a *domain.Address) error {
	a.ID = uuid.NewString()
	a.CreatedAt = r.s.now()
	row := toAddressRow(*a)
	return mapErr(r.s.conn(ctx).Create(&row).Error)
}

func (r *Addresses) GetByID(ctx context.Context, id string) (*domain.Address, error) {
	if err := validUUID(id); err != nil {
		return nil, err
	}
	var row addressRow
	if err := r.s.conn(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	a := row.domain()
	return &a, nil
}

func (r *Addresses) GetByIDs(ctx context.Context, ids []string) ([]domain.Address, error) {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return []domain.Address{}, nil
	}
	return r.find(r.s.conn(ctx).Where("id IN ?", ids))
}

func (r *Addresses) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	return r.find(r.s.conn(ctx).Where("user_id = ?", userID))
}

func (r *Addresses) IDsByMobile(ctx context.Context, substr string) ([]string, error) {
	ids := make([]string, 0)
	if substr == "" {
		return ids, nil
	}
	err := r.s.conn(ctx).Model(&addressRow{}).
		Where("mobile ILIKE ?", likePattern(substr)).
		Pluck("id", &ids).Error
	return ids, mapErr(err)
}

func (r *Addresses) find(q *gorm.DB) ([]domain.Address, error) {
	var rows []addressRow
	if err := q.Order("created_at").Find(&rows).Error; err != nil {
		return nil, mapErr(err)
	}
	out := make([]domain.Address, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.domain())
	}
	return out, nil
}

// Orders таблицы orders и order_items
type Orders struct{ s *Store }

var _ repository.OrderRepository = (*Orders)(nil)

func (r *Orders) Create(ctx context.Context, o *domain.Order) error {
	o.ID = uuid.NewString()
	o.CreatedAt = r.s.now()
	o.UpdatedAt = o.CreatedAt
	row := toOrderRow(*o)
	if err := r.s.conn(ctx).Create(&row).Error; err != nil {
		o.ID = ""
		return mapErr(err)
	}
	return nil
}

func (r *Orders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if err := validUUID(id); err != nil {
		return nil, err
	}
	return r.first(ctx, "id = ?", id)
}

func (r *Orders) GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	return r.first(ctx, "order_id = ?", orderID)
}

func (r *Orders) first(ctx context.Context, cond string, arg any) (*domain.Order, error) {
	var row orderRow
	if err := r.s.conn(ctx).Preload("Items").First(&row, cond, arg).Error; err != nil {
		return nil, mapErr(err)
	}
	o := row.domain()
	return &o, nil
}

const itemExists = "EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_ref = orders.id AND "

// applyOrderFilter добавляет условия фильтра к запросу по таблице orders
func applyOrderFilter(q *gorm.DB, f repository.OrderFilter) *gorm.DB {
	if f.UserID != "" {
		q = q.Where("orders.user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("orders.order_status = ?", string(f.Status))
	}
	if f.Tier != "" {
		q = q.Where(itemExists+"oi.pricing_tier = ?)", string(f.Tier))
	}
	if f.Search != "" {
		cond, args := searchClause(f)
		q = q.Where(cond, args...)
	}
	return q
}

func searchClause(f repository.OrderFilter) (string, []any) {
	pattern := likePattern(f.Search)
	parts := []string{"orders.order_id ILIKE ?", itemExists + "oi.name ILIKE ?)"}
	args := []any{pattern, pattern}
	if len(f.SearchAddressIDs) > 0 {
		parts = append(parts, "orders.delivery_address IN ?")
		args = append(args, f.SearchAddressIDs)
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func (r *Orders) List(ctx context.Context, f repository.OrderFilter, p repository.Page) ([]domain.Order, int64, error) {
	db := r.s.conn(ctx)
	var total int64
	if err := applyOrderFilter(db.Model(&orderRow{}), f).Count(&total).Error; err != nil {
		return nil, 0, mapErr(err)
	}
	q := applyOrderFilter(db.Model(&orderRow{}), f).Preload("Items").Order("orders.created_at DESC, orders.id DESC")
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	var rows []orderRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, mapErr(err)
	}
	out := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.domain())
	}
	return out, total, nil
}

func (r *Orders) SetStatus(ctx context.Context, id string, s domain.OrderStatus) (*domain.Order, error) {
	return r.set(ctx, id, "order_status", string(s))
}

func (r *Orders) SetPaymentStatus(ctx context.Context, id string, s domain.PaymentStatus) (*domain.Order, error) {
	return r.set(ctx, id, "payment_status", string(s))
}

func (r *Orders) set(ctx context.Context, id, column, value string) (*domain.Order, error) {
	if err := validUUID(id); err != nil {
		return nil, err
	}
	res := r.s.conn(ctx).Model(&orderRow{}).Where("id = ?", id).
		Updates(map[string]any{column: value, "updated_at": r.s.now()})
	if res.Error != nil {
		return nil, mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, repository.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *Orders) Delete(ctx context.Context, id string) error {
	if err := validUUID(id); err != nil {
		return err
	}
	res := r.s.conn(ctx).Delete(&orderRow{}, "id = ?", id)
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Orders) Stats(ctx context.Context, since time.Time) (domain.OrderStats, error) {
	var st domain.OrderStats
	db := r.s.conn(ctx)
	counts := []struct {
		dst  *int64
		cond string
		args []any
	}{
		{&st.TotalOrders, "", nil},
		{&st.PendingOrders, "order_status = ?", []any{string(domain.OrderStatusPending)}},
		{&st.DeliveredOrders, "order_status = ?", []any{string(domain.OrderStatusDelivered)}},
		{&st.WholesaleOrders, itemExists + "oi.pricing_tier = ?)", []any{string(domain.TierWholesale)}},
		{&st.TodayOrders, "created_at >= ?", []any{since}},
	}
	for _, c := range counts {
		q := db.Model(&orderRow{})
		if c.cond != "" {
			q = q.Where(c.cond, c.args...)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return st, mapErr(err)
		}
	}
	var revenue float64
	err := db.Model(&orderRow{}).
		Where("order_status = ?", string(domain.OrderStatusDelivered)).
		Select("COALESCE(SUM(total), 0)").
		Scan(&revenue).Error
	if err != nil {
		return st, mapErr(err)
	}
	st.TotalRevenue = pricing.Sum(revenue)
	return st, nil
}
