package mongostore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"marketplace/internal/domain"
	"marketplace/internal/repository"
)

// Products коллекция товаров
type Products struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ repository.ProductRepository = (*Products)(nil)

func (r *Products) Create(ctx context.Context, p *domain.Product) error {
	p.CreatedAt = r.now()
	p.UpdatedAt = p.CreatedAt
	d := toProductDoc(*p)
	d.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, d); err != nil {
		return mapErr(err)
	}
	p.ID = d.ID.Hex()
	return nil
}

func (r *Products) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var d productDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		return nil, mapErr(err)
	}
	p := d.domain()
	return &p, nil
}

func (r *Products) GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	oids := objectIDs(ids)
	out := make([]domain.Product, 0, len(oids))
	if len(oids) == 0 {
		return out, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, mapErr(err)
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		out = append(out, d.domain())
	}
	return out, nil
}

func (r *Products) Update(ctx context.Context, p *domain.Product) error {
	oid, err := objectID(p.ID)
	if err != nil {
		return err
	}
	p.UpdatedAt = r.now()
	d := toProductDoc(*p)
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"name":             d.Name,
		"images":           d.Images,
		"stock":            d.Stock,
		"price":            d.Price,
		"wholesaleEnabled": d.WholesaleEnabled,
		"wholesalePrice":   d.WholesalePrice,
		"moq":              d.MOQ,
		"updatedAt":        d.UpdatedAt,
	}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Products) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return mapErr(err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Products) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, error) {
	cur, err := r.coll.Find(ctx, productFilter(f), options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, mapErr(err)
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.domain())
	}
	return out, nil
}

// ReserveStock условный $inc: документ обновится, только если остатка хватает
func (r *Products) ReserveStock(ctx context.Context, id string, qty int64) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "stock": bson.M{"$gte": qty}},
		bson.M{"$inc": bson.M{"stock": -qty}, "$set": bson.M{"updatedAt": r.now()}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrInsufficientStock
}

func (r *Products) ReleaseStock(ctx context.Context, id string, qty int64) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$inc": bson.M{"stock": qty}, "$set": bson.M{"updatedAt": r.now()}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func productFilter(f repository.ProductFilter) bson.M {
	q := bson.M{}
	if f.NameSubstring != "" {
		q["name"] = containsRegex(f.NameSubstring)
	}
	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		q["price"] = price
	}
	return q
}

func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// Carts коллекция позиций корзины
type Carts struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ repository.CartRepository = (*Carts)(nil)

func (r *Carts) Add(ctx context.Context, l *domain.CartLine) error {
	l.CreatedAt = r.now()
	d := cartDoc{
		ID:        primitive.NewObjectID(),
		UserID:    l.UserID,
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		CreatedAt: l.CreatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, d); err != nil {
		return mapErr(err)
	}
	l.ID = d.ID.Hex()
	return nil
}

func (r *Carts) SetQuantity(ctx context.Context, userID, id string, qty int64) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid, "userId": userID}, bson.M{"$set": bson.M{"quantity": qty}})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Carts) ListByUser(ctx context.Context, userID string) ([]domain.CartLine, error) {
	// ObjectID растёт со временем вставки
	cur, err := r.coll.Find(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, mapErr(err)
	}
	var docs []cartDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.CartLine, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.domain())
	}
	return out, nil
}

func (r *Carts) Delete(ctx context.Context, userID, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid, "userId": userID})
	if err != nil {
		return mapErr(err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *Carts) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, fmt.Errorf("delete cart of %s: %w", userID, mapErr(err))
	}
	return res.DeletedCount, nil
}

// Addresses коллекция адресов доставки
type Addresses struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ repository.AddressRepository = (*Addresses)(nil)

func (r *Addresses) Create(ctx context.Context, a *domain.Address) error {
	a.CreatedAt = r.now()
	d := toAddressDoc(*a)
	d.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, d); err != nil {
		return mapErr(err)
	}
	a.ID = d.ID.Hex()
	return nil
}

func (r *Addresses) GetByID(ctx context.Context, id string) (*domain.Address, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var d addressDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		return nil, mapErr(err)
	}
	a := d.domain()
	return &a, nil
}

func (r *Addresses) GetByIDs(ctx context.Context, ids []string) ([]domain.Address, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return []domain.Address{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": oids}})
}

func (r *Addresses) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	return r.find(ctx, bson.M{"userId": userID})
}

func (r *Addresses) IDsByMobile(ctx context.Context, substr string) ([]string, error) {
	if substr == "" {
		return []string{}, nil
	}
	list, err := r.find(ctx, bson.M{"mobile": containsRegex(substr)})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (r *Addresses) find(ctx context.Context, q bson.M) ([]domain.Address, error) {
	cur, err := r.coll.Find(ctx, q, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, mapErr(err)
	}
	var docs []addressDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Address, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.domain())
	}
	return out, nil
}
