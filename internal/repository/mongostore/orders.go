package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"marketplace/internal/domain"
	"marketplace/internal/pricing"
	"marketplace/internal/repository"
)

// Orders коллекция заказов. Уникальный индекс на orderId создаёт EnsureIndexes
type Orders struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ repository.OrderRepository = (*Orders)(nil)

func (r *Orders) Create(ctx context.Context, o *domain.Order) error {
	o.CreatedAt = r.now()
	o.UpdatedAt = o.CreatedAt
	d := toOrderDoc(*o)
	d.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, d); err != nil {
		return mapErr(err)
	}
	o.ID = d.ID.Hex()
	return nil
}

func (r *Orders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *Orders) GetByOrderID(ctx context.Context, orderID string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"orderId": orderID})
}

func (r *Orders) findOne(ctx context.Context, q bson.M) (*domain.Order, error) {
	var d orderDoc
	if err := r.coll.FindOne(ctx, q).Decode(&d); err != nil {
		return nil, mapErr(err)
	}
	o := d.domain()
	return &o, nil
}

func (r *Orders) List(ctx context.Context, f repository.OrderFilter, p repository.Page) ([]domain.Order, int64, error) {
	q := orderFilter(f)
	total, err := r.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if p.Offset > 0 {
		opts.SetSkip(int64(p.Offset))
	}
	if p.Limit > 0 {
		opts.SetLimit(int64(p.Limit))
	}
	cur, err := r.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	out := make([]domain.Order, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.domain())
	}
	return out, total, nil
}

func (r *Orders) SetStatus(ctx context.Context, id string, s domain.OrderStatus) (*domain.Order, error) {
	return r.set(ctx, id, bson.M{"orderStatus": string(s)})
}

func (r *Orders) SetPaymentStatus(ctx context.Context, id string, s domain.PaymentStatus) (*domain.Order, error) {
	return r.set(ctx, id, bson.M{"paymentStatus": string(s)})
}

func (r *Orders) set(ctx context.Context, id string, fields bson.M) (*domain.Order, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	fields["updatedAt"] = r.now()
	var d orderDoc
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&d)
	if err != nil {
		return nil, mapErr(err)
	}
	o := d.domain()
	return &o, nil
}

func (r *Orders) Delete(ctx context.Context, id string) error {
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

func (r *Orders) Stats(ctx context.Context, since time.Time) (domain.OrderStats, error) {
	var st domain.OrderStats
	counts := []struct {
		dst *int64
		q   bson.M
	}{
		{&st.TotalOrders, bson.M{}},
		{&st.PendingOrders, bson.M{"orderStatus": string(domain.OrderStatusPending)}},
		{&st.DeliveredOrders, bson.M{"orderStatus": string(domain.OrderStatusDelivered)}},
		{&st.WholesaleOrders, bson.M{"items.pricingTier": string(domain.TierWholesale)}},
		{&st.TodayOrders, bson.M{"createdAt": bson.M{"$gte": since}}},
	}
	for _, c := range counts {
		n, err := r.coll.CountDocuments(ctx, c.q)
		if err != nil {
			return st, mapErr(err)
		}
		*c.dst = n
	}

	cur, err := r.coll.Aggregate(ctx, revenuePipeline())
	if err != nil {
		return st, mapErr(err)
	}
	var rows []struct {
		Revenue float64 `bson:"revenue"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return st, err
	}
	if len(rows) > 0 {
		st.TotalRevenue = pricing.Sum(rows[0].Revenue)
	}
	return st, nil
}

func revenuePipeline() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"orderStatus": string(domain.OrderStatusDelivered)}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "revenue": bson.M{"$sum": "$total"}}}},
	}
}

// orderFilter строит запрос к коллекции заказов
func orderFilter(f repository.OrderFilter) bson.M {
	q := bson.M{}
	if f.UserID != "" {
		q["userId"] = f.UserID
	}
	if f.Status != "" {
		q["orderStatus"] = string(f.Status)
	}
	if f.Tier != "" {
		q["items.pricingTier"] = string(f.Tier)
	}
	if f.Search != "" {
		rx := containsRegex(f.Search)
		or := bson.A{
			bson.M{"orderId": rx},
			bson.M{"items.name": rx},
		}
		if len(f.SearchAddressIDs) > 0 {
			or = append(or, bson.M{"deliveryAddress": bson.M{"$in": f.SearchAddressIDs}})
		}
		q["$or"] = or
	}
	return q
}
