package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	model "github.com/glkeru/loyalty/pay2win/internal/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PromotionsDB - каталог акций в MongoDB; числовые id из коллекции counters
type PromotionsDB struct {
	mgo      *mongo.Client
	coll     *mongo.Collection
	counters *mongo.Collection
}

// документ акции; decimal хранится строкой
type promotionDoc struct {
	ID          int64      `bson:"id"`
	Name        string     `bson:"name"`
	Description string     `bson:"description"`
	Type        string     `bson:"type"`
	StartTime   *time.Time `bson:"startTime"`
	EndTime     time.Time  `bson:"endTime"`
	MinSpending *string    `bson:"minSpending,omitempty"`
	Rate        *string    `bson:"rate,omitempty"`
	Points      int64      `bson:"points"`
}

func NewPromotionsDB(ctx context.Context, uri string, database string) (*PromotionsDB, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is empty")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err = client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	db := client.Database(database)
	coll := db.Collection("promotions")
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return &PromotionsDB{client, coll, db.Collection("counters")}, nil
}

func (r *PromotionsDB) Close(ctx context.Context) error {
	return r.mgo.Disconnect(ctx)
}

func (r *PromotionsDB) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "promotions"},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	return counter.Seq, err
}

func (r *PromotionsDB) CreatePromotion(ctx context.Context, promo *model.Promotion) error {
	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}
	promo.ID = id
	_, err = r.coll.InsertOne(ctx, promotionToDoc(*promo))
	return err
}

func (r *PromotionsDB) GetPromotion(ctx context.Context, id int64) (model.Promotion, error) {
	var doc promotionDoc
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Promotion{}, fmt.Errorf("promotion %w", model.ErrNotFound)
	}
	if err != nil {
		return model.Promotion{}, err
	}
	return doc.model()
}

func (r *PromotionsDB) UpdatePromotion(ctx context.Context, promo model.Promotion) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"id": promo.ID}, promotionToDoc(promo))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("promotion %w", model.ErrNotFound)
	}
	return nil
}

func (r *PromotionsDB) DeletePromotion(ctx context.Context, id int64) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("promotion %w", model.ErrNotFound)
	}
	return nil
}

func (r *PromotionsDB) ListPromotions(ctx context.Context, filter model.PromotionFilter) ([]model.Promotion, int, error) {
	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}
	query := promotionQuery(filter, now)
	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	page := filter.Page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "id", Value: 1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Limit))
	promos, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return promos, int(total), nil
}

func (r *PromotionsDB) ActivePromotions(ctx context.Context, at time.Time, typ model.PromotionType) ([]model.Promotion, error) {
	started, ended := true, false
	query := promotionQuery(model.PromotionFilter{Type: typ, Started: &started, Ended: &ended}, at)
	return r.find(ctx, query, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
}

func (r *PromotionsDB) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]model.Promotion, error) {
	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	promos := []model.Promotion{}
	for cur.Next(ctx) {
		var doc promotionDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, err
		}
		promo, err := doc.model()
		if err != nil {
			return nil, err
		}
		promos = append(promos, promo)
	}
	return promos, cur.Err()
}

// promotionQuery - фильтр списка; без startTime акция считается начавшейся
func promotionQuery(filter model.PromotionFilter, now time.Time) bson.M {
	query := bson.M{}
	if filter.Name != "" {
		query["name"] = bson.M{"$regex": regexp.QuoteMeta(filter.Name), "$options": "i"}
	}
	if filter.Type != "" {
		query["type"] = string(filter.Type)
	}
	if filter.Started != nil {
		if *filter.Started {
			query["$or"] = bson.A{
				bson.M{"startTime": nil},
				bson.M{"startTime": bson.M{"$lte": now}},
			}
		} else {
			query["startTime"] = bson.M{"$gt": now}
		}
	}
	if filter.Ended != nil {
		if *filter.Ended {
			query["endTime"] = bson.M{"$lt": now}
		} else {
			query["endTime"] = bson.M{"$gte": now}
		}
	}
	return query
}

func promotionToDoc(p model.Promotion) promotionDoc {
	doc := promotionDoc{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Type:        string(p.Type),
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
		Points:      p.Points,
	}
	if p.MinSpending != nil {
		s := p.MinSpending.String()
		doc.MinSpending = &s
	}
	if p.Rate != nil {
		s := p.Rate.String()
		doc.Rate = &s
	}
	return doc
}

func (d promotionDoc) model() (model.Promotion, error) {
	p := model.Promotion{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Type:        model.PromotionType(d.Type),
		StartTime:   d.StartTime,
		EndTime:     d.EndTime,
		Points:      d.Points,
	}
	if d.MinSpending != nil {
		v, err := decimal.NewFromString(*d.MinSpending)
		if err != nil {
			return model.Promotion{}, fmt.Errorf("promotion %d minSpending: %w", d.ID, err)
		}
		p.MinSpending = &v
	}
	if d.Rate != nil {
		v, err := decimal.NewFromString(*d.Rate)
		if err != nil {
			return model.Promotion{}, fmt.Errorf("promotion %d rate: %w", d.ID, err)
		}
		p.Rate = &v
	}
	return p, nil
}
