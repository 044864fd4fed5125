package catalog

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ProductsCollection is the default MongoDB collection name.
const ProductsCollection = "products"

// MongoRepository keeps products as documents keyed by product id.
type MongoRepository struct {
	products *mongo.Collection
}

// NewMongoRepository creates a MongoRepository on db.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{products: db.Collection(ProductsCollection)}
}

func (r *MongoRepository) Get(ctx context.Context, id string) (Product, error) {
	var p Product
	if err := r.products.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Product{}, ErrNotFound
		}
		return Product{}, errors.Join(ErrStoreFailure, err)
	}
	return p, nil
}

func (r *MongoRepository) List(ctx context.Context) ([]Product, error) {
	cur, err := r.products.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}

	products := []Product{}
	if err := cur.All(ctx, &products); err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	return products, nil
}

func (r *MongoRepository) Upsert(ctx context.Context, p Product) error {
	if err := p.validate(); err != nil {
		return err
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}

	_, err := r.products.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (r *MongoRepository) Count(ctx context.Context) (int, error) {
	n, err := r.products.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, errors.Join(ErrStoreFailure, err)
	}
	return int(n), nil
}
