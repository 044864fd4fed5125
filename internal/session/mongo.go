package session

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// SessionsCollection is the default MongoDB collection name.
const SessionsCollection = "sessions"

// MongoStore keeps sessions as documents keyed by session id.
type MongoStore struct {
	sessions *mongo.Collection
}

// NewMongoStore creates a MongoStore on db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{sessions: db.Collection(SessionsCollection)}
}

// EnsureIndexes creates the secondary indexes the store queries by.
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := m.sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (m *MongoStore) Get(ctx context.Context, id string) (*Session, error) {
	var s Session
	if err := m.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrStoreFailure, err)
	}

	if s.History == nil {
		s.History = []Message{}
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	return &s, nil
}

// Save upserts the record in two steps: every field except the status group
// is written unconditionally, then the status group is written only while
// the stored status is still active or already equal to the incoming one.
func (m *MongoStore) Save(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return ErrInvalidID
	}

	update := bson.M{
		"$set": bson.M{
			"user_id":    s.UserID,
			"history":    nonNil(s.History),
			"intent":     s.Intent,
			"tags":       nonNil(s.Tags),
			"qr_code":    s.QRCode,
			"qr_expiry":  s.QRExpiry,
			"updated_at": s.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"status":         s.Status,
			"kiosk_id":       s.KioskID,
			"transferred_at": s.TransferredAt,
			"created_at":     s.CreatedAt,
		},
	}
	res, err := m.sessions.UpdateOne(ctx, bson.M{"_id": s.ID}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	if res.UpsertedCount > 0 || s.Status == StatusActive {
		return nil
	}

	filter := bson.M{
		"_id":    s.ID,
		"status": bson.M{"$in": bson.A{StatusActive, s.Status}},
	}
	status := bson.M{"$set": bson.M{
		"status":         s.Status,
		"kiosk_id":       s.KioskID,
		"transferred_at": s.TransferredAt,
	}}
	if _, err := m.sessions.UpdateOne(ctx, filter, status); err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := m.sessions.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
