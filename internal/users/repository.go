package users

import (
	"context"
	"time"

	"github.com/snmusic/snmusic/backend/go-services/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository defines persistence operations for users
type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, userID string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateProfile(ctx context.Context, userID string, fields map[string]interface{}) (*models.User, error)
	SetPassword(ctx context.Context, userID, hash string) error
	SetVerified(ctx context.Context, userID string, verified bool) error
	// ReplaceEntitlements rewrites the embedded list and appends an alert in
	// one update. Used by the expiry sweeper.
	ReplaceEntitlements(ctx context.Context, userID string, entitlements []models.Entitlement, alert *models.Alert) error
}

// MongoUserRepository implements UserRepository using MongoDB
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a new repository for the given collection
// and ensures the unique indexes on userId and email.
func NewMongoUserRepository(ctx context.Context, col *mongo.Collection) (*MongoUserRepository, error) {
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return nil, err
	}
	return &MongoUserRepository{col: col}, nil
}

func (r *MongoUserRepository) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.MyEntitlements == nil {
		u.MyEntitlements = []models.Entitlement{}
	}
	if u.Alerts == nil {
		u.Alerts = []models.Alert{}
	}
	_, err := r.col.InsertOne(ctx, u)
	return err
}

func (r *MongoUserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"userId": userID}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoUserRepository) List(ctx context.Context) ([]models.User, error) {
	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoUserRepository) UpdateProfile(ctx context.Context, userID string, fields map[string]interface{}) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.User
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"userId": userID}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &updated, nil
}

func (r *MongoUserRepository) SetPassword(ctx context.Context, userID, hash string) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"userId": userID},
		bson.M{"$set": bson.M{"password": hash, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) SetVerified(ctx context.Context, userID string, verified bool) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"userId": userID},
		bson.M{"$set": bson.M{"verified": verified, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) ReplaceEntitlements(ctx context.Context, userID string, entitlements []models.Entitlement, alert *models.Alert) error {
	update := bson.M{"$set": bson.M{
		"myEntitlements": entitlements,
		"updatedAt":      time.Now().UTC(),
	}}
	if alert != nil {
		update["$push"] = bson.M{"alerts": *alert}
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"userId": userID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
