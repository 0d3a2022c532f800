package study

import (
	"context"
	"errors"
	"time"

	"github.com/snmusic/snmusic/backend/go-services/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound     = errors.New("study material not found")
	ErrAccessDenied = errors.New("no active entitlement for material")
)

// Repository defines persistence operations for study materials
type Repository interface {
	Create(ctx context.Context, m *models.StudyMaterial) error
	Get(ctx context.Context, materialID string) (*models.StudyMaterial, error)
	GetMany(ctx context.Context, materialIDs []string) ([]models.StudyMaterial, error)
	List(ctx context.Context) ([]models.StudyMaterial, error)
	Update(ctx context.Context, materialID string, fields map[string]interface{}) (*models.StudyMaterial, error)
	Delete(ctx context.Context, materialID string) error
}

// MongoRepository implements Repository using MongoDB
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository creates the repository and ensures the unique
// materialId index.
func NewMongoRepository(ctx context.Context, col *mongo.Collection) (*MongoRepository, error) {
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "materialId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return &MongoRepository{col: col}, nil
}

func (r *MongoRepository) Create(ctx context.Context, m *models.StudyMaterial) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	_, err := r.col.InsertOne(ctx, m)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, materialID string) (*models.StudyMaterial, error) {
	var m models.StudyMaterial
	if err := r.col.FindOne(ctx, bson.M{"materialId": materialID}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// GetMany returns the materials whose ids are in materialIDs. Missing ids
// are skipped, not errors.
func (r *MongoRepository) GetMany(ctx context.Context, materialIDs []string) ([]models.StudyMaterial, error) {
	if len(materialIDs) == 0 {
		return []models.StudyMaterial{}, nil
	}
	cur, err := r.col.Find(ctx, bson.M{"materialId": bson.M{"$in": materialIDs}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.StudyMaterial
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) List(ctx context.Context) ([]models.StudyMaterial, error) {
	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.StudyMaterial
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) Update(ctx context.Context, materialID string, fields map[string]interface{}) (*models.StudyMaterial, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.StudyMaterial
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"materialId": materialID}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &updated, nil
}

func (r *MongoRepository) Delete(ctx context.Context, materialID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"materialId": materialID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
