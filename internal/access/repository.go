package access

import (
	"context"
	"time"

	"github.com/snmusic/snmusic/backend/go-services/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository defines the persistence operations the access workflow needs.
// Read operations return (nil, nil) when the document is missing. The three
// Commit operations are composite mutations: each must apply all of its
// writes atomically or none of them.
type Repository interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetMaterial(ctx context.Context, materialID string) (*models.StudyMaterial, error)
	GetPendingRequest(ctx context.Context, requestID string) (*models.PendingRequest, error)
	FindPendingRequest(ctx context.Context, userID, materialID string) (*models.PendingRequest, error)
	ListPendingRequests(ctx context.Context) ([]models.PendingRequest, error)

	// CommitGrant appends an approved entitlement and an alert to the user
	// (public-material fast path; no pending request is written).
	CommitGrant(ctx context.Context, userID string, ent models.Entitlement, alert models.Alert) error
	// CommitRequest appends a pending entitlement and an alert to the user
	// and creates the pending-request document, all in one batch.
	CommitRequest(ctx context.Context, userID string, ent models.Entitlement, alert models.Alert, req *models.PendingRequest) error
	// CommitResolution replaces the user's entitlement list, appends an
	// alert, and deletes the pending request, all in one batch.
	CommitResolution(ctx context.Context, userID string, entitlements []models.Entitlement, alert models.Alert, requestID string) error
}

// MongoRepository implements Repository using MongoDB. The pending-request
// "sub-collection" is a notifications collection scoped by adminId; a unique
// index on (userId, materialId) backstops the dedup check against concurrent
// requests for the same pair.
type MongoRepository struct {
	client        *mongo.Client
	users         *mongo.Collection
	study         *mongo.Collection
	notifications *mongo.Collection
	adminID       string
}

func NewMongoRepository(client *mongo.Client, db *mongo.Database, adminID string) *MongoRepository {
	users := db.Collection("users")
	study := db.Collection("study")
	notifications := db.Collection("notifications")

	ctx := context.Background()
	users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	study.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "materialId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	notifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "requestId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	notifications.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "materialId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &MongoRepository{
		client:        client,
		users:         users,
		study:         study,
		notifications: notifications,
		adminID:       adminID,
	}
}

func (r *MongoRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := r.users.FindOne(ctx, bson.M{"userId": userID}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoRepository) GetMaterial(ctx context.Context, materialID string) (*models.StudyMaterial, error) {
	var m models.StudyMaterial
	if err := r.study.FindOne(ctx, bson.M{"materialId": materialID}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *MongoRepository) GetPendingRequest(ctx context.Context, requestID string) (*models.PendingRequest, error) {
	var p models.PendingRequest
	filter := bson.M{"adminId": r.adminID, "requestId": requestID}
	if err := r.notifications.FindOne(ctx, filter).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *MongoRepository) FindPendingRequest(ctx context.Context, userID, materialID string) (*models.PendingRequest, error) {
	var p models.PendingRequest
	filter := bson.M{"adminId": r.adminID, "userId": userID, "materialId": materialID}
	if err := r.notifications.FindOne(ctx, filter).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *MongoRepository) ListPendingRequests(ctx context.Context) ([]models.PendingRequest, error) {
	cur, err := r.notifications.Find(ctx, bson.M{"adminId": r.adminID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.PendingRequest{}
	for cur.Next(ctx) {
		var p models.PendingRequest
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, cur.Err()
}

func (r *MongoRepository) CommitGrant(ctx context.Context, userID string, ent models.Entitlement, alert models.Alert) error {
	return r.withTxn(ctx, "grant", func(sc mongo.SessionContext) error {
		return r.appendUserState(sc, userID, ent, alert)
	})
}

func (r *MongoRepository) CommitRequest(ctx context.Context, userID string, ent models.Entitlement, alert models.Alert, req *models.PendingRequest) error {
	req.AdminID = r.adminID
	return r.withTxn(ctx, "request", func(sc mongo.SessionContext) error {
		if err := r.appendUserState(sc, userID, ent, alert); err != nil {
			return err
		}
		_, err := r.notifications.InsertOne(sc, req)
		return err
	})
}

func (r *MongoRepository) CommitResolution(ctx context.Context, userID string, entitlements []models.Entitlement, alert models.Alert, requestID string) error {
	return r.withTxn(ctx, "resolution", func(sc mongo.SessionContext) error {
		update := bson.M{
			"$set":      bson.M{"myEntitlements": entitlements, "updatedAt": time.Now().UTC()},
			"$addToSet": bson.M{"alerts": alert},
		}
		res, err := r.users.UpdateOne(sc, bson.M{"userId": userID}, update)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return ErrUserNotFound
		}
		del, err := r.notifications.DeleteOne(sc, bson.M{"adminId": r.adminID, "requestId": requestID})
		if err != nil {
			return err
		}
		if del.DeletedCount == 0 {
			return ErrRequestNotFound
		}
		return nil
	})
}

// appendUserState union-appends the entitlement and the alert onto the user
// document inside the current transaction.
func (r *MongoRepository) appendUserState(sc mongo.SessionContext, userID string, ent models.Entitlement, alert models.Alert) error {
	update := bson.M{
		"$addToSet": bson.M{"myEntitlements": ent, "alerts": alert},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := r.users.UpdateOne(sc, bson.M{"userId": userID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// withTxn runs fn inside a MongoDB transaction so the enclosed writes land
// all-or-nothing. Validation sentinels pass through untouched; a duplicate
// key on the pending unique index means a concurrent request won the race;
// anything else is a commit failure with state guaranteed unchanged.
func (r *MongoRepository) withTxn(ctx context.Context, op string, fn func(sc mongo.SessionContext) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		return &BatchError{Op: op, Err: err}
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil {
		switch {
		case isValidationErr(err):
			return err
		case mongo.IsDuplicateKeyError(err):
			return ErrDuplicateRequest
		default:
			return &BatchError{Op: op, Err: err}
		}
	}
	return nil
}

func isValidationErr(err error) bool {
	return err == ErrUserNotFound || err == ErrRequestNotFound
}
