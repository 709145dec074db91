package issues

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pih12/Pravah/models"
)

const CollectionName = "issues"

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(CollectionName)}
}

// EnsureIndexes creates the indexes List and ListByReporter sort on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamps.created", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "reporterId", Value: 1}, {Key: "timestamps.created", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create issue indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, issue *models.Issue) error {
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if _, err := s.coll.InsertOne(ctx, issue); err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (models.Issue, error) {
	var issue models.Issue
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return issue, ErrNotFound
	}
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&issue)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return issue, ErrNotFound
	}
	if err != nil {
		return issue, fmt.Errorf("find issue: %w", err)
	}
	return issue, nil
}

// Update sets only the fields present in update. It runs as a pipeline so the
// new updated timestamp can be computed server-side as max(now, previous+1ms).
func (s *MongoStore) Update(ctx context.Context, id string, update models.IssueUpdate) (models.Issue, error) {
	var issue models.Issue
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return issue, ErrNotFound
	}

	set := bson.D{}
	if update.AssignedAuthority != nil {
		set = append(set, bson.E{Key: "assignedAuthority", Value: literal(*update.AssignedAuthority)})
	}
	if update.Status != nil {
		set = append(set, bson.E{Key: "status", Value: literal(string(*update.Status))})
	}
	if update.AuthorityRemarks != nil {
		set = append(set, bson.E{Key: "authorityRemarks", Value: literal(*update.AuthorityRemarks)})
	}
	set = append(set, bson.E{Key: "timestamps.updated", Value: bson.D{{Key: "$max", Value: bson.A{
		"$$NOW",
		bson.D{{Key: "$add", Value: bson.A{"$timestamps.updated", 1}}},
	}}}})

	pipeline := mongo.Pipeline{{{Key: "$set", Value: set}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, pipeline, opts).Decode(&issue)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return issue, ErrNotFound
	}
	if err != nil {
		return issue, fmt.Errorf("update issue: %w", err)
	}
	return issue, nil
}

// literal keeps user text such as "$status" from being read as a field path.
func literal(v interface{}) bson.D {
	return bson.D{{Key: "$literal", Value: v}}
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context) ([]models.Issue, error) {
	return s.find(ctx, bson.M{})
}

func (s *MongoStore) ListByReporter(ctx context.Context, reporterID string) ([]models.Issue, error) {
	return s.find(ctx, bson.M{"reporterId": reporterID})
}

func (s *MongoStore) find(ctx context.Context, filter bson.M) ([]models.Issue, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamps.created", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer cursor.Close(ctx)

	list := []models.Issue{}
	if err := cursor.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	return list, nil
}
