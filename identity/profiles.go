package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pih12/Pravah/models"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileStore is the shared, durable profile collection keyed by uid.
type ProfileStore interface {
	GetProfile(ctx context.Context, uid string) (models.Profile, error)
	CreateProfile(ctx context.Context, profile models.Profile) error
	UpdateProfile(ctx context.Context, uid string, update models.ProfileUpdate) (models.Profile, error)
}

type MongoProfileStore struct {
	coll *mongo.Collection
}

func NewMongoProfileStore(db *mongo.Database) *MongoProfileStore {
	return &MongoProfileStore{coll: db.Collection("users")}
}

func (s *MongoProfileStore) GetProfile(ctx context.Context, uid string) (models.Profile, error) {
	var p models.Profile
	err := s.coll.FindOne(ctx, bson.M{"_id": uid}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return p, ErrProfileNotFound
	}
	if err != nil {
		return p, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}

func (s *MongoProfileStore) CreateProfile(ctx context.Context, profile models.Profile) error {
	if _, err := s.coll.InsertOne(ctx, profile); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// UpdateProfile only writes the self-service fields; role is left alone.
func (s *MongoProfileStore) UpdateProfile(ctx context.Context, uid string, update models.ProfileUpdate) (models.Profile, error) {
	var p models.Profile
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": uid}, bson.M{"$set": bson.M{
		"name":       update.Name,
		"district":   update.District,
		"publicName": update.PublicName,
	}}, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return p, ErrProfileNotFound
	}
	if err != nil {
		return p, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}

type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]models.Profile
}

func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string]models.Profile)}
}

func (s *MemoryProfileStore) GetProfile(_ context.Context, uid string) (models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[uid]
	if !ok {
		return models.Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func (s *MemoryProfileStore) CreateProfile(_ context.Context, profile models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.UID]; ok {
		return fmt.Errorf("profile %s already exists", profile.UID)
	}
	s.profiles[profile.UID] = profile
	return nil
}

func (s *MemoryProfileStore) UpdateProfile(_ context.Context, uid string, update models.ProfileUpdate) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[uid]
	if !ok {
		return models.Profile{}, ErrProfileNotFound
	}
	update.Apply(&p)
	s.profiles[uid] = p
	return p, nil
}
