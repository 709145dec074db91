package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pih12/Pravah/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email-already-in-use")
	ErrWeakPassword       = errors.New("weak-password: password should be at least 6 characters")
	ErrAccountNotFound    = errors.New("account not found")
)

// AccountStore holds credentials. It is separate from ProfileStore so an
// account can exist while its profile write failed.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	FindByEmail(ctx context.Context, email string) (models.Account, error)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type MongoAccountStore struct {
	coll *mongo.Collection
}

func NewMongoAccountStore(db *mongo.Database) *MongoAccountStore {
	return &MongoAccountStore{coll: db.Collection("accounts")}
}

func (s *MongoAccountStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create account indexes: %w", err)
	}
	return nil
}

func (s *MongoAccountStore) CreateAccount(ctx context.Context, account *models.Account) error {
	if _, err := s.coll.InsertOne(ctx, account); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *MongoAccountStore) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	var account models.Account
	err := s.coll.FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return account, ErrAccountNotFound
	}
	if err != nil {
		return account, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

type MemoryAccountStore struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
}

func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{accounts: make(map[string]models.Account)}
}

func (s *MemoryAccountStore) CreateAccount(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeEmail(account.Email)
	if _, ok := s.accounts[key]; ok {
		return ErrEmailTaken
	}
	s.accounts[key] = *account
	return nil
}

func (s *MemoryAccountStore) FindByEmail(_ context.Context, email string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[normalizeEmail(email)]
	if !ok {
		return models.Account{}, ErrAccountNotFound
	}
	return account, nil
}
