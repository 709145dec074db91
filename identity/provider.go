package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pih12/Pravah/apperr"
	"github.com/pih12/Pravah/models"
)

const minPasswordLen = 6

// Subject is an authenticated identity.
type Subject struct {
	UID   string
	Email string
}

// Provider authenticates email/password credentials.
type Provider struct {
	accounts AccountStore
	now      func() time.Time
}

func NewProvider(accounts AccountStore) *Provider {
	return &Provider{accounts: accounts, now: time.Now}
}

func (p *Provider) Register(ctx context.Context, email, password string) (Subject, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return Subject{}, apperr.Auth(errors.New("invalid-email"))
	}
	if len(password) < minPasswordLen {
		return Subject{}, apperr.Auth(ErrWeakPassword)
	}

	account := models.Account{
		UID:       uuid.NewString(),
		Email:     email,
		Password:  password,
		CreatedAt: models.StoreTime(p.now()),
	}
	if err := account.HashPassword(); err != nil {
		return Subject{}, apperr.Internal(err)
	}
	if err := p.accounts.CreateAccount(ctx, &account); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return Subject{}, apperr.Auth(err)
		}
		return Subject{}, apperr.Internal(err)
	}
	return Subject{UID: account.UID, Email: account.Email}, nil
}

func (p *Provider) Login(ctx context.Context, email, password string) (Subject, error) {
	account, err := p.accounts.FindByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		return Subject{}, apperr.Auth(ErrInvalidCredentials)
	}
	if err != nil {
		return Subject{}, apperr.Internal(err)
	}
	if !account.ComparePassword(password) {
		return Subject{}, apperr.Auth(ErrInvalidCredentials)
	}
	return Subject{UID: account.UID, Email: account.Email}, nil
}
