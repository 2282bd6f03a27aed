package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/factura-ai/invoice-extractor/internal/common"
)

// User is a credential-store entry. Authentication is out of the pipeline's
// core; only this narrow lookup is consumed.
type User struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"size:200" json:"name"`
	Identifier string    `gorm:"uniqueIndex;size:320" json:"identifier"`
	Secret     string    `gorm:"size:200" json:"-"`
	Role       string    `gorm:"size:50" json:"role"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (User) TableName() string { return "users" }

// CheckSecret compares a plaintext secret against the stored bcrypt hash.
func (u *User) CheckSecret(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Secret), []byte(plain)) == nil
}

// UserStore is the credential-store collaborator interface.
type UserStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
}

type gormUserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) UserStore {
	return &gormUserStore{db: db}
}

func (s *gormUserStore) FindByIdentifier(ctx context.Context, identifier string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where("identifier = ?", identifier).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewNotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
