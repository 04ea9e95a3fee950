package identity

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Account is a customer who registered with email and password.
type Account struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex:idx_accounts_email"`
	Name         string
	PasswordHash string
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Account) TableName() string { return "accounts" }

// AccountRepository persists accounts.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository binds the repository to db.
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts the account.
func (r *AccountRepository) Create(ctx context.Context, account *Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// FindByEmail returns gorm.ErrRecordNotFound when no account uses email.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	var account Account
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByID loads an account by id.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	var account Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateLastLogin stamps last_login_at.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// UpdatePasswordHash replaces the stored hash, used when hashing parameters change.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ?", id).
		UpdateColumn("password_hash", hash).Error
}
