package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User はアカウント情報です。PasswordHash は JSON に出しません。
type User struct {
	ID           uuid.UUID `gorm:"type:text;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName  string    `json:"displayName,omitempty"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// BeforeCreate は ID 未設定のレコードに UUID を採番します。
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

var errDuplicateEmail = errors.New("email already registered")

// UserStore は gorm 経由でアカウントを保存します。
type UserStore struct {
	db *gorm.DB
}

// OpenUserStore は SQLite ファイルを開き、テーブルを用意します。
func OpenUserStore(path string) (*UserStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open users db: %w", err)
	}
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("failed to migrate users db: %w", err)
	}
	return &UserStore{db: db}, nil
}

// Close は DB 接続を閉じます。
func (s *UserStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create はアカウントを登録します。メールアドレスが既に使われていれば errDuplicateEmail を返します。
func (s *UserStore) Create(ctx context.Context, user *User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errDuplicateEmail
		}
		if err := tx.Create(user).Error; err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique") {
				return errDuplicateEmail
			}
			return err
		}
		return nil
	})
}

// FindByEmail はメールアドレスからアカウントを探します。見つからなければ nil を返します。
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID は ID からアカウントを探します。見つからなければ nil を返します。
func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
