package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// SignupInput はサインアップフォームの内容です。
type SignupInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	DisplayName     string
}

// Gateway はアカウントの登録と資格情報の検証を行います。
// HTTP やセッションには依存しません。
type Gateway struct {
	users             *UserStore
	minPasswordLength int
	hashCost          int
	now               func() time.Time
}

// NewGateway は Gateway を作成します。
func NewGateway(users *UserStore, minPasswordLength int) *Gateway {
	if minPasswordLength < 1 {
		minPasswordLength = 1
	}
	return &Gateway{
		users:             users,
		minPasswordLength: minPasswordLength,
		hashCost:          bcrypt.DefaultCost,
		now:               time.Now,
	}
}

// Signup はアカウントを作成します。ポリシー違反は *Error で返します。
func (g *Gateway) Signup(ctx context.Context, in SignupInput) (*User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if in.Password != in.ConfirmPassword {
		return nil, newError(CodePasswordMismatch, "パスワードが一致しません", nil)
	}
	if len([]rune(in.Password)) < g.minPasswordLength {
		return nil, newError(CodeWeakPassword, fmt.Sprintf("パスワードは%d文字以上で入力してください", g.minPasswordLength), nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), g.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, newError(CodeWeakPassword, "パスワードが長すぎます", err)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Email:        email,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		PasswordHash: string(hash),
		CreatedAt:    g.now().UTC(),
	}
	if err := g.users.Create(ctx, user); err != nil {
		if errors.Is(err, errDuplicateEmail) {
			return nil, newError(CodeEmailInUse, "このメールアドレスは既に登録されています", err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login はメールアドレスとパスワードを検証します。
// 未登録とパスワード違いは区別せず INVALID_CREDENTIALS を返します。
func (g *Gateway) Login(ctx context.Context, email, password string) (*User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, newError(CodeInvalidCredentials, "メールアドレスまたはパスワードが正しくありません", nil)
	}
	user, err := g.users.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, newError(CodeInvalidCredentials, "メールアドレスまたはパスワードが正しくありません", nil)
	}
	return user, nil
}

// Lookup はセッションに保存された ID からアカウントを取得します。
func (g *Gateway) Lookup(ctx context.Context, id string) (*User, error) {
	uid, err := parseUserID(id)
	if err != nil {
		return nil, nil
	}
	return g.users.FindByID(ctx, uid)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", newError(CodeInvalidEmail, "メールアドレスを入力してください", nil)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", newError(CodeInvalidEmail, "メールアドレスの形式が正しくありません", err)
	}
	return email, nil
}
