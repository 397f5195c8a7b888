package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// idClaims は IDトークンのクレームです。sub にはユーザーIDが入ります。
type idClaims struct {
	Email     string `json:"email"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenIssuer は非ブラウザクライアント向けの HS256 IDトークンを発行・検証します。
type TokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer は TokenIssuer を作成します。
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{
		key:    []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue はセッションに紐づく IDトークンを発行します。
func (t *TokenIssuer) Issue(sess Session) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims := idClaims{
		Email:     sess.Email,
		SessionID: sess.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.UserID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign id token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify はトークンを検証し、対応するセッション情報を返します。
func (t *TokenIssuer) Verify(raw string) (Session, error) {
	token, err := jwt.ParseWithClaims(raw, &idClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.key, nil
	},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Session{}, err
	}
	claims, ok := token.Claims.(*idClaims)
	if !ok || !token.Valid {
		return Session{}, errors.New("invalid token claims")
	}
	if _, err := parseUserID(claims.Subject); err != nil {
		return Session{}, fmt.Errorf("invalid subject: %w", err)
	}
	if claims.SessionID == "" {
		return Session{}, errors.New("missing session id")
	}
	return Session{
		ID:     claims.SessionID,
		UserID: claims.Subject,
		Email:  claims.Email,
	}, nil
}

func parseUserID(id string) (uuid.UUID, error) {
	return uuid.Parse(id)
}
