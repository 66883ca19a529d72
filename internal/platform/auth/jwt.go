package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はトークンの形式・署名・有効期限のいずれかが不正な場合に返されます。
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims は Bearer トークンのペイロードです。exp は必須です。
type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	Exp  int64  `json:"exp,omitempty"`
	Iat  int64  `json:"iat,omitempty"`
}

var _ jwt.Claims = Claims{}

// GetExpirationTime は jwt.Claims を満たします。
func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return unixDate(c.Exp), nil
}

func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return unixDate(c.Iat), nil
}

func (c Claims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

func (c Claims) GetIssuer() (string, error) {
	return "", nil
}

func (c Claims) GetSubject() (string, error) {
	return c.Sub, nil
}

func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}

func unixDate(sec int64) *jwt.NumericDate {
	if sec == 0 {
		return nil
	}
	return jwt.NewNumericDate(time.Unix(sec, 0))
}

// Verifier は HS256 で署名されたトークンを検証します。
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier は共有シークレットを使う Verifier を生成します。
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Sign は claims に署名したトークンを返します。
func (v *Verifier) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify はトークンを検証して claims を返します。
func (v *Verifier) Verify(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Sub == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
