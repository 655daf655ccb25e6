package usecase

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/qrave1/SyncRoom/internal/domain"
	"github.com/qrave1/SyncRoom/internal/domain/output"
)

type MediaGrant string

const (
	GrantPublish MediaGrant = "publish"
	GrantView    MediaGrant = "view"
)

// MediaClaims - токен, который медиа-сервер принимает для доступа к потоку комнаты
type MediaClaims struct {
	RoomID   string     `json:"room_id"`
	Username string     `json:"username"`
	Grant    MediaGrant `json:"grant"`

	jwt.RegisteredClaims
}

// MediaTokenIssuer выдает короткоживущие токены медиа-сервера
type MediaTokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewMediaTokenIssuer(secret, issuer string, ttl time.Duration) *MediaTokenIssuer {
	return &MediaTokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (i *MediaTokenIssuer) Issue(userID uuid.UUID, username string, roomID uuid.UUID, grant MediaGrant) (*output.MediaToken, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := &MediaClaims{
		RoomID:   roomID.String(),
		Username: username,
		Grant:    grant,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{roomID.String()},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("sign media token: %w", err)
	}

	return &output.MediaToken{Token: token, ExpiresAt: expiresAt.Unix()}, nil
}

// Parse проверяет токен так же, как это сделает медиа-сервер
func (i *MediaTokenIssuer) Parse(token string) (*MediaClaims, error) {
	claims := &MediaClaims{}

	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}

	return claims, nil
}
