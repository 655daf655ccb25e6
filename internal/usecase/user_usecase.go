package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/qrave1/SyncRoom/internal/domain"
	"github.com/qrave1/SyncRoom/internal/domain/models"
	"github.com/qrave1/SyncRoom/internal/domain/output"
	"github.com/qrave1/SyncRoom/internal/infra/adapters/memory"
	"github.com/qrave1/SyncRoom/internal/infra/adapters/postgres/repository"
)

const jwtTTL = 72 * time.Hour

// UserUsecase определяет интерфейс для работы с пользователями
type UserUsecase interface {
	Authenticator

	// Создание пользователя
	CreateUser(ctx context.Context, username, password string) (*models.User, error)

	// Получение пользователей из БД
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// Аутентификация
	ValidateCredentials(ctx context.Context, username, password string) (*models.User, error)
	GenerateJWT(user *models.User) (string, error)
	ParseJWT(token string) (uuid.UUID, error)

	// Онлайн пользователи
	GetOnlineUsers(ctx context.Context) ([]output.OnlineUserInfo, error)
}

type userUsecase struct {
	jwtSecret []byte

	userRepo repository.UserRepository
	wsRepo   memory.WebsocketConnectionRepository
}

// NewUserUsecase создает новый экземпляр UserUsecase
func NewUserUsecase(
	jwtSecret []byte,
	userRepo repository.UserRepository,
	wsRepo memory.WebsocketConnectionRepository,
) UserUsecase {
	return &userUsecase{
		jwtSecret: jwtSecret,
		userRepo:  userRepo,
		wsRepo:    wsRepo,
	}
}

// CreateUser создает нового пользователя с хешированным паролем
func (uc *userUsecase) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	// Хешируем пароль
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.NewUser()
	user.Username = username
	user.Password = string(hashedPassword)

	if err = uc.userRepo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	// Убираем пароль из ответа
	user.Password = ""
	return user, nil
}

func (uc *userUsecase) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return uc.userRepo.GetUserByID(ctx, id)
}

// ValidateCredentials проверяет учетные данные пользователя
func (uc *userUsecase) ValidateCredentials(ctx context.Context, username, password string) (*models.User, error) {
	user, err := uc.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}

		return nil, err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	user.Password = ""
	return user, nil
}

// GenerateJWT генерирует JWT токен для пользователя
func (uc *userUsecase) GenerateJWT(user *models.User) (string, error) {
	claims := &jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(jwtTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(uc.jwtSecret)
}

// ParseJWT проверяет подпись и срок действия токена и возвращает id пользователя
func (uc *userUsecase) ParseJWT(token string) (uuid.UUID, error) {
	return ParseUserToken(token, uc.jwtSecret)
}

// Authenticate превращает credential подключения в пользователя
func (uc *userUsecase) Authenticate(ctx context.Context, credential string) (*models.User, error) {
	if credential == "" {
		return nil, domain.ErrUnauthenticated
	}

	userID, err := uc.ParseJWT(credential)
	if err != nil {
		return nil, err
	}

	user, err := uc.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthenticated
		}

		return nil, err
	}

	user.Password = ""
	return user, nil
}

// GetOnlineUsers получает список всех пользователей с открытым sync-соединением
func (uc *userUsecase) GetOnlineUsers(ctx context.Context) ([]output.OnlineUserInfo, error) {
	connectedUserIDs := uc.wsRepo.GetAllConnected()

	users, err := uc.userRepo.GetUsersByIDs(ctx, connectedUserIDs)
	if err != nil {
		return nil, err
	}

	result := make([]output.OnlineUserInfo, 0, len(users))

	for _, user := range users {
		result = append(result, output.OnlineUserInfo{
			ID:       user.ID.String(),
			Username: user.Username,
		})
	}

	return result, nil
}

// ParseUserToken - общий разбор auth токена для REST middleware и sync-шлюза
func ParseUserToken(token string, secret []byte) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(
		token,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return uuid.Nil, domain.ErrUnauthenticated
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid subject", domain.ErrUnauthenticated)
	}

	return userID, nil
}
