package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/SyncRoom/internal/application/config"
	"github.com/qrave1/SyncRoom/internal/application/constant"
	"github.com/qrave1/SyncRoom/internal/domain"
	"github.com/qrave1/SyncRoom/internal/infra/appctx"
	"github.com/qrave1/SyncRoom/internal/infra/ports/http/dto"
	"github.com/qrave1/SyncRoom/internal/infra/ports/http/middleware"
	"github.com/qrave1/SyncRoom/internal/usecase"
)

const cookieTTL = 72 * time.Hour

type AuthHandler struct {
	cfg         *config.Config
	userUsecase usecase.UserUsecase
}

func NewAuthHandler(cfg *config.Config, userUsecase usecase.UserUsecase) *AuthHandler {
	return &AuthHandler{
		cfg:         cfg,
		userUsecase: userUsecase,
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	user, err := h.userUsecase.CreateUser(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		}

		return errorJSON(c, err, "could not create user")
	}

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	user, err := h.userUsecase.ValidateCredentials(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		slog.Warn("validate credentials failed", slog.String(constant.UserName, req.Username), slog.Any(constant.Error, err))
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}

	token, err := h.userUsecase.GenerateJWT(user)
	if err != nil {
		slog.Error("generate JWT failed", slog.Any(constant.Error, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not create token"})
	}

	c.SetCookie(h.cookie(token, time.Now().Add(cookieTTL)))

	return c.NoContent(http.StatusOK)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.cookie("", time.Unix(0, 0)))

	return c.NoContent(http.StatusOK)
}

func (h *AuthHandler) GetMe(c echo.Context) error {
	userID, ok := appctx.UserID(c.Request().Context())
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user ID in context"})
	}

	user, err := h.userUsecase.GetUserByID(c.Request().Context(), userID)
	if err != nil {
		return errorJSON(c, err, "could not get user")
	}

	resp := dto.GetMeResponse{
		ID:       user.ID,
		Username: user.Username,
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) GetOnlineUsers(c echo.Context) error {
	onlineUsers, err := h.userUsecase.GetOnlineUsers(c.Request().Context())
	if err != nil {
		slog.Error("get online users failed", slog.Any(constant.Error, err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not get online users"})
	}

	return c.JSON(http.StatusOK, onlineUsers)
}

func (h *AuthHandler) cookie(value string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     middleware.JWTCookie,
		Value:    value,
		Expires:  expires,
		Domain:   middleware.BuildCookieDomain(h.cfg.Domain),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	if !h.cfg.Debug {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
	}

	return cookie
}
