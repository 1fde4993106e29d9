package middelware

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"gigbook-backend/models"
	"gigbook-backend/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Context keys set by AuthMiddleware
const (
	ContextUserID    = "user_id"
	ContextTenantID  = "tenant_id"
	ContextJWTClaims = "jwt_claims"
)

// JWTManager handles JWT token operations
type JWTManager struct {
	Config            *models.Config
	Logger            logger.Logger
	BlacklistedTokens map[string]time.Time // token id -> expiry, for immediate revocation
	TokenMutex        sync.RWMutex
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(cfg *models.Config, log logger.Logger) *JWTManager {
	return &JWTManager{
		Config:            cfg,
		Logger:            log,
		BlacklistedTokens: make(map[string]time.Time),
	}
}

// GenerateToken signs a token scoping its bearer to actor's tenant
func (j *JWTManager) GenerateToken(actor models.Actor, email string) (string, error) {
	if actor.TenantID == "" || actor.UserID == "" {
		return "", fmt.Errorf("tenant and user are required")
	}
	now := time.Now()
	claims := models.JWTClaims{
		UserID:   actor.UserID,
		TenantID: actor.TenantID,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   actor.UserID,
			Issuer:    j.Config.AppName,
			Audience:  jwt.ClaimStrings{j.Config.AppName},
			ExpiresAt: jwt.NewNumericDate(now.Add(j.Config.JWTExpiresIn)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(j.Config.JWTSecret))
	if err != nil {
		j.Logger.Errorf("Failed to sign JWT token: %v", err)
		return "", err
	}

	j.Logger.Debugf("Generated JWT token for user %s in tenant %s", actor.UserID, actor.TenantID)
	return tokenString, nil
}

// ValidateToken validates a JWT token and returns its claims
func (j *JWTManager) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Reject anything but HS256 to prevent algorithm confusion
		if method, ok := token.Method.(*jwt.SigningMethodHMAC); !ok || method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.Config.JWTSecret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		j.Logger.Debugf("Failed to parse JWT token: %v", err)
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims")
	}
	if claims.UserID == "" || claims.TenantID == "" {
		return nil, fmt.Errorf("token carries no tenant scope")
	}

	j.TokenMutex.RLock()
	expiry, revoked := j.BlacklistedTokens[claims.ID]
	j.TokenMutex.RUnlock()
	if revoked && expiry.After(time.Now()) {
		return nil, fmt.Errorf("token has been revoked")
	}
	return claims, nil
}

// RevokeToken blacklists a token id until expiry
func (j *JWTManager) RevokeToken(tokenID string, expiry time.Time) {
	j.TokenMutex.Lock()
	defer j.TokenMutex.Unlock()
	j.BlacklistedTokens[tokenID] = expiry
	j.Logger.Debugf("Revoked token %s", tokenID)
}

// CleanupExpiredTokens removes expired tokens from blacklist
func (j *JWTManager) CleanupExpiredTokens() {
	j.TokenMutex.Lock()
	defer j.TokenMutex.Unlock()

	now := time.Now()
	for tokenID, expiry := range j.BlacklistedTokens {
		if expiry.Before(now) {
			delete(j.BlacklistedTokens, tokenID)
		}
	}
}

func unauthorized(c *gin.Context, message, details string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse(http.StatusUnauthorized, message, &models.APIError{
		Type:    "AuthenticationError",
		Details: details,
	}))
}

// AuthMiddleware validates the bearer token and attaches its actor to the request context
func (j *JWTManager) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Missing Authorization header", "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			unauthorized(c, "Invalid Authorization header format", "Authorization header must be in format: Bearer <token>")
			return
		}

		claims, err := j.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			j.Logger.Warnf("Token validation failed: %v", err)
			unauthorized(c, "Invalid or expired token", err.Error())
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextTenantID, claims.TenantID)
		c.Set(ContextJWTClaims, claims)
		c.Request = c.Request.WithContext(models.WithActor(c.Request.Context(), models.Actor{
			TenantID: claims.TenantID,
			UserID:   claims.UserID,
		}))
		c.Next()
	}
}

// TokenValidationRequest represents the request body for token validation
type TokenValidationRequest struct {
	Token string `json:"token" binding:"required"`
}

// ValidateTokenEndpoint reports the scope of a token
func (j *JWTManager) ValidateTokenEndpoint(c *gin.Context) {
	var req TokenValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse(http.StatusBadRequest, "Invalid request body", &models.APIError{
			Type:    "ValidationError",
			Details: "Token is required in request body",
		}))
		return
	}

	claims, err := j.ValidateToken(strings.TrimSpace(req.Token))
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse(http.StatusUnauthorized, "Invalid or expired token", &models.APIError{
			Type:    "AuthenticationError",
			Details: err.Error(),
		}))
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse(http.StatusOK, "Token is valid", map[string]interface{}{
		"valid":      true,
		"user_id":    claims.UserID,
		"tenant_id":  claims.TenantID,
		"email":      claims.Email,
		"expires_at": claims.ExpiresAt,
		"issued_at":  claims.IssuedAt,
	}))
}
