package middelware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gigbook-backend/models"
	"gigbook-backend/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// AuthMiddlewareTestSuite defines a test suite for auth middleware functions
type AuthMiddlewareTestSuite struct {
	suite.Suite
	config     *models.Config
	jwtManager *JWTManager
	router     *gin.Engine
}

func (suite *AuthMiddlewareTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.config = &models.Config{
		AppName:      "gigbook-test",
		JWTSecret:    "test-secret",
		JWTExpiresIn: time.Hour,
		CORSOrigins:  []string{"https://app.example.com", "*.gigbook.io"},
	}
	log := logger.NewLoggerWithOutput("error", "text", io.Discard)
	suite.jwtManager = NewJWTManager(suite.config, log)

	suite.router = gin.New()
	logging := NewLoggingMiddleware(log)
	suite.router.Use(logging.Recovery(), NewCORSMiddleware(suite.config).CORS())
	protected := suite.router.Group("/", suite.jwtManager.AuthMiddleware(), logging.StructuredLogger())
	protected.GET("/whoami", func(c *gin.Context) {
		actor, ok := models.ActorFromContext(c.Request.Context())
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, actor)
	})
	protected.GET("/panic", func(c *gin.Context) { panic("boom") })
	suite.router.POST("/auth/validate", suite.jwtManager.ValidateTokenEndpoint)
}

func (suite *AuthMiddlewareTestSuite) get(path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *AuthMiddlewareTestSuite) TestTokenCarriesActor() {
	token, err := suite.jwtManager.GenerateToken(models.Actor{TenantID: "tenant-1", UserID: "user-1"}, "a@b.c")
	require.NoError(suite.T(), err)

	w := suite.get("/whoami", "Bearer "+token)
	require.Equal(suite.T(), http.StatusOK, w.Code)

	var actor models.Actor
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &actor))
	assert.Equal(suite.T(), models.Actor{TenantID: "tenant-1", UserID: "user-1"}, actor)
}

func (suite *AuthMiddlewareTestSuite) TestRejectedHeaders() {
	cases := map[string]string{
		"missing":    "",
		"not bearer": "Basic abc",
		"empty":      "Bearer   ",
		"garbage":    "Bearer not-a-token",
	}
	for name, header := range cases {
		w := suite.get("/whoami", header)
		assert.Equal(suite.T(), http.StatusUnauthorized, w.Code, name)

		var resp models.APIResponse
		require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp), name)
		assert.Equal(suite.T(), "AuthenticationError", resp.Error.Type, name)
	}
}

func (suite *AuthMiddlewareTestSuite) TestGenerateTokenRequiresTenant() {
	_, err := suite.jwtManager.GenerateToken(models.Actor{UserID: "user-1"}, "")
	assert.Error(suite.T(), err)
}

func (suite *AuthMiddlewareTestSuite) TestExpiredAndForeignTokens() {
	expired := models.JWTClaims{
		UserID:   "user-1",
		TenantID: "tenant-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte(suite.config.JWTSecret))
	require.NoError(suite.T(), err)
	_, err = suite.jwtManager.ValidateToken(token)
	assert.Error(suite.T(), err)

	foreign := expired
	foreign.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Minute))
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, foreign).SignedString([]byte("other-secret"))
	require.NoError(suite.T(), err)
	_, err = suite.jwtManager.ValidateToken(token)
	assert.Error(suite.T(), err)

	noTenant := foreign
	noTenant.TenantID = ""
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, noTenant).SignedString([]byte(suite.config.JWTSecret))
	require.NoError(suite.T(), err)
	_, err = suite.jwtManager.ValidateToken(token)
	assert.EqualError(suite.T(), err, "token carries no tenant scope")
}

func (suite *AuthMiddlewareTestSuite) TestRevokedToken() {
	token, err := suite.jwtManager.GenerateToken(models.Actor{TenantID: "tenant-1", UserID: "user-1"}, "")
	require.NoError(suite.T(), err)
	claims, err := suite.jwtManager.ValidateToken(token)
	require.NoError(suite.T(), err)

	suite.jwtManager.RevokeToken(claims.ID, time.Now().Add(time.Hour))
	assert.Equal(suite.T(), http.StatusUnauthorized, suite.get("/whoami", "Bearer "+token).Code)

	suite.jwtManager.RevokeToken("stale", time.Now().Add(-time.Hour))
	suite.jwtManager.CleanupExpiredTokens()
	assert.Len(suite.T(), suite.jwtManager.BlacklistedTokens, 1)
}

func (suite *AuthMiddlewareTestSuite) TestValidateTokenEndpoint() {
	token, err := suite.jwtManager.GenerateToken(models.Actor{TenantID: "tenant-1", UserID: "user-1"}, "")
	require.NoError(suite.T(), err)

	body, _ := json.Marshal(TokenValidationRequest{Token: token})
	req := httptest.NewRequest(http.MethodPost, "/auth/validate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	require.Equal(suite.T(), http.StatusOK, w.Code)

	var resp models.APIResponse
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(suite.T(), "tenant-1", data["tenant_id"])

	req = httptest.NewRequest(http.MethodPost, "/auth/validate", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *AuthMiddlewareTestSuite) TestRecoveryReturnsEnvelope() {
	token, err := suite.jwtManager.GenerateToken(models.Actor{TenantID: "tenant-1", UserID: "user-1"}, "")
	require.NoError(suite.T(), err)

	w := suite.get("/panic", "Bearer "+token)
	assert.Equal(suite.T(), http.StatusInternalServerError, w.Code)
	var resp models.APIResponse
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(suite.T(), "InternalError", resp.Error.Type)
}

func (suite *AuthMiddlewareTestSuite) TestCORS() {
	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/whoami", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		suite.router.ServeHTTP(w, req)
		return w
	}

	w := preflight("https://app.example.com")
	assert.Equal(suite.T(), http.StatusNoContent, w.Code)
	assert.Equal(suite.T(), "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = preflight("https://eu.gigbook.io")
	assert.Equal(suite.T(), http.StatusNoContent, w.Code)

	w = preflight("https://evil.example.org")
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
	assert.Empty(suite.T(), w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthMiddlewareTestSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareTestSuite))
}
