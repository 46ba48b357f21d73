package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"account-server/internal/config"
	"account-server/internal/models"
	"account-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAuthService returns canned results per method.
type stubAuthService struct {
	registerUser    *models.User
	registerProfile *models.Profile
	registerErr     error
	registerInput   *service.RegisterInput

	loginUser   *models.User
	loginTokens *models.TokenDetails
	loginErr    error

	logoutErr error

	refreshTokens *models.TokenDetails
	refreshErr    error
	refreshSeen   string

	authUser *models.User
	authErr  error

	profile    *models.Profile
	profileErr error
}

func (s *stubAuthService) Register(_ context.Context, input service.RegisterInput) (*models.User, *models.Profile, error) {
	s.registerInput = &input
	return s.registerUser, s.registerProfile, s.registerErr
}

func (s *stubAuthService) Login(_ context.Context, _, _ string) (*models.User, *models.TokenDetails, error) {
	return s.loginUser, s.loginTokens, s.loginErr
}

func (s *stubAuthService) Logout(_ context.Context, _ uuid.UUID) error {
	return s.logoutErr
}

func (s *stubAuthService) Refresh(_ context.Context, refreshToken string) (*models.TokenDetails, error) {
	s.refreshSeen = refreshToken
	return s.refreshTokens, s.refreshErr
}

func (s *stubAuthService) Authenticate(_ context.Context, _ string) (*models.User, error) {
	return s.authUser, s.authErr
}

func (s *stubAuthService) GetProfile(_ context.Context, _ uuid.UUID) (*models.Profile, error) {
	return s.profile, s.profileErr
}

func testUser() *models.User {
	return &models.User{
		ID:       uuid.New(),
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice Example",
	}
}

func testTokens() *models.TokenDetails {
	return &models.TokenDetails{
		AccessToken:  "access-token-value",
		RefreshToken: "refresh-token-value",
		AtExpires:    time.Now().Add(15 * time.Minute).Unix(),
		RtExpires:    time.Now().Add(7 * 24 * time.Hour).Unix(),
	}
}

func newTestRouter(t *testing.T, svc service.AuthService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Env:             "test",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		UploadTempDir:   t.TempDir(),
	}
	h := NewAuthHandler(svc, cfg)
	router := gin.New()
	h.RegisterRoutes(router, nil)
	return router
}

func registerForm(overrides map[string]string) string {
	values := map[string]string{
		"fullName":        "Alice Example",
		"username":        "alice",
		"email":           "alice@example.com",
		"password":        "s3cretpass",
		"confirmPassword": "s3cretpass",
	}
	for k, v := range overrides {
		values[k] = v
	}
	var parts []string
	for k, v := range values {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	return strings.Join(parts, "&")
}

func postForm(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func postJSON(router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	return errResp
}

func TestRegisterEndpoint_Success(t *testing.T) {
	svc := &stubAuthService{registerUser: testUser(), registerProfile: &models.Profile{ID: uuid.New()}}
	router := newTestRouter(t, svc)

	w := postForm(router, "/api/v1/users/register", registerForm(nil))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp registerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.User.Username)
	assert.NotContains(t, w.Body.String(), "password", "response must not leak credentials")

	require.NotNil(t, svc.registerInput)
	assert.Equal(t, "s3cretpass", svc.registerInput.Password)
	assert.Empty(t, svc.registerInput.AvatarPath)
}

func TestRegisterEndpoint_ValidationFailures(t *testing.T) {
	cases := []struct {
		name      string
		overrides map[string]string
	}{
		{"short password", map[string]string{"password": "short", "confirmPassword": "short"}},
		{"password mismatch", map[string]string{"confirmPassword": "different1"}},
		{"short username", map[string]string{"username": "al"}},
		{"bad username chars", map[string]string{"username": "al%20ice"}},
		{"missing email", map[string]string{"email": ""}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubAuthService{}
			router := newTestRouter(t, svc)

			w := postForm(router, "/api/v1/users/register", registerForm(tc.overrides))

			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Nil(t, svc.registerInput, "service must not be called on validation failure")
		})
	}
}

func TestRegisterEndpoint_DuplicateUsername(t *testing.T) {
	svc := &stubAuthService{registerErr: models.ErrUserAlreadyExists}
	router := newTestRouter(t, svc)

	w := postForm(router, "/api/v1/users/register", registerForm(nil))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, models.ErrCodeDuplicateUser, decodeError(t, w).Code)
}

func TestLoginEndpoint_SetsCookies(t *testing.T) {
	svc := &stubAuthService{loginUser: testUser(), loginTokens: testTokens()}
	router := newTestRouter(t, svc)

	w := postJSON(router, "/api/v1/users/login", gin.H{"usernameOrEmail": "alice", "password": "s3cretpass"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "access-token-value", resp.AccessToken)
	assert.Equal(t, "refresh-token-value", resp.RefreshToken)

	cookies := w.Result().Cookies()
	byName := map[string]*http.Cookie{}
	for _, cookie := range cookies {
		byName[cookie.Name] = cookie
	}
	require.Contains(t, byName, accessTokenCookie)
	require.Contains(t, byName, refreshTokenCookie)
	assert.Equal(t, "access-token-value", byName[accessTokenCookie].Value)
	assert.Equal(t, "refresh-token-value", byName[refreshTokenCookie].Value)
	assert.True(t, byName[accessTokenCookie].HttpOnly)
	assert.True(t, byName[refreshTokenCookie].HttpOnly)
	assert.False(t, byName[refreshTokenCookie].Secure, "secure is off outside production")
}

func TestLoginEndpoint_WrongCredentials(t *testing.T) {
	svc := &stubAuthService{loginErr: models.ErrInvalidCredentials}
	router := newTestRouter(t, svc)

	w := postJSON(router, "/api/v1/users/login", gin.H{"usernameOrEmail": "alice", "password": "wrongpass"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	errResp := decodeError(t, w)
	assert.Equal(t, models.ErrCodeWrongCredentials, errResp.Code)
	assert.Equal(t, "Invalid credentials", errResp.Message)
	assert.Empty(t, w.Result().Cookies())
}

func TestLoginEndpoint_MissingBody(t *testing.T) {
	router := newTestRouter(t, &stubAuthService{})

	w := postJSON(router, "/api/v1/users/login", gin.H{"usernameOrEmail": "alice"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrCodeBadRequest, decodeError(t, w).Code)
}

func TestRefreshEndpoint_MissingToken(t *testing.T) {
	router := newTestRouter(t, &stubAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/tokenRefresh", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrCodeTokenInvalid, decodeError(t, w).Code)
}

func TestRefreshEndpoint_FromCookie(t *testing.T) {
	svc := &stubAuthService{refreshTokens: testTokens()}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/tokenRefresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: "old-refresh-token"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "old-refresh-token", svc.refreshSeen)

	var resp models.TokenDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "refresh-token-value", resp.RefreshToken)

	found := false
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == refreshTokenCookie {
			found = true
			assert.Equal(t, "refresh-token-value", cookie.Value)
		}
	}
	assert.True(t, found, "rotated refresh token must be set as cookie")
}

func TestRefreshEndpoint_FromBody(t *testing.T) {
	svc := &stubAuthService{refreshTokens: testTokens()}
	router := newTestRouter(t, svc)

	w := postJSON(router, "/api/v1/users/tokenRefresh", gin.H{"refreshToken": "body-refresh-token"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "body-refresh-token", svc.refreshSeen)
}

func TestRefreshEndpoint_SupersededToken(t *testing.T) {
	svc := &stubAuthService{refreshErr: models.ErrTokenMismatch}
	router := newTestRouter(t, svc)

	w := postJSON(router, "/api/v1/users/tokenRefresh", gin.H{"refreshToken": "stale-token"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrCodeTokenInvalid, decodeError(t, w).Code)
}

func TestRefreshEndpoint_ExpiredToken(t *testing.T) {
	svc := &stubAuthService{refreshErr: models.ErrTokenExpired}
	router := newTestRouter(t, svc)

	w := postJSON(router, "/api/v1/users/tokenRefresh", gin.H{"refreshToken": "expired-token"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrCodeTokenExpired, decodeError(t, w).Code)
}

func TestRefreshEndpoint_VanishedUser(t *testing.T) {
	svc := &stubAuthService{refreshErr: models.ErrUserNotFound}
	router := newTestRouter(t, svc)

	w := postJSON(router, "/api/v1/users/tokenRefresh", gin.H{"refreshToken": "orphan-token"})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ErrCodeUserNotFound, decodeError(t, w).Code)
}

func TestLogoutEndpoint_ClearsCookies(t *testing.T) {
	svc := &stubAuthService{authUser: testUser()}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: "access-token-value"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, cookie := range w.Result().Cookies() {
		assert.Empty(t, cookie.Value)
		assert.Negative(t, cookie.MaxAge)
	}
}

func TestLogoutEndpoint_RequiresAuth(t *testing.T) {
	router := newTestRouter(t, &stubAuthService{authErr: models.ErrTokenInvalid})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeEndpoint(t *testing.T) {
	user := testUser()
	avatarURL := "https://images.example.com/avatars/1"
	svc := &stubAuthService{
		authUser: user,
		profile:  &models.Profile{ID: uuid.New(), UserID: user.ID, AvatarURL: &avatarURL},
	}
	router := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer access-token-value")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp registerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, user.Username, resp.User.Username)
	require.NotNil(t, resp.Profile.AvatarURL)
	assert.Equal(t, avatarURL, *resp.Profile.AvatarURL)
}

func TestMiddleware_MissingToken(t *testing.T) {
	router := newTestRouter(t, &stubAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrCodeTokenInvalid, decodeError(t, w).Code)
}
