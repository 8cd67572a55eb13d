package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/qs3c/coach_go_server/config"
	"github.com/qs3c/coach_go_server/internal/model/dto"
	"github.com/qs3c/coach_go_server/internal/pkg/oauth"
	"github.com/qs3c/coach_go_server/internal/pkg/response"
	"github.com/qs3c/coach_go_server/internal/repository"
	"github.com/qs3c/coach_go_server/internal/service"
	"github.com/qs3c/coach_go_server/internal/testutil"
)

type stubGithub struct {
	enabled bool
	user    *oauth.GithubUser
	err     error
}

func (g *stubGithub) Enabled() bool { return g.enabled }

func (g *stubGithub) GetAuthURL(state string) string {
	return "https://github.com/login/oauth/authorize?state=" + state
}

func (g *stubGithub) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &oauth2.Token{AccessToken: "gho_" + code}, nil
}

func (g *stubGithub) GetUser(_ context.Context, _ *oauth2.Token) (*oauth.GithubUser, error) {
	return g.user, nil
}

type authFixture struct {
	handler *AuthHandler
	github  *stubGithub
	states  *oauth.StateStore
	ctx     *testContext
}

func setupAuthHandler(t *testing.T, mode string) (*authFixture, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	userRepo := repository.NewUserRepository(db)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	states := oauth.NewStateStore(rdb)

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: mode},
		JWT: config.JWTConfig{
			Secret:      "test-secret-key",
			ExpireHours: 24,
		},
	}

	github := &stubGithub{
		enabled: true,
		user:    &oauth.GithubUser{ID: 9001, Login: "octo", Email: "octo@example.com", Name: "Octo Cat"},
	}
	authService := service.NewAuthService(userRepo, cfg, github, nil, nil)

	f := &authFixture{
		handler: NewAuthHandler(authService, states, "http://localhost:3000/oauth/done"),
		github:  github,
		states:  states,
		ctx:     &testContext{DB: db},
	}

	cleanup := func() {
		rdb.Close()
		testutil.CleanupTestDB(t, db)
	}

	return f, cleanup
}

func TestAuthHandler_Register_Success(t *testing.T) {
	f, cleanup := setupAuthHandler(t, "release")
	defer cleanup()

	router := gin.New()
	router.POST("/register", f.handler.Register)

	req := dto.RegisterRequest{
		Email:    "test@example.com",
		Username: "testuser",
		Password: "password123",
	}

	w := performRequest(router, "POST", "/register", req)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, true, dataMap(t, resp)["verification_required"])
}

func TestAuthHandler_Register_DuplicateEmail(t *testing.T) {
	f, cleanup := setupAuthHandler(t, "release")
	defer cleanup()

	router := gin.New()
	router.POST("/register", f.handler.Register)

	req := dto.RegisterRequest{
		Email:    "test@example.com",
		Username: "testuser1",
		Password: "password123",
	}

	w := performRequest(router, "POST", "/register", req)
	require.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

	req.Username = "testuser2"
	w = performRequest(router, "POST", "/register", req)
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeDuplicateAction, resp.Code)
}

func TestAuthHandler_Register_InvalidRequest(t *testing.T) {
	f, cleanup := setupAuthHandler(t, "release")
	defer cleanup()

	router := gin.New()
	router.POST("/register", f.handler.Register)

	w := performRequest(router, "POST", "/register", map[string]string{"email": "invalid-email"})
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestAuthHandler_Login_RequiresVerification(t *testing.T) {
	f, cleanup := setupAuthHandler(t, "release")
	defer cleanup()

	router := gin.New()
	router.POST("/register", f.handler.Register)
	router.POST("/login", f.handler.Login)

	w := performRequest(router, "POST", "/register", dto.RegisterRequest{
		Email:    "login@example.com",
		Username: "loginuser",
		Password: "password123",
	})
	require.Equal(t, response.CodeSuccess, parseResponse(t, w).Code)

	w = performRequest(router, "POST", "/login", dto.LoginRequest{
		Email:    "login@example.com",
		Password: "password123",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}

func TestAuthHandler_Login_DebugModeAutoVerified(t *testing.T) {
	f, cleanup := setupAuthHandler(t, "debug")
	defer cleanup()

	router := gin.New()
	router.POST("/register", f.handler.Register)
	router.POST("/login", f.handler.Login)

	performRequest(router, "POST", "/register", dto.RegisterRequest{
		Email:    "dev@example.com",
		Username: "devuser",
		Password: "password123",
	})

	w := performRequest(router, "POST", "/login", dto.LoginRequest{
		Email:    "dev@example.com",
		Password: "password123",
	})
	resp := parseResponse(t, w)

	require.Equal(t, response.CodeSuccess, resp.Code)
	data := dataMap(t, resp)
	assert.NotEmpty(t, data["token"])
	user := data["user"].(map[string]interface{})
	assert.Equal(t, "devuser", user["username"])
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	f, cleanup := setupAuthHandler(t, "release")
	defer cleanup()

	router := gin.New()
	router.POST("/login", f.handler.Login)

	w := performRequest(router, "POST", "/login", dto.LoginRequest{
		Email:    "nonexistent@example.com",
		Password: "wrongpassword",
	})
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}

func TestAuthHandler_VerifyEmail_InvalidCode(t *testing.T) {
	f, cleanup := setupAuthHandler(t, "release")
	defer cleanup()

	router := gin.New()
	router.POST("/verify-email", f.handler.VerifyEmail)

	w := performRequest(router, "POST", "/verify-email", dto.VerifyEmailRequest{Code: "invalid-code"})
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestAuthHandler_GithubAuth_Redirect(t *testing.T) {
	f, cleanup := setupAuthHandler(t, "release")
	defer cleanup()

	router := gin.New()
	router.GET("/github", f.handler.GithubAuth)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/github", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Len(t, loc.Query().Get("state"), 64)
}

func TestAuthHandler_GithubAuth_Disabled(t *testing.T) {
	f, cleanup := setupAuthHandler(t, "release")
	defer cleanup()

	f.github.enabled = false
	router := gin.New()
	router.GET("/github", f.handler.GithubAuth)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/github", nil))

	assert.Equal(t, response.CodeStateConflict, parseResponse(t, w).Code)
}

func TestAuthHandler_GithubCallback_MissingCode(t *testing.T) {
	f, cleanup := setupAuthHandler(t, "release")
	defer cleanup()

	router := gin.New()
	router.GET("/callback", f.handler.GithubCallback)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/callback", nil))

	resp := parseResponse(t, w)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestAuthHandler_GithubCallback_InvalidState(t *testing.T) {
	f, cleanup := setupAuthHandler(t, "release")
	defer cleanup()

	router := gin.New()
	router.GET("/callback", f.handler.GithubCallback)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/callback?code=abc&state=forged", nil))

	assert.Equal(t, response.CodeAuthFailed, parseResponse(t, w).Code)
}

func TestAuthHandler_GithubCallback_RedirectsWithToken(t *testing.T) {
	f, cleanup := setupAuthHandler(t, "release")
	defer cleanup()

	state, err := f.states.GenerateState(context.Background(), "http://localhost:3000/oauth/done")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/callback", f.handler.GithubCallback)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/callback?code=abc&state="+state, nil))

	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/oauth/done", loc.Path)
	assert.NotEmpty(t, loc.Query().Get("token"))

	// state 只能用一次
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/callback?code=abc&state="+state, nil))
	assert.Equal(t, response.CodeAuthFailed, parseResponse(t, w).Code)
}

func TestAuthHandler_GithubCallback_UpstreamFailure(t *testing.T) {
	f, cleanup := setupAuthHandler(t, "release")
	defer cleanup()

	f.github.err = errors.New("bad_verification_code")
	state, err := f.states.GenerateState(context.Background(), "")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/callback", f.handler.GithubCallback)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/callback?code=abc&state="+state, nil))

	assert.Equal(t, response.CodeUpstreamError, parseResponse(t, w).Code)
}
