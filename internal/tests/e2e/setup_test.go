package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/you/projectsvc/domain"
	"github.com/you/projectsvc/internal/app"
	"github.com/you/projectsvc/internal/config"
	"github.com/you/projectsvc/internal/infrastructure/database"
)

const (
	chromeMacUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	iphoneUA    = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
)

// TestSuite runs the real container behind an httptest server, backed by an
// in-memory SQLite database and miniredis
type TestSuite struct {
	Container *app.Container
	Redis     *miniredis.Miniredis
	Server    *httptest.Server
	t         *testing.T
}

// loadTestConfig reads the shipped config files with test overrides
func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()

	t.Setenv("PROJECTSVC_JWT_SECRET", "e2e-secret")
	t.Setenv("PROJECTSVC_BCRYPT_COST", "4")
	t.Setenv("PROJECTSVC_CASBIN_MODEL_PATH", "../../../config/rbac_model.conf")
	t.Setenv("PROJECTSVC_CASBIN_POLICY_PATH", "../../../config/policies.yml")

	cfg, err := config.LoadFrom("../../../config/config.yml")
	require.NoError(t, err)
	return cfg
}

// SetupTestSuite builds the full service graph for one test
func SetupTestSuite(t *testing.T) *TestSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := loadTestConfig(t)

	db, err := database.Configure(gorm.Open(sqlite.Open(":memory:"), database.Config()))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every new connection to :memory: would see an empty database
	sqlDB.SetMaxOpenConns(1)

	mr := miniredis.RunT(t)
	rdb, err := database.NewRedis(context.Background(), mr.Addr(), "", 0, time.Second)
	require.NoError(t, err)

	c, err := app.Build(cfg, db, rdb, zaptest.NewLogger(t))
	require.NoError(t, err)

	srv := httptest.NewServer(c.Router())
	t.Cleanup(func() {
		srv.Close()
		_ = c.Close()
	})

	return &TestSuite{Container: c, Redis: mr, Server: srv, t: t}
}

// CreateUser stores an account directly through the user service
func (s *TestSuite) CreateUser(email, password, role string) *domain.User {
	s.t.Helper()
	u, err := s.Container.UserSvc.Register(context.Background(), domain.RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
	})
	require.NoError(s.t, err)
	return u
}

// Request describes one call against the test server
type Request struct {
	Method    string
	Path      string
	Body      interface{}
	Token     string
	SessionID string
	UserAgent string
	Forwarded string
}

// Response is a decoded API response
type Response struct {
	Status  int
	Header  http.Header
	Body    map[string]interface{}
	RawBody string
}

// Data returns the "data" object of a successful response
func (r *Response) Data() map[string]interface{} {
	data, _ := r.Body["data"].(map[string]interface{})
	return data
}

// Do performs a request and decodes JSON object bodies
func (s *TestSuite) Do(req Request) *Response {
	s.t.Helper()

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		require.NoError(s.t, err)
		body = bytes.NewReader(raw)
	}
	httpReq, err := http.NewRequest(req.Method, s.Server.URL+req.Path, body)
	require.NoError(s.t, err)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	if req.SessionID != "" {
		httpReq.Header.Set("X-Session-ID", req.SessionID)
	}
	if req.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.UserAgent)
	}
	if req.Forwarded != "" {
		httpReq.Header.Set("X-Forwarded-For", req.Forwarded)
	}

	resp, err := s.Server.Client().Do(httpReq)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)

	out := &Response{Status: resp.StatusCode, Header: resp.Header, RawBody: string(raw)}
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		require.NoError(s.t, json.Unmarshal(raw, &out.Body))
	}
	return out
}

// Login signs in and returns the access token, refresh token and session id
func (s *TestSuite) Login(email, password, userAgent, forwarded string) (string, string, string) {
	s.t.Helper()
	resp := s.Do(Request{
		Method:    http.MethodPost,
		Path:      "/auth/login",
		Body:      map[string]string{"email": email, "password": password},
		UserAgent: userAgent,
		Forwarded: forwarded,
	})
	require.Equal(s.t, http.StatusOK, resp.Status, resp.RawBody)
	data := resp.Data()
	sessionID, _ := data["session_id"].(string)
	return data["access_token"].(string), data["refresh_token"].(string), sessionID
}
