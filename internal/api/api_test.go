package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"codesherpa/internal/auth"
	"codesherpa/internal/cache"
	"codesherpa/internal/config"
	"codesherpa/internal/db"
	"codesherpa/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"
)

type stubOrchestrator struct {
	result   map[string]interface{}
	err      error
	inputs   []map[string]interface{}
	sessions []string
}

func (s *stubOrchestrator) Name() string { return "orchestrator" }

func (s *stubOrchestrator) Process(ctx context.Context, input map[string]interface{}, sessionID string) (map[string]interface{}, error) {
	s.inputs = append(s.inputs, input)
	s.sessions = append(s.sessions, sessionID)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type modeStub string

func (m modeStub) Mode() string { return string(m) }

type testServer struct {
	server *Server
	router *gin.Engine
	db     *db.Database
	auth   *auth.AuthService
}

func testConfig() *config.Config {
	return &config.Config{
		ProjectName:         "CodeSherpa",
		Version:             "1.0.0",
		APIV1Str:            "/api/v1",
		Environment:         "test",
		JWTSecret:           "test-secret",
		CORSOrigins:         []string{"http://localhost:5173"},
		WhatsAppVerifyToken: "verify-me",
		RateLimitPerMinute:  6000,
	}
}

func newTestServer(t *testing.T, mutate func(*Deps)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.NewDatabase(&db.Config{
		URL:         "sqlite://:memory:",
		AutoMigrate: true,
		LogLevel:    logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	authService := auth.NewAuthService("test-secret", auth.WithBcryptCost(bcrypt.MinCost))
	deps := Deps{
		Config:  testConfig(),
		DB:      database,
		Auth:    authService,
		Memory:  modeStub("memory"),
		Gateway: modeStub("mock"),
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv := NewServer(deps)
	srv.background = func(fn func()) { fn() }
	return &testServer{server: srv, router: srv.Router(), db: database, auth: authService}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// seedUser stores a user directly and returns it with an access token
func (ts *testServer) seedUser(t *testing.T, email string) (*models.User, string) {
	t.Helper()
	user, err := ts.auth.CreateUser(&auth.RegisterRequest{Name: "Test User", Email: email, Password: "password123"})
	require.NoError(t, err)
	require.NoError(t, ts.db.DB.Create(user).Error)
	tokens, err := ts.auth.GenerateTokens(user)
	require.NoError(t, err)
	return user, tokens.AccessToken
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func dataMap(t *testing.T, env Envelope) map[string]interface{} {
	t.Helper()
	m, ok := env.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", env.Data)
	return m
}

func TestHealthAndRoot(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.True(t, env.Success)
	assert.Equal(t, "Service is healthy", env.Message)
	data := dataMap(t, env)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, "1.0.0", data["version"])
	assert.Equal(t, "memory", data["memory_mode"])
	assert.Equal(t, "mock", data["gateway_mode"])
	assert.Equal(t, "connected", data["database"])
	assert.NotContains(t, data, "memory_degraded_at")

	w = ts.do(t, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	env = decode(t, w)
	assert.Equal(t, "Welcome to CodeSherpa Backend", env.Message)
	assert.Equal(t, "CodeSherpa", dataMap(t, env)["service"])
}

func TestHealthReportsMemoryDowngrade(t *testing.T) {
	downAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ts := newTestServer(t, func(d *Deps) {
		d.Memory = cache.NewSessionMemory(nil, cache.WithClock(func() time.Time { return downAt }))
	})

	w := ts.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, decode(t, w))
	assert.Equal(t, "memory", data["memory_mode"])
	assert.Equal(t, "2024-05-01T12:00:00Z", data["memory_degraded_at"])
}

func TestNotFoundUsesEnvelope(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	assert.Nil(t, env.Data)
}

func TestProcessChat(t *testing.T) {
	t.Run("routes with defaults", func(t *testing.T) {
		orch := &stubOrchestrator{result: map[string]interface{}{"reply": "hi"}}
		ts := newTestServer(t, func(d *Deps) { d.Orchestrator = orch })

		w := ts.do(t, http.MethodPost, "/api/v1/process", map[string]interface{}{"message": "hello"}, "")
		require.Equal(t, http.StatusOK, w.Code)
		env := decode(t, w)
		assert.Equal(t, "Chat processed successfully", env.Message)
		assert.Equal(t, "hi", dataMap(t, env)["reply"])
		assert.Equal(t, []string{"default_session"}, orch.sessions)
		assert.NotContains(t, orch.inputs[0], "code_context")
	})

	t.Run("passes session and code context", func(t *testing.T) {
		orch := &stubOrchestrator{result: map[string]interface{}{}}
		ts := newTestServer(t, func(d *Deps) { d.Orchestrator = orch })

		w := ts.do(t, http.MethodPost, "/api/v1/process", map[string]interface{}{
			"message":      "explain",
			"session_id":   "s1",
			"code_context": "func main() {}",
		}, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"s1"}, orch.sessions)
		assert.Equal(t, "func main() {}", orch.inputs[0]["code_context"])
	})

	t.Run("missing message is passed as empty", func(t *testing.T) {
		orch := &stubOrchestrator{result: map[string]interface{}{"error": "No diff provided"}}
		ts := newTestServer(t, func(d *Deps) { d.Orchestrator = orch })

		w := ts.do(t, http.MethodPost, "/api/v1/process", map[string]interface{}{"session_id": "x"}, "")
		require.Equal(t, http.StatusOK, w.Code)
		env := decode(t, w)
		assert.True(t, env.Success)
		assert.Equal(t, "No diff provided", dataMap(t, env)["error"])
		require.Len(t, orch.inputs, 1)
		assert.Equal(t, "", orch.inputs[0]["message"])
		assert.Equal(t, []string{"x"}, orch.sessions)
	})

	t.Run("no orchestrator", func(t *testing.T) {
		ts := newTestServer(t, nil)

		w := ts.do(t, http.MethodPost, "/api/v1/process", map[string]interface{}{"message": "hi"}, "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Orchestrator not initialized", decode(t, w).Message)
	})

	t.Run("orchestrator error", func(t *testing.T) {
		ts := newTestServer(t, func(d *Deps) { d.Orchestrator = &stubOrchestrator{err: errors.New("boom")} })

		w := ts.do(t, http.MethodPost, "/api/v1/process", map[string]interface{}{"message": "hi"}, "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Error processing chat", decode(t, w).Message)
	})
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/api/v1/user/me", "/api/v1/agents", "/api/v1/projects", "/api/v1/chat"} {
		w := ts.do(t, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestChatHistoryOrdering(t *testing.T) {
	ts := newTestServer(t, nil)
	user, token := ts.seedUser(t, "chat@example.com")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, msg := range []string{"first", "second", "third"} {
		chat := models.Chat{Message: msg, UserID: user.ID, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, ts.db.DB.Create(&chat).Error)
	}

	w := ts.do(t, http.MethodGet, "/api/v1/chat?limit=2", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, "Chat history retrieved successfully", env.Message)
	data := dataMap(t, env)
	assert.EqualValues(t, 2, data["count"])

	chats := data["chats"].([]interface{})
	require.Len(t, chats, 2)
	assert.Equal(t, "second", chats[0].(map[string]interface{})["message"])
	assert.Equal(t, "third", chats[1].(map[string]interface{})["message"])

	w = ts.do(t, http.MethodGet, "/api/v1/chat?limit=zero", nil, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatLifecycle(t *testing.T) {
	orch := &stubOrchestrator{result: map[string]interface{}{"agent": "codebase_sherpa", "explanation": "ok"}}
	ts := newTestServer(t, func(d *Deps) { d.Orchestrator = orch })
	user, token := ts.seedUser(t, "life@example.com")
	_, otherToken := ts.seedUser(t, "other@example.com")

	w := ts.do(t, http.MethodPost, "/api/v1/chat", map[string]interface{}{"message": "what is a goroutine"}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	env := decode(t, w)
	assert.Equal(t, "Chat message created successfully", env.Message)
	id := int(dataMap(t, env)["id"].(float64))
	path := "/api/v1/chat/" + strconv.Itoa(id)

	w = ts.do(t, http.MethodGet, path, nil, otherToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Chat message not found", decode(t, w).Message)

	w = ts.do(t, http.MethodGet, path, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, dataMap(t, decode(t, w))["response"])

	w = ts.do(t, http.MethodPost, path+"/respond", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "what is a goroutine", orch.inputs[0]["message"])
	assert.Equal(t, "user_"+strconv.Itoa(int(user.ID)), orch.sessions[0])

	var stored models.Chat
	require.NoError(t, ts.db.DB.First(&stored, id).Error)
	require.NotNil(t, stored.Response)
	assert.JSONEq(t, `{"agent":"codebase_sherpa","explanation":"ok"}`, *stored.Response)
}
