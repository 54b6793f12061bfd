package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"codesherpa/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/v1/auth/register", map[string]interface{}{
		"name": "Ada", "email": "Ada@Example.com", "password": "password123",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decode(t, w)
	assert.Equal(t, "User registered successfully", env.Message)
	user := dataMap(t, env)
	assert.Equal(t, "ada@example.com", user["email"])
	assert.NotContains(t, user, "hashed_password")

	w = ts.do(t, http.MethodPost, "/api/v1/auth/register", map[string]interface{}{
		"name": "Ada", "email": "ada@example.com", "password": "password123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already registered", decode(t, w).Message)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/login", map[string]interface{}{
		"email": "ada@example.com", "password": "wrong-password",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", decode(t, w).Message)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/login", map[string]interface{}{
		"email": "ada@example.com", "password": "password123",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	env = decode(t, w)
	assert.Equal(t, "Login successful", env.Message)
	data := dataMap(t, env)
	assert.Equal(t, "bearer", data["token_type"])
	assert.NotEmpty(t, data["access_token"])

	w = ts.do(t, http.MethodPost, "/api/v1/auth/refresh", map[string]interface{}{
		"refresh_token": data["refresh_token"],
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Token refreshed successfully", decode(t, w).Message)
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/v1/auth/register", map[string]interface{}{
		"name": "Bob", "email": "bob@example.com", "password": "short",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w).Message, "at least 8")

	w = ts.do(t, http.MethodPost, "/api/v1/auth/register", map[string]interface{}{
		"name": "Bob", "email": "not-an-email", "password": "password123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginInactiveUser(t *testing.T) {
	ts := newTestServer(t, nil)
	user, _ := ts.seedUser(t, "idle@example.com")
	require.NoError(t, ts.db.DB.Model(user).Update("is_active", false).Error)

	w := ts.do(t, http.MethodPost, "/api/v1/auth/login", map[string]interface{}{
		"email": "idle@example.com", "password": "password123",
	}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "User account is inactive", decode(t, w).Message)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	ts := newTestServer(t, nil)
	_, access := ts.seedUser(t, "tok@example.com")

	w := ts.do(t, http.MethodPost, "/api/v1/auth/refresh", map[string]interface{}{"refresh_token": access}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserMe(t *testing.T) {
	ts := newTestServer(t, nil)
	_, token := ts.seedUser(t, "me@example.com")
	ts.seedUser(t, "taken@example.com")

	w := ts.do(t, http.MethodGet, "/api/v1/user/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, "User information retrieved", env.Message)
	assert.Equal(t, "me@example.com", dataMap(t, env)["email"])

	w = ts.do(t, http.MethodPut, "/api/v1/user/me", map[string]interface{}{"email": "taken@example.com"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already registered", decode(t, w).Message)

	w = ts.do(t, http.MethodPut, "/api/v1/user/me", map[string]interface{}{"name": "Renamed", "email": "New@Example.com"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	env = decode(t, w)
	assert.Equal(t, "User information updated successfully", env.Message)
	assert.Equal(t, "Renamed", dataMap(t, env)["name"])
	assert.Equal(t, "new@example.com", dataMap(t, env)["email"])
}

func TestUserMe_DeletedUser(t *testing.T) {
	ts := newTestServer(t, nil)
	user, token := ts.seedUser(t, "gone@example.com")
	require.NoError(t, ts.db.DB.Delete(user).Error)

	w := ts.do(t, http.MethodGet, "/api/v1/user/me", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", decode(t, w).Message)
}

func TestAgentCRUD(t *testing.T) {
	ts := newTestServer(t, nil)
	_, token := ts.seedUser(t, "agents@example.com")
	_, otherToken := ts.seedUser(t, "stranger@example.com")

	w := ts.do(t, http.MethodPost, "/api/v1/agents", map[string]interface{}{"name": "Reviewer", "status": "sleeping"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid agent status", decode(t, w).Message)

	w = ts.do(t, http.MethodPost, "/api/v1/agents", map[string]interface{}{"name": "Reviewer", "description": "reviews PRs"}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	env := decode(t, w)
	assert.Equal(t, "Agent created successfully", env.Message)
	created := dataMap(t, env)
	assert.Equal(t, models.AgentStatusActive, created["status"])
	path := "/api/v1/agents/" + strconv.Itoa(int(created["id"].(float64)))

	w = ts.do(t, http.MethodGet, "/api/v1/agents", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	env = decode(t, w)
	assert.Equal(t, "Agents retrieved successfully", env.Message)
	assert.EqualValues(t, 1, dataMap(t, env)["count"])

	w = ts.do(t, http.MethodGet, path, nil, otherToken)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Agent not found", decode(t, w).Message)

	w = ts.do(t, http.MethodPut, path, map[string]interface{}{"status": "processing"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	env = decode(t, w)
	assert.Equal(t, "Agent updated successfully", env.Message)
	assert.Equal(t, "processing", dataMap(t, env)["status"])
	assert.Equal(t, "Reviewer", dataMap(t, env)["name"])

	w = ts.do(t, http.MethodPut, path, map[string]interface{}{"status": "bogus"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodDelete, path, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Agent deleted successfully", decode(t, w).Message)

	w = ts.do(t, http.MethodGet, path, nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/agents/abc", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProjectCRUD(t *testing.T) {
	ts := newTestServer(t, nil)
	_, token := ts.seedUser(t, "projects@example.com")

	w := ts.do(t, http.MethodPost, "/api/v1/projects", map[string]interface{}{"description": "no name"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/projects", map[string]interface{}{"name": "Onboarding"}, token)
	require.Equal(t, http.StatusCreated, w.Code)
	env := decode(t, w)
	assert.Equal(t, "Project created successfully", env.Message)
	path := "/api/v1/projects/" + strconv.Itoa(int(dataMap(t, env)["id"].(float64)))

	w = ts.do(t, http.MethodPut, path, map[string]interface{}{"description": "docs tour"}, token)
	require.Equal(t, http.StatusOK, w.Code)
	env = decode(t, w)
	assert.Equal(t, "Project updated successfully", env.Message)
	assert.Equal(t, "docs tour", dataMap(t, env)["description"])

	w = ts.do(t, http.MethodGet, "/api/v1/projects", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, dataMap(t, decode(t, w))["count"])

	w = ts.do(t, http.MethodDelete, path, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Project deleted successfully", decode(t, w).Message)

	w = ts.do(t, http.MethodGet, path, nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Project not found", decode(t, w).Message)
}

type recordingReviewer struct {
	repo   string
	number int
	title  string
	calls  int
	err    error
}

func (r *recordingReviewer) ReviewPullRequest(ctx context.Context, repo string, number int, title string) error {
	r.calls++
	r.repo, r.number, r.title = repo, number, title
	return r.err
}

const prPayload = `{"action":"%s","number":7,"pull_request":{"number":7,"title":"Add cache"},"repository":{"full_name":"acme/api"}}`

func githubRequest(t *testing.T, event, body, secret string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/github/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(body))
		req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}
	return req
}

func serve(ts *testServer, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestGitHubWebhook(t *testing.T) {
	const secret = "hook-secret"

	newServer := func(t *testing.T, reviewer *recordingReviewer) *testServer {
		return newTestServer(t, func(d *Deps) {
			d.Config.GitHubWebhookSecret = secret
			d.Reviewer = reviewer
		})
	}

	t.Run("reviews opened pull requests", func(t *testing.T) {
		reviewer := &recordingReviewer{}
		ts := newServer(t, reviewer)

		w := serve(ts, githubRequest(t, "pull_request", fmt.Sprintf(prPayload, "opened"), secret))
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.JSONEq(t, `{"status":"accepted"}`, w.Body.String())
		assert.Equal(t, 1, reviewer.calls)
		assert.Equal(t, "acme/api", reviewer.repo)
		assert.Equal(t, 7, reviewer.number)
		assert.Equal(t, "Add cache", reviewer.title)
	})

	t.Run("review failure still accepted", func(t *testing.T) {
		reviewer := &recordingReviewer{err: errors.New("github down")}
		ts := newServer(t, reviewer)

		w := serve(ts, githubRequest(t, "pull_request", fmt.Sprintf(prPayload, "synchronize"), secret))
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, 1, reviewer.calls)
	})

	t.Run("ignores other actions", func(t *testing.T) {
		reviewer := &recordingReviewer{}
		ts := newServer(t, reviewer)

		w := serve(ts, githubRequest(t, "pull_request", fmt.Sprintf(prPayload, "closed"), secret))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ignored"}`, w.Body.String())
		assert.Zero(t, reviewer.calls)
	})

	t.Run("ping", func(t *testing.T) {
		ts := newServer(t, &recordingReviewer{})

		w := serve(ts, githubRequest(t, "ping", `{"zen":"Keep it logically awesome."}`, secret))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"pong"}`, w.Body.String())
	})

	t.Run("bad signature", func(t *testing.T) {
		reviewer := &recordingReviewer{}
		ts := newServer(t, reviewer)

		w := serve(ts, githubRequest(t, "pull_request", fmt.Sprintf(prPayload, "opened"), "wrong-secret"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Zero(t, reviewer.calls)
	})

	t.Run("no secret configured skips verification", func(t *testing.T) {
		reviewer := &recordingReviewer{}
		ts := newTestServer(t, func(d *Deps) { d.Reviewer = reviewer })

		w := serve(ts, githubRequest(t, "pull_request", fmt.Sprintf(prPayload, "reopened"), ""))
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, 1, reviewer.calls)
	})
}

func TestWhatsAppWebhook(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=1158201444", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1158201444", w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=1", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Verification failed", decode(t, w).Message)

	w = ts.do(t, http.MethodGet, "/api/whatsapp/webhook", nil, "")
	assert.JSONEq(t, `{"status":"error","message":"Missing parameters"}`, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/whatsapp/webhook", map[string]interface{}{
		"entry": []interface{}{map[string]interface{}{
			"changes": []interface{}{map[string]interface{}{
				"value": map[string]interface{}{
					"messages": []interface{}{map[string]interface{}{
						"from": "15551234567", "type": "text", "text": map[string]interface{}{"body": "hello"},
					}},
				},
			}},
		}},
	}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"received"}`, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/whatsapp/webhook", map[string]interface{}{"unexpected": true}, "")
	assert.JSONEq(t, `{"status":"received"}`, w.Body.String())
}
