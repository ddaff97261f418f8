package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddle-chat/huddle-server/internal/store"
)

func newTestServer() *Server {
	return New(NewConfig(), store.New())
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "running")
}

func TestGetChannelsReturnsSeeds(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodGet, "/api/channels", "")
	require.Equal(t, http.StatusOK, rec.Code)

	channels := decodeBody[[]store.Channel](t, rec)
	require.Len(t, channels, 3)
	assert.Equal(t, "general", channels[0].Name)
}

func TestGetUsersStartsEmpty(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestCreateUserThenDuplicate(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodPost, "/api/users", `{"username":"alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeBody[store.User](t, rec)
	assert.Equal(t, 1, created.ID)
	assert.Equal(t, "alice", created.Username)
	assert.Equal(t, "A", created.Initials)
	assert.NotEmpty(t, created.Color)
	assert.False(t, created.OnlineStatus)

	rec = doRequest(s, http.MethodPost, "/api/users", `{"username":"alice"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Username already taken", decodeBody[errorResponse](t, rec).Message)

	rec = doRequest(s, http.MethodGet, "/api/users", "")
	users := decodeBody[[]store.User](t, rec)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
}

func TestCreateUserKeepsProvidedIdentityFields(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodPost, "/api/users",
		`{"username":"bob","password":"pw","initials":"BX","color":"bg-green-500"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeBody[store.User](t, rec)
	assert.Equal(t, "BX", created.Initials)
	assert.Equal(t, "bg-green-500", created.Color)
	assert.Equal(t, "pw", created.Password)
}

func TestCreateUserValidation(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodPost, "/api/users", `{"username":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPost, "/api/users", `{broken`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/users", "")
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestCreateChannelThenDuplicate(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodPost, "/api/channels",
		`{"name":"design","description":"Design talk"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeBody[store.Channel](t, rec)
	assert.Equal(t, 4, created.ID)
	assert.Equal(t, "design", created.Name)
	assert.False(t, created.IsDirectMessage)

	rec = doRequest(s, http.MethodPost, "/api/channels", `{"name":"design"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Channel name already taken", decodeBody[errorResponse](t, rec).Message)

	rec = doRequest(s, http.MethodPost, "/api/channels", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetChannelMessages(t *testing.T) {
	s := newTestServer()

	user, err := s.store.CreateUser("alice", "", "A", "bg-blue-500")
	require.NoError(t, err)
	_, err = s.store.CreateMessage("hello", user.ID, 1)
	require.NoError(t, err)

	rec := doRequest(s, http.MethodGet, "/api/channels/1/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)

	messages := decodeBody[[]store.MessageWithAuthor](t, rec)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, "alice", messages[0].User.Username)
}

func TestGetChannelMessagesInvalidID(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodGet, "/api/channels/abc/messages", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid channel ID", decodeBody[errorResponse](t, rec).Message)
}

func TestGetChannelMessagesUnknownChannelIsEmpty(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodGet, "/api/channels/99/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestWebSocketEndpointRejectsNonGet(t *testing.T) {
	s := newTestServer()

	rec := doRequest(s, http.MethodPost, "/ws", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
