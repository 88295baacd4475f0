package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"notesync-server/internal/config"
	"notesync-server/internal/repository/sqlstore"
	"notesync-server/internal/service"
	"notesync-server/internal/websocket"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db, err := sqlstore.Open(sqlstore.Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	repos := sqlstore.New(db)

	cfg := &config.Config{
		JWT:     config.JWTConfig{Secret: testSecret, Expiration: time.Hour, RefreshTokenExpiration: time.Hour},
		CORS:    config.CORSConfig{AllowedOrigins: "*", AllowedMethods: "GET,POST,PUT", AllowedHeaders: "Authorization"},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}

	access := service.NewAccessResolver(repos.Notes, repos.Collaborators)
	hub := websocket.NewHub(5, nil)
	authService := service.NewAuthService(repos.Users, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration)
	collab := service.NewCollabService(hub, access, repos.Notes, repos.Versions, service.NewNameCache(repos.Users, nil), nil)

	return NewRouter(cfg, Handlers{
		Auth:      NewAuthHandler(authService),
		User:      NewUserHandler(service.NewUserService(repos.Users)),
		Note:      NewNoteHandler(service.NewNoteService(repos.Notes, repos.Versions, repos.Collaborators, repos.Users, repos.Folders, access, collab)),
		Folder:    NewFolderHandler(service.NewFolderService(repos.Folders, repos.Notes)),
		WebSocket: NewWebSocketHandler(hub, authService, collab, cfg.WebSocket, "*", nil),
	}, nil)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func call(t *testing.T, h http.Handler, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func register(t *testing.T, h http.Handler, name, email string) (id, token string) {
	t.Helper()

	code, env := call(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)

	var user struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &user))

	code, env = call(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, code, env.Error)

	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	return user.ID, login.AccessToken
}

func TestRouter_NotesAndSharing(t *testing.T) {
	h := newTestRouter(t)

	_, ownerToken := register(t, h, "Ada", "ada@example.com")
	friendID, friendToken := register(t, h, "Bob", "bob@example.com")

	code, _ := call(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Ada again", "email": "ada@example.com", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = call(t, h, http.MethodGet, "/api/v1/notes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := call(t, h, http.MethodPost, "/api/v1/notes", ownerToken, map[string]string{"title": "Plan", "content": "draft"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var note struct {
		ID      string `json:"id"`
		Version int64  `json:"version"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &note))
	assert.Equal(t, int64(1), note.Version)

	code, _ = call(t, h, http.MethodGet, "/api/v1/notes/"+note.ID, friendToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = call(t, h, http.MethodPut, "/api/v1/notes/"+note.ID+"/collaborators", ownerToken, map[string]string{
		"user_id": friendID, "permission": "edit",
	})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, _ = call(t, h, http.MethodPut, "/api/v1/notes/"+note.ID+"/collaborators", ownerToken, map[string]string{
		"user_id": friendID, "permission": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, h, http.MethodGet, "/api/v1/notes/"+note.ID, friendToken, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, h, http.MethodGet, "/api/v1/notes/"+note.ID+"/history", friendToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = call(t, h, http.MethodGet, "/api/v1/notes/"+note.ID+"/history", ownerToken, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", string(env.Data))

	code, env = call(t, h, http.MethodGet, "/api/v1/users/me", friendToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "bob@example.com")
	assert.NotContains(t, string(env.Data), "password")
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t)

	code, env := call(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
}

func TestRouter_Refresh(t *testing.T) {
	h := newTestRouter(t)
	register(t, h, "Ada", "ada@example.com")

	_, env := call(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "correct-horse",
	})
	var login struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))

	code, _ := call(t, h, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": login.RefreshToken})
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, h, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": login.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, code)
}

type noteBody struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Version  int64   `json:"version"`
	FolderID *string `json:"folder_id"`
}

func createNote(t *testing.T, h http.Handler, token string, body map[string]interface{}) noteBody {
	t.Helper()

	code, env := call(t, h, http.MethodPost, "/api/v1/notes", token, body)
	require.Equal(t, http.StatusCreated, code, env.Error)

	var note noteBody
	require.NoError(t, json.Unmarshal(env.Data, &note))
	return note
}

func TestRouter_UpdateAndDeleteNote(t *testing.T) {
	h := newTestRouter(t)
	_, ownerToken := register(t, h, "Ada", "ada@example.com")
	friendID, friendToken := register(t, h, "Bob", "bob@example.com")

	note := createNote(t, h, ownerToken, map[string]interface{}{"title": "Plan", "content": "draft"})

	code, env := call(t, h, http.MethodPut, "/api/v1/notes/"+note.ID, ownerToken, map[string]interface{}{"title": "Final plan", "version": 1})
	require.Equal(t, http.StatusOK, code, env.Error)
	var updated noteBody
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "Final plan", updated.Title)
	assert.Equal(t, "draft", updated.Content)
	assert.Equal(t, int64(2), updated.Version)

	code, env = call(t, h, http.MethodPut, "/api/v1/notes/"+note.ID, ownerToken, map[string]interface{}{"content": "late", "version": 1})
	require.Equal(t, http.StatusConflict, code)
	var current noteBody
	require.NoError(t, json.Unmarshal(env.Data, &current))
	assert.Equal(t, int64(2), current.Version)
	assert.Equal(t, "draft", current.Content)

	code, _ = call(t, h, http.MethodPut, "/api/v1/notes/"+note.ID, ownerToken, map[string]interface{}{"title": ""})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, h, http.MethodPut, "/api/v1/notes/"+note.ID, friendToken, map[string]interface{}{"content": "mine"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, h, http.MethodPut, "/api/v1/notes/"+note.ID+"/collaborators", ownerToken, map[string]string{
		"user_id": friendID, "permission": "edit",
	})
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, h, http.MethodPut, "/api/v1/notes/"+note.ID, friendToken, map[string]interface{}{"content": "edited"})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = call(t, h, http.MethodGet, "/api/v1/notes/"+note.ID+"/history", ownerToken, nil)
	require.Equal(t, http.StatusOK, code)
	var history []noteBody
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 2)

	code, _ = call(t, h, http.MethodDelete, "/api/v1/notes/"+note.ID, friendToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = call(t, h, http.MethodDelete, "/api/v1/notes/"+note.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	code, _ = call(t, h, http.MethodGet, "/api/v1/notes/"+note.ID, ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = call(t, h, http.MethodGet, "/api/v1/notes/collaborator", friendToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", string(env.Data))
}

func TestRouter_SearchAndCollaboratorNotes(t *testing.T) {
	h := newTestRouter(t)
	_, ownerToken := register(t, h, "Ada", "ada@example.com")
	friendID, friendToken := register(t, h, "Bob", "bob@example.com")

	groceries := createNote(t, h, ownerToken, map[string]interface{}{"title": "Groceries", "content": "Buy MILK"})
	createNote(t, h, ownerToken, map[string]interface{}{"title": "Ideas", "content": "none yet"})
	createNote(t, h, friendToken, map[string]interface{}{"title": "milk run"})

	code, env := call(t, h, http.MethodGet, "/api/v1/notes/search?q=milk", ownerToken, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var found []noteBody
	require.NoError(t, json.Unmarshal(env.Data, &found))
	require.Len(t, found, 1)
	assert.Equal(t, groceries.ID, found[0].ID)

	code, env = call(t, h, http.MethodGet, "/api/v1/notes/search?q=", ownerToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", string(env.Data))

	code, _ = call(t, h, http.MethodPut, "/api/v1/notes/"+groceries.ID+"/collaborators", ownerToken, map[string]string{
		"user_id": friendID, "permission": "view",
	})
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, h, http.MethodGet, "/api/v1/notes/collaborator", friendToken, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var shared []struct {
		ID         string `json:"id"`
		Permission string `json:"permission"`
		OwnerName  string `json:"owner_name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &shared))
	require.Len(t, shared, 1)
	assert.Equal(t, groceries.ID, shared[0].ID)
	assert.Equal(t, "view", shared[0].Permission)
	assert.Equal(t, "Ada", shared[0].OwnerName)
}

func TestRouter_ShareLink(t *testing.T) {
	h := newTestRouter(t)
	_, ownerToken := register(t, h, "Ada", "ada@example.com")
	_, friendToken := register(t, h, "Bob", "bob@example.com")

	note := createNote(t, h, ownerToken, map[string]interface{}{"title": "Public", "content": "hello"})

	code, _ := call(t, h, http.MethodPost, "/api/v1/notes/"+note.ID+"/share", friendToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env := call(t, h, http.MethodPost, "/api/v1/notes/"+note.ID+"/share", ownerToken, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var link struct {
		ShareCode string `json:"share_code"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &link))
	assert.Len(t, link.ShareCode, 10)

	code, env = call(t, h, http.MethodGet, "/api/v1/shared/"+link.ShareCode, "", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var snapshot noteBody
	require.NoError(t, json.Unmarshal(env.Data, &snapshot))
	assert.Equal(t, note.ID, snapshot.ID)
	assert.Equal(t, "hello", snapshot.Content)

	code, env = call(t, h, http.MethodGet, "/api/v1/shared/0000000000", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Shared note not found", env.Error)
}

func TestRouter_Folders(t *testing.T) {
	h := newTestRouter(t)
	_, ownerToken := register(t, h, "Ada", "ada@example.com")
	_, friendToken := register(t, h, "Bob", "bob@example.com")

	code, env := call(t, h, http.MethodPost, "/api/v1/folders", ownerToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Folder name is required", env.Error)

	var folders []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	for _, name := range []string{"work", "home"} {
		code, env = call(t, h, http.MethodPost, "/api/v1/folders", ownerToken, map[string]string{"name": name})
		require.Equal(t, http.StatusCreated, code, env.Error)
	}

	code, env = call(t, h, http.MethodGet, "/api/v1/folders", ownerToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &folders))
	require.Len(t, folders, 2)
	assert.Equal(t, "home", folders[0].Name)
	assert.Equal(t, "work", folders[1].Name)
	home := folders[0].ID

	note := createNote(t, h, ownerToken, map[string]interface{}{"title": "Chores", "folder_id": home})
	require.NotNil(t, note.FolderID)
	createNote(t, h, ownerToken, map[string]interface{}{"title": "Loose"})

	code, _ = call(t, h, http.MethodPost, "/api/v1/notes", friendToken, map[string]interface{}{"title": "Sneaky", "folder_id": home})
	assert.Equal(t, http.StatusNotFound, code)

	code, env = call(t, h, http.MethodGet, "/api/v1/notes/folder/"+home, ownerToken, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var inFolder []noteBody
	require.NoError(t, json.Unmarshal(env.Data, &inFolder))
	require.Len(t, inFolder, 1)
	assert.Equal(t, note.ID, inFolder[0].ID)

	code, _ = call(t, h, http.MethodGet, "/api/v1/notes/folder/"+home, friendToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, h, http.MethodDelete, "/api/v1/folders/"+home, friendToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = call(t, h, http.MethodDelete, "/api/v1/folders/"+home, ownerToken, nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = call(t, h, http.MethodGet, "/api/v1/notes/"+note.ID, ownerToken, nil)
	require.Equal(t, http.StatusOK, code)
	var kept noteBody
	require.NoError(t, json.Unmarshal(env.Data, &kept))
	assert.Nil(t, kept.FolderID)

	code, _ = call(t, h, http.MethodGet, "/api/v1/notes/folder/"+home, ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
}
