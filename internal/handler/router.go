package handler

import (
	"net/http"

	"notesync-server/internal/config"
	"notesync-server/internal/middleware"
	"notesync-server/pkg/logger"
	"notesync-server/pkg/response"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth      *AuthHandler
	User      *UserHandler
	Note      *NoteHandler
	Folder    *FolderHandler
	WebSocket *WebSocketHandler
}

func NewRouter(cfg *config.Config, h Handlers, log *zap.Logger) *mux.Router {
	if log == nil {
		log = logger.WithModule("http")
	}

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", h.Auth.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", h.Auth.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/refresh", h.Auth.Refresh).Methods("POST", "OPTIONS")
	api.HandleFunc("/shared/{shareCode}", h.Note.GetShared).Methods("GET", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	protected.HandleFunc("/users/me", h.User.GetMe).Methods("GET", "OPTIONS")

	protected.HandleFunc("/notes", h.Note.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/notes", h.Note.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/search", h.Note.Search).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/collaborator", h.Note.SharedWithMe).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/folder/{folderId}", h.Note.ListByFolder).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}", h.Note.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}", h.Note.Update).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/notes/{id}", h.Note.Delete).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/notes/{id}/share", h.Note.CreateShareLink).Methods("POST", "OPTIONS")
	protected.HandleFunc("/notes/{id}/history", h.Note.History).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}/collaborators", h.Note.Collaborators).Methods("GET", "OPTIONS")
	protected.HandleFunc("/notes/{id}/collaborators", h.Note.Share).Methods("PUT", "OPTIONS")

	protected.HandleFunc("/folders", h.Folder.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/folders", h.Folder.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/folders/{id}", h.Folder.Delete).Methods("DELETE", "OPTIONS")

	r.HandleFunc("/ws", h.WebSocket.HandleConnection)
	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/", rootHandler).Methods("GET")

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler()).Methods("GET")
	}

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]string{
		"status":  "healthy",
		"service": "notesync-server",
	})
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	response.Success(w, map[string]interface{}{
		"message": "NoteSync Server API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"/api/v1/auth/register":            "POST",
			"/api/v1/auth/login":               "POST",
			"/api/v1/auth/refresh":             "POST",
			"/api/v1/users/me":                 "GET (protected)",
			"/api/v1/notes":                    "GET, POST (protected)",
			"/api/v1/notes/{id}":               "GET, PUT, DELETE (protected)",
			"/api/v1/notes/search?q=":          "GET (protected)",
			"/api/v1/notes/collaborator":       "GET (protected)",
			"/api/v1/notes/folder/{folderId}":  "GET (protected)",
			"/api/v1/notes/{id}/share":         "POST (protected)",
			"/api/v1/shared/{shareCode}":       "GET",
			"/api/v1/folders":                  "GET, POST (protected)",
			"/api/v1/folders/{id}":             "DELETE (protected)",
			"/api/v1/notes/{id}/history":       "GET (protected)",
			"/api/v1/notes/{id}/collaborators": "GET, PUT (protected)",
			"/ws?token=<access token>":         "WebSocket",
		},
	})
}
