package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"notesync-server/internal/domain"
	"notesync-server/internal/middleware"
	"notesync-server/internal/service"
	"notesync-server/pkg/logger"
	"notesync-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type NoteHandler struct {
	service  *service.NoteService
	validate *validator.Validate
}

func NewNoteHandler(service *service.NoteService) *NoteHandler {
	return &NoteHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	note, err := h.service.Create(r.Context(), middleware.GetUserID(r), &req)
	if err != nil {
		writeNoteError(w, err, "Failed to create note")
		return
	}

	response.Created(w, note)
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.List(r.Context(), middleware.GetUserID(r))
	if err != nil {
		writeNoteError(w, err, "Failed to list notes")
		return
	}

	response.Success(w, notes)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.service.Get(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"])
	if err != nil {
		writeNoteError(w, err, "Failed to load note")
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	versions, err := h.service.History(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"], limit)
	if err != nil {
		writeNoteError(w, err, "Failed to load history")
		return
	}

	response.Success(w, versions)
}

func (h *NoteHandler) Share(w http.ResponseWriter, r *http.Request) {
	var req domain.GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	grant, err := h.service.Share(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"], &req)
	if err != nil {
		writeNoteError(w, err, "Failed to share note")
		return
	}

	response.Success(w, grant)
}

func (h *NoteHandler) Collaborators(w http.ResponseWriter, r *http.Request) {
	grants, err := h.service.Collaborators(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"])
	if err != nil {
		writeNoteError(w, err, "Failed to list collaborators")
		return
	}

	response.Success(w, grants)
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	note, err := h.service.Update(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"], &req)
	if err != nil {
		writeNoteError(w, err, "Failed to update note")
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"]); err != nil {
		writeNoteError(w, err, "Failed to delete note")
		return
	}

	response.Success(w, map[string]string{"message": "Note deleted"})
}

func (h *NoteHandler) Search(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.Search(r.Context(), middleware.GetUserID(r), r.URL.Query().Get("q"))
	if err != nil {
		writeNoteError(w, err, "Failed to search notes")
		return
	}

	response.Success(w, notes)
}

func (h *NoteHandler) ListByFolder(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.ListByFolder(r.Context(), middleware.GetUserID(r), mux.Vars(r)["folderId"])
	if err != nil {
		writeNoteError(w, err, "Failed to list folder notes")
		return
	}

	response.Success(w, notes)
}

func (h *NoteHandler) SharedWithMe(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.SharedWithMe(r.Context(), middleware.GetUserID(r))
	if err != nil {
		writeNoteError(w, err, "Failed to list shared notes")
		return
	}

	response.Success(w, notes)
}

func (h *NoteHandler) CreateShareLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.service.CreateShareLink(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"])
	if err != nil {
		writeNoteError(w, err, "Failed to create share link")
		return
	}

	response.Success(w, link)
}

// GetShared is public: the share code is the credential.
func (h *NoteHandler) GetShared(w http.ResponseWriter, r *http.Request) {
	note, err := h.service.GetShared(r.Context(), mux.Vars(r)["shareCode"])
	if err != nil {
		if errors.Is(err, service.ErrNoteNotFound) {
			response.NotFound(w, "Shared note not found")
			return
		}
		writeNoteError(w, err, "Failed to load shared note")
		return
	}

	response.Success(w, note)
}

func writeNoteError(w http.ResponseWriter, err error, fallback string) {
	var stale *service.StaleVersionError
	switch {
	case errors.As(err, &stale):
		response.ConflictWith(w, "Note has changed", stale.Current)
	case errors.Is(err, service.ErrNoteNotFound), errors.Is(err, service.ErrAccessDenied):
		response.NotFound(w, "Note not found or access denied")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(w, "User not found")
	case errors.Is(err, service.ErrFolderNotFound):
		response.NotFound(w, "Folder not found")
	case errors.Is(err, service.ErrInvalidGrant):
		response.BadRequest(w, err.Error())
	default:
		logger.WithModule("handler").Error(fallback, zap.Error(err))
		response.InternalError(w, fallback)
	}
}
