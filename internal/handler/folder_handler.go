package handler

import (
	"encoding/json"
	"net/http"

	"notesync-server/internal/domain"
	"notesync-server/internal/middleware"
	"notesync-server/internal/service"
	"notesync-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type FolderHandler struct {
	service  *service.FolderService
	validate *validator.Validate
}

func NewFolderHandler(service *service.FolderService) *FolderHandler {
	return &FolderHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *FolderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request payload")
		return
	}

	if req.Name == "" {
		response.BadRequest(w, "Folder name is required")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	folder, err := h.service.Create(r.Context(), middleware.GetUserID(r), &req)
	if err != nil {
		writeNoteError(w, err, "Failed to create folder")
		return
	}

	response.Created(w, folder)
}

func (h *FolderHandler) List(w http.ResponseWriter, r *http.Request) {
	folders, err := h.service.List(r.Context(), middleware.GetUserID(r))
	if err != nil {
		writeNoteError(w, err, "Failed to list folders")
		return
	}

	response.Success(w, folders)
}

func (h *FolderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"]); err != nil {
		writeNoteError(w, err, "Failed to delete folder")
		return
	}

	response.Success(w, map[string]string{"message": "Folder deleted"})
}
