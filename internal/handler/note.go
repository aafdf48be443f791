package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"notesvc/internal/middleware"
	"notesvc/internal/models"
	"notesvc/internal/repository"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

type NoteHandler interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

type noteHandler struct {
	noteRepo repository.NoteRepository
	logger   *zap.Logger
}

func NewNoteHandler(noteRepo repository.NoteRepository, logger *zap.Logger) NoteHandler {
	return &noteHandler{noteRepo: noteRepo, logger: logger}
}

// CreateNoteRequest allow-lists the fields a client may set. The owner is
// always taken from the authenticated principal, so an owner field smuggled
// into the payload is ignored.
type CreateNoteRequest struct {
	Title string `json:"title" binding:"required,max=256"`
	Body  string `json:"body" binding:"max=65536"`
}

type UpdateNoteRequest struct {
	Title *string `json:"title" binding:"omitempty,min=1,max=256"`
	Body  *string `json:"body" binding:"omitempty,max=65536"`
}

// Create handles POST /api/notes
func (h *noteHandler) Create(c *gin.Context) {
	var req CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	principal := middleware.Principal(c)

	note := &models.Note{
		Title:   req.Title,
		Body:    req.Body,
		OwnerID: principal.ID,
	}
	if err := h.noteRepo.Create(c.Request.Context(), note); err != nil {
		h.logger.Error("Failed to create note", zap.Int64("owner_id", principal.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to create note"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "note created",
		"data":    note,
	})
}

// Get handles GET /api/notes/:id
func (h *noteHandler) Get(c *gin.Context) {
	id, ok := noteID(c)
	if !ok {
		return
	}
	principal := middleware.Principal(c)

	note, err := h.noteRepo.GetByID(c.Request.Context(), id, principal.ID)
	if err != nil {
		h.respondNoteError(c, id, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "ok", "data": note})
}

// List handles GET /api/notes with 1-based page and limit query params.
func (h *noteHandler) List(c *gin.Context) {
	principal := middleware.Principal(c)

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid page"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil || limit < 1 || limit > maxPageLimit {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid limit"})
		return
	}

	notes, total, err := h.noteRepo.List(c.Request.Context(), principal.ID, (page-1)*limit, limit)
	if err != nil {
		h.logger.Error("Failed to list notes", zap.Int64("owner_id", principal.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to list notes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "ok",
		"data": gin.H{
			"notes": notes,
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// Update handles PUT /api/notes/:id
func (h *noteHandler) Update(c *gin.Context) {
	id, ok := noteID(c)
	if !ok {
		return
	}

	var req UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if req.Title == nil && req.Body == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "nothing to update"})
		return
	}

	principal := middleware.Principal(c)

	note, err := h.noteRepo.Update(c.Request.Context(), id, principal.ID, repository.NotePatch{
		Title: req.Title,
		Body:  req.Body,
	})
	if err != nil {
		h.respondNoteError(c, id, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "note updated", "data": note})
}

// Delete handles DELETE /api/notes/:id
func (h *noteHandler) Delete(c *gin.Context) {
	id, ok := noteID(c)
	if !ok {
		return
	}
	principal := middleware.Principal(c)

	if err := h.noteRepo.Delete(c.Request.Context(), id, principal.ID); err != nil {
		h.respondNoteError(c, id, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "note deleted"})
}

func noteID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid note ID"})
		return 0, false
	}
	return id, true
}

// respondNoteError maps gateway misses to one 404 body. A nonexistent note
// and a note owned by someone else are reported identically on purpose.
func (h *noteHandler) respondNoteError(c *gin.Context, id int64, err error) {
	if errors.Is(err, repository.ErrNoteNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "note not found"})
		return
	}
	h.logger.Error("Note operation failed", zap.Int64("note_id", id), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal server error"})
}
