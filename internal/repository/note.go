package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"notesvc/internal/models"
)

// ErrNoteNotFound is returned when a note does not exist or is owned by
// another user. The two cases are deliberately indistinguishable.
var ErrNoteNotFound = errors.New("note not found")

// NotePatch carries the client-updatable fields of a note. Nil fields are
// left unchanged. Ownership is not patchable.
type NotePatch struct {
	Title *string
	Body  *string
}

// NoteRepository is the ownership-scoped gateway to notes. Every lookup,
// update and delete requires an owner id and folds it into the statement;
// there is no way to address a note without one. Update and Delete are
// single conditional statements, so the ownership check and the mutation
// happen in one atomic round trip.
type NoteRepository interface {
	Create(ctx context.Context, note *models.Note) error
	GetByID(ctx context.Context, id, ownerID int64) (*models.Note, error)
	List(ctx context.Context, ownerID int64, offset, limit int) ([]*models.Note, int64, error)
	Update(ctx context.Context, id, ownerID int64, patch NotePatch) (*models.Note, error)
	Delete(ctx context.Context, id, ownerID int64) error
}

type noteRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewNoteRepository(db *sqlx.DB, logger *zap.Logger) NoteRepository {
	return &noteRepository{db: db, logger: logger}
}

func (r *noteRepository) Create(ctx context.Context, note *models.Note) error {
	query := `INSERT INTO notes (title, body, owner_id) VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`
	return r.db.QueryRowxContext(ctx, query, note.Title, note.Body, note.OwnerID).StructScan(note)
}

func (r *noteRepository) GetByID(ctx context.Context, id, ownerID int64) (*models.Note, error) {
	var note models.Note
	query := `SELECT id, title, body, owner_id, created_at, updated_at FROM notes WHERE id = $1 AND owner_id = $2`
	err := r.db.GetContext(ctx, &note, query, id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}
	return &note, nil
}

func (r *noteRepository) List(ctx context.Context, ownerID int64, offset, limit int) ([]*models.Note, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM notes WHERE owner_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, ownerID); err != nil {
		return nil, 0, err
	}

	notes := []*models.Note{}
	query := `SELECT id, title, body, owner_id, created_at, updated_at FROM notes
	          WHERE owner_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &notes, query, ownerID, limit, offset); err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

func (r *noteRepository) Update(ctx context.Context, id, ownerID int64, patch NotePatch) (*models.Note, error) {
	var note models.Note
	query := `UPDATE notes
	          SET title = COALESCE($3, title), body = COALESCE($4, body), updated_at = now()
	          WHERE id = $1 AND owner_id = $2
	          RETURNING id, title, body, owner_id, created_at, updated_at`
	err := r.db.QueryRowxContext(ctx, query, id, ownerID, patch.Title, patch.Body).StructScan(&note)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}
	return &note, nil
}

func (r *noteRepository) Delete(ctx context.Context, id, ownerID int64) error {
	query := `DELETE FROM notes WHERE id = $1 AND owner_id = $2 RETURNING id`
	var deletedID int64
	err := r.db.QueryRowxContext(ctx, query, id, ownerID).Scan(&deletedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoteNotFound
		}
		return err
	}
	return nil
}
