package commentservice

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID        uuid.UUID `json:"id"`
	Content   string    `json:"content"`
	BlogID    uuid.UUID `json:"blog_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type CommentModel struct {
	db *sql.DB
}

type CommentService struct {
	m      *CommentModel
	logger *slog.Logger
}

type CreateCommentRequest struct {
	Content string    `json:"content"`
	BlogID  uuid.UUID `json:"blog_id"`
	UserID  uuid.UUID `json:"user_id"`
}

type UpdateCommentRequest struct {
	Content *string `json:"content"`
}
