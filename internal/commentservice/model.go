package commentservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sushihentaime/blogpipe/internal/common"
)

func newCommentModel(db *sql.DB) *CommentModel {
	return &CommentModel{db: db}
}

func (m *CommentModel) insert(ctx context.Context, c *Comment) error {
	query := `
		INSERT INTO comments (id, content, blog_id, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := m.db.QueryRowContext(ctx, query, c.ID, c.Content, c.BlogID, c.UserID).Scan(&c.CreatedAt)
	if err != nil {
		switch {
		case common.ForeignKeyError(err, "comments_blog_id_fkey"):
			return common.ValidationError{Errors: map[string]string{"blog_id": "does not exist"}}
		case common.ForeignKeyError(err, "comments_user_id_fkey"):
			return common.ValidationError{Errors: map[string]string{"user_id": "does not exist"}}
		default:
			return common.StoreError(err)
		}
	}

	return nil
}

func (m *CommentModel) list(ctx context.Context, query string, args ...any) ([]Comment, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.StoreError(err)
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.Content, &c.BlogID, &c.UserID, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, common.StoreError(err)
	}

	return comments, nil
}

// getByBlogID lists the comments of a blog in the order they were written.
func (m *CommentModel) getByBlogID(ctx context.Context, blogID uuid.UUID, limit, offset int) ([]Comment, error) {
	query := `
		SELECT id, content, blog_id, user_id, created_at
		FROM comments
		WHERE blog_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`

	return m.list(ctx, query, blogID, limit, offset)
}

// getByUserID lists the comments a user wrote, newest first.
func (m *CommentModel) getByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Comment, error) {
	query := `
		SELECT id, content, blog_id, user_id, created_at
		FROM comments
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	return m.list(ctx, query, userID, limit, offset)
}

func (m *CommentModel) update(ctx context.Context, id uuid.UUID, content string) (*Comment, error) {
	query := `
		UPDATE comments
		SET content = $1
		WHERE id = $2
		RETURNING id, content, blog_id, user_id, created_at`

	var c Comment
	err := m.db.QueryRowContext(ctx, query, content, id).Scan(&c.ID, &c.Content, &c.BlogID, &c.UserID, &c.CreatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, common.ErrRecordNotFound
		default:
			return nil, common.StoreError(err)
		}
	}

	return &c, nil
}

func (m *CommentModel) delete(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM comments
		WHERE id = $1`

	res, err := m.db.ExecContext(ctx, query, id)
	if err != nil {
		return common.StoreError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows != 1 {
		switch {
		case rows == 0:
			return common.ErrRecordNotFound
		default:
			return fmt.Errorf("expected 1 row to be affected, got %d", rows)
		}
	}

	return nil
}
