package blogservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sushihentaime/blogpipe/internal/common"
)

var (
	ErrUserForeignKey = errors.New("user_id does not exist")
)

func newBlogModel(db *sql.DB) *BlogModel {
	return &BlogModel{db: db}
}

// selectBlogs joins the owner summary onto every blog row.
const selectBlogs = `
	SELECT b.id, b.title, b.content, b.likes_count, b.dislikes_count, b.publish_date, b.update_date, b.user_id, u.name, u.email
	FROM blogs b
	JOIN users u ON u.id = b.user_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanBlog(row scanner, b *Blog) error {
	var updateDate sql.NullTime

	err := row.Scan(&b.ID, &b.Title, &b.Content, &b.LikesCount, &b.DislikesCount, &b.PublishDate, &updateDate, &b.UserID, &b.User.Name, &b.User.Email)
	if err != nil {
		return err
	}

	b.User.ID = b.UserID
	b.UpdateDate = nil
	if updateDate.Valid {
		t := updateDate.Time
		b.UpdateDate = &t
	}

	return nil
}

// insert persists b inside a single transaction. It reports false when a row with the same id already exists.
func (m *BlogModel) insert(ctx context.Context, b *Blog) (bool, error) {
	query := `
		INSERT INTO blogs (id, title, content, user_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`

	var inserted bool
	err := common.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, b.ID, b.Title, b.Content, b.UserID)
		if err != nil {
			switch {
			case common.ForeignKeyError(err, "blogs_user_id_fkey"):
				return ErrUserForeignKey
			default:
				return common.StoreError(err)
			}
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = rows == 1

		return nil
	})
	if err != nil {
		return false, err
	}

	return inserted, nil
}

// userExists reports whether id names a user that has not been soft deleted.
func (m *BlogModel) userExists(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND NOT is_deleted)`

	var exists bool
	if err := m.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, common.StoreError(err)
	}

	return exists, nil
}

func (m *BlogModel) getByID(ctx context.Context, id uuid.UUID) (*Blog, error) {
	query := selectBlogs + `
		WHERE b.id = $1`

	var b Blog
	err := scanBlog(m.db.QueryRowContext(ctx, query, id), &b)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, common.ErrRecordNotFound
		default:
			return nil, common.StoreError(err)
		}
	}

	return &b, nil
}

func (m *BlogModel) list(ctx context.Context, query string, args ...any) ([]Blog, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.StoreError(err)
	}
	defer rows.Close()

	blogs := []Blog{}
	for rows.Next() {
		var b Blog
		if err := scanBlog(rows, &b); err != nil {
			return nil, err
		}
		blogs = append(blogs, b)
	}

	if err := rows.Err(); err != nil {
		return nil, common.StoreError(err)
	}

	return blogs, nil
}

// getAll returns a page of blogs, newest first.
func (m *BlogModel) getAll(ctx context.Context, limit, offset int) ([]Blog, error) {
	query := selectBlogs + `
		ORDER BY b.publish_date DESC, b.id
		LIMIT $1 OFFSET $2`

	return m.list(ctx, query, limit, offset)
}

func (m *BlogModel) getByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Blog, error) {
	query := selectBlogs + `
		WHERE b.user_id = $1
		ORDER BY b.publish_date DESC, b.id
		LIMIT $2 OFFSET $3`

	return m.list(ctx, query, userID, limit, offset)
}

// search matches content against an English full-text query, best match first.
func (m *BlogModel) search(ctx context.Context, q string, limit, offset int) ([]Blog, error) {
	query := selectBlogs + `
		WHERE to_tsvector('english', b.content) @@ plainto_tsquery('english', $1)
		ORDER BY ts_rank(to_tsvector('english', b.content), plainto_tsquery('english', $1)) DESC, b.publish_date DESC
		LIMIT $2 OFFSET $3`

	return m.list(ctx, query, q, limit, offset)
}

// update locks the blog row, lets apply patch it and writes it back in one transaction. update_date is always refreshed.
func (m *BlogModel) update(ctx context.Context, id uuid.UUID, apply func(b *Blog)) (*Blog, error) {
	var b Blog

	err := common.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		query := selectBlogs + `
			WHERE b.id = $1
			FOR UPDATE OF b`

		err := scanBlog(tx.QueryRowContext(ctx, query, id), &b)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return common.ErrRecordNotFound
			default:
				return common.StoreError(err)
			}
		}

		apply(&b)
		now := time.Now().UTC().Truncate(time.Second)
		b.UpdateDate = &now

		query = `
			UPDATE blogs
			SET title = $1, content = $2, update_date = $3
			WHERE id = $4`

		_, err = tx.ExecContext(ctx, query, b.Title, b.Content, now, b.ID)
		return common.StoreError(err)
	})
	if err != nil {
		return nil, err
	}

	return &b, nil
}

func (m *BlogModel) delete(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM blogs
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

// react increments one counter atomically and returns both counters after the increment.
func (m *BlogModel) react(ctx context.Context, id uuid.UUID, r Reaction) (*Reactions, error) {
	column := "likes_count"
	if r == Dislike {
		column = "dislikes_count"
	}

	query := fmt.Sprintf(`
		UPDATE blogs
		SET %[1]s = %[1]s + 1
		WHERE id = $1
		RETURNING likes_count, dislikes_count`, column)

	var counts Reactions
	err := m.db.QueryRowContext(ctx, query, id).Scan(&counts.LikesCount, &counts.DislikesCount)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, common.ErrRecordNotFound
		default:
			return nil, common.StoreError(err)
		}
	}

	return &counts, nil
}
