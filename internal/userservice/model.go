package userservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sushihentaime/blogpipe/internal/common"
)

var (
	ErrDuplicateEmail = errors.New("duplicate email")
)

func newUserModel(db *sql.DB) *UserModel {
	return &UserModel{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner, u *User, extra ...any) error {
	var birthDate sql.NullTime

	dest := append([]any{&u.ID, &u.Name, &u.Email, &u.Phone, &u.CreatedAt, &birthDate, &u.IsDeleted}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}

	u.BirthDate = nil
	if birthDate.Valid {
		t := birthDate.Time
		u.BirthDate = &t
	}

	return nil
}

func (m *UserModel) insert(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, name, email, password, phone, birth_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	args := []any{
		u.ID,
		u.Name,
		u.Email,
		u.Password.hash,
		u.Phone,
		u.BirthDate,
	}

	err := m.db.QueryRowContext(ctx, query, args...).Scan(&u.CreatedAt)
	if err != nil {
		switch {
		case common.UniqueViolationError(err, "users_email_key"):
			return ErrDuplicateEmail
		default:
			return common.StoreError(err)
		}
	}

	return nil
}

// getByID returns a user that has not been soft deleted.
func (m *UserModel) getByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, name, email, phone, created_at, birth_date, is_deleted
		FROM users
		WHERE id = $1 AND is_deleted = false`

	var u User
	err := scanUser(m.db.QueryRowContext(ctx, query, id), &u)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, common.ErrRecordNotFound
		default:
			return nil, common.StoreError(err)
		}
	}

	return &u, nil
}

// getAll lists users that have not been soft deleted, newest first.
func (m *UserModel) getAll(ctx context.Context, limit, offset int) ([]User, error) {
	query := `
		SELECT id, name, email, phone, created_at, birth_date, is_deleted
		FROM users
		WHERE is_deleted = false
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`

	rows, err := m.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, common.StoreError(err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := scanUser(rows, &u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, common.StoreError(err)
	}

	return users, nil
}

// update locks the row, lets apply patch the current state and writes every column back in one transaction.
// It also returns the ids of the user's blogs, whose snapshots embed the owner's name and email.
func (m *UserModel) update(ctx context.Context, id uuid.UUID, apply func(u *User)) (*User, []uuid.UUID, error) {
	var (
		u       User
		blogIDs []uuid.UUID
	)

	err := common.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		query := `
			SELECT id, name, email, phone, created_at, birth_date, is_deleted, password
			FROM users
			WHERE id = $1 AND is_deleted = false
			FOR UPDATE`

		err := scanUser(tx.QueryRowContext(ctx, query, id), &u, &u.Password.hash)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return common.ErrRecordNotFound
			default:
				return common.StoreError(err)
			}
		}

		apply(&u)

		query = `
			UPDATE users
			SET name = $1, email = $2, password = $3, phone = $4, birth_date = $5
			WHERE id = $6`

		_, err = tx.ExecContext(ctx, query, u.Name, u.Email, u.Password.hash, u.Phone, u.BirthDate, u.ID)
		if err != nil {
			switch {
			case common.UniqueViolationError(err, "users_email_key"):
				return ErrDuplicateEmail
			default:
				return common.StoreError(err)
			}
		}

		blogIDs, err = ownedBlogIDs(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return &u, blogIDs, nil
}

// delete removes the user row and returns the ids of the blogs that went with it through ON DELETE CASCADE.
func (m *UserModel) delete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var blogIDs []uuid.UUID

	err := common.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		var err error
		blogIDs, err = ownedBlogIDs(ctx, tx, id)
		if err != nil {
			return err
		}

		query := `
			DELETE FROM users
			WHERE id = $1`

		res, err := tx.ExecContext(ctx, query, id)
		if err != nil {
			return common.StoreError(err)
		}

		return expectOneRow(res)
	})
	if err != nil {
		return nil, err
	}

	return blogIDs, nil
}

func ownedBlogIDs(ctx context.Context, tx *sql.Tx, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM blogs
		WHERE user_id = $1`

	rows, err := tx.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, common.StoreError(err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, common.StoreError(err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, common.StoreError(err)
	}

	return ids, nil
}

func (m *UserModel) softDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET is_deleted = true
		WHERE id = $1 AND is_deleted = false`

	res, err := m.db.ExecContext(ctx, query, id)
	if err != nil {
		return common.StoreError(err)
	}

	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
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
