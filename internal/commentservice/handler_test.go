package commentservice

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sushihentaime/blogpipe/internal/common"
)

var commentColumns = []string{"id", "content", "blog_id", "user_id", "created_at"}

func newMockService(t *testing.T) (*CommentService, sqlmock.Sqlmock) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewCommentService(db, slog.New(slog.NewJSONHandler(io.Discard, nil))), dbMock
}

func TestCreateComment(t *testing.T) {
	blogID, userID := uuid.New(), uuid.New()
	insert := regexp.QuoteMeta("INSERT INTO comments")

	testCases := []struct {
		name       string
		req        *CreateCommentRequest
		setup      func(dbMock sqlmock.Sqlmock)
		errorField string
	}{
		{
			name: "valid comment",
			req:  &CreateCommentRequest{Content: "Nice post", BlogID: blogID, UserID: userID},
			setup: func(dbMock sqlmock.Sqlmock) {
				dbMock.ExpectQuery(insert).
					WithArgs(sqlmock.AnyArg(), "Nice post", blogID, userID).
					WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
			},
		},
		{
			name:       "empty content",
			req:        &CreateCommentRequest{BlogID: blogID, UserID: userID},
			setup:      func(sqlmock.Sqlmock) {},
			errorField: "content",
		},
		{
			name:       "content too long",
			req:        &CreateCommentRequest{Content: strings.Repeat("a", 501), BlogID: blogID, UserID: userID},
			setup:      func(sqlmock.Sqlmock) {},
			errorField: "content",
		},
		{
			name:       "missing blog id",
			req:        &CreateCommentRequest{Content: "Nice post", UserID: userID},
			setup:      func(sqlmock.Sqlmock) {},
			errorField: "blog_id",
		},
		{
			name: "unknown blog",
			req:  &CreateCommentRequest{Content: "Nice post", BlogID: blogID, UserID: userID},
			setup: func(dbMock sqlmock.Sqlmock) {
				dbMock.ExpectQuery(insert).WillReturnError(&pq.Error{Code: "23503", Constraint: "comments_blog_id_fkey"})
			},
			errorField: "blog_id",
		},
		{
			name: "unknown user",
			req:  &CreateCommentRequest{Content: "Nice post", BlogID: blogID, UserID: userID},
			setup: func(dbMock sqlmock.Sqlmock) {
				dbMock.ExpectQuery(insert).WillReturnError(&pq.Error{Code: "23503", Constraint: "comments_user_id_fkey"})
			},
			errorField: "user_id",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, dbMock := newMockService(t)
			tc.setup(dbMock)

			c, err := s.CreateComment(context.Background(), tc.req)
			if tc.errorField == "" {
				require.NoError(t, err)
				assert.NotEqual(t, uuid.Nil, c.ID)
				assert.Equal(t, blogID, c.BlogID)
			} else {
				assert.ErrorIs(t, err, common.ErrInvalidInput)
				var ve common.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Contains(t, ve.Errors, tc.errorField)
			}

			assert.NoError(t, dbMock.ExpectationsWereMet())
		})
	}
}

func TestListComments(t *testing.T) {
	s, dbMock := newMockService(t)
	blogID, userID := uuid.New(), uuid.New()

	dbMock.ExpectQuery(regexp.QuoteMeta("WHERE blog_id = $1")).
		WithArgs(blogID, 10, 0).
		WillReturnRows(sqlmock.NewRows(commentColumns).
			AddRow(uuid.NewString(), "first", blogID.String(), userID.String(), time.Now()).
			AddRow(uuid.NewString(), "second", blogID.String(), userID.String(), time.Now()))

	comments, err := s.GetCommentsByBlogID(context.Background(), blogID, 10, 0)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Content)

	dbMock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1")).
		WithArgs(userID, 10, 0).
		WillReturnRows(sqlmock.NewRows(commentColumns))

	comments, err = s.GetCommentsByUserID(context.Background(), userID, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, comments)
	assert.Empty(t, comments)

	_, err = s.GetCommentsByBlogID(context.Background(), uuid.Nil, 10, 0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestUpdateAndDeleteComment(t *testing.T) {
	s, dbMock := newMockService(t)
	id, blogID, userID := uuid.New(), uuid.New(), uuid.New()
	content := "Edited"

	dbMock.ExpectQuery(regexp.QuoteMeta("UPDATE comments")).
		WithArgs(content, id).
		WillReturnRows(sqlmock.NewRows(commentColumns).AddRow(id.String(), content, blogID.String(), userID.String(), time.Now()))

	c, err := s.UpdateComment(context.Background(), id, &UpdateCommentRequest{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, content, c.Content)

	dbMock.ExpectQuery(regexp.QuoteMeta("UPDATE comments")).WithArgs(content, id).WillReturnError(sql.ErrNoRows)
	_, err = s.UpdateComment(context.Background(), id, &UpdateCommentRequest{Content: &content})
	assert.ErrorIs(t, err, common.ErrRecordNotFound)

	_, err = s.UpdateComment(context.Background(), id, &UpdateCommentRequest{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	dbMock.ExpectExec(regexp.QuoteMeta("DELETE FROM comments")).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, s.DeleteComment(context.Background(), id))

	dbMock.ExpectExec(regexp.QuoteMeta("DELETE FROM comments")).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.DeleteComment(context.Background(), id), common.ErrRecordNotFound)

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestCommentsCascadeWithPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db := common.TestDB("file://../../migrations", t)
	s := NewCommentService(db, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	ctx := context.Background()

	userID, blogID := uuid.New(), uuid.New()
	_, err := db.Exec(`INSERT INTO users (id, name, email, password, phone) VALUES ($1, 'Jane Doe', 'jane@example.com', 'x', '555-0100')`, userID)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO blogs (id, title, content, user_id) VALUES ($1, 'T', 'C', $2)`, blogID, userID)
	require.NoError(t, err)

	c, err := s.CreateComment(ctx, &CreateCommentRequest{Content: "Nice post", BlogID: blogID, UserID: userID})
	require.NoError(t, err)

	_, err = s.CreateComment(ctx, &CreateCommentRequest{Content: "Nice post", BlogID: uuid.New(), UserID: userID})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	comments, err := s.GetCommentsByBlogID(ctx, blogID, 10, 0)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, c.ID, comments[0].ID)

	_, err = db.Exec(`DELETE FROM users WHERE id = $1`, userID)
	require.NoError(t, err)

	comments, err = s.GetCommentsByUserID(ctx, userID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, comments)
}
