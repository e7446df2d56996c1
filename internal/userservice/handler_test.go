package userservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/sushihentaime/blogpipe/internal/common"
)

func strptr(s string) *string {
	return &s
}

func testUserRequest() *CreateUserRequest {
	return &CreateUserRequest{
		Name:      "Jane Doe",
		Email:     "jane@example.com",
		Password:  "Password!23",
		Phone:     "+1 555 0100",
		BirthDate: strptr("1990-04-12"),
	}
}

var userColumns = []string{"id", "name", "email", "phone", "created_at", "birth_date", "is_deleted"}

type failingCache struct{ common.Cache }

func (failingCache) Delete(context.Context, string) error {
	return errors.New("connection refused")
}

func newMockService(t *testing.T, c common.Cache, mb common.MessageProducer) (*UserService, sqlmock.Sqlmock) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	return NewUserService(db, c, mb, logger, common.NewMetrics()), dbMock
}

func TestCreateUserValidation(t *testing.T) {
	s, dbMock := newMockService(t, common.NewMemoryCache(time.Minute, time.Minute), nil)

	testCases := []struct {
		name   string
		mutate func(r *CreateUserRequest)
		field  string
	}{
		{name: "empty name", mutate: func(r *CreateUserRequest) { r.Name = "" }, field: "name"},
		{name: "bad email", mutate: func(r *CreateUserRequest) { r.Email = "jane" }, field: "email"},
		{name: "weak password", mutate: func(r *CreateUserRequest) { r.Password = "password" }, field: "password"},
		{name: "empty phone", mutate: func(r *CreateUserRequest) { r.Phone = "" }, field: "phone"},
		{name: "bad birth date", mutate: func(r *CreateUserRequest) { r.BirthDate = strptr("yesterday") }, field: "birth_date"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := testUserRequest()
			tc.mutate(req)

			u, err := s.CreateUser(context.Background(), req)
			assert.Nil(t, u)
			assert.ErrorIs(t, err, common.ErrInvalidInput)

			var ve common.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Errors, tc.field)
		})
	}

	_, err := s.CreateUser(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestCreateUserPublishesEvent(t *testing.T) {
	mb := new(common.MockMessageProducer)
	s, dbMock := newMockService(t, common.NewMemoryCache(time.Minute, time.Minute), mb)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	dbMock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "Jane Doe", "jane@example.com", sqlmock.AnyArg(), "+1 555 0100", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	mb.On("Publish", mock.Anything, mock.MatchedBy(func(msg common.Message) bool {
		var ev userCreatedEvent
		if err := json.Unmarshal(msg.Body, &ev); err != nil {
			return false
		}
		return msg.ID != "" && ev.Email == "jane@example.com" && ev.Name == "Jane Doe"
	}), common.UserCreatedKey, common.UserExchange).Return(nil).Once()

	u, err := s.CreateUser(context.Background(), testUserRequest())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, created, u.CreatedAt)
	assert.Equal(t, "1990-04-12", u.BirthDate.Format(DateLayout))
	assert.NotEmpty(t, u.Password.hash)

	b, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "password")
	assert.NotContains(t, string(b), "Password!23")

	mb.AssertExpectations(t)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestCreateUserPublishFailureIsNotFatal(t *testing.T) {
	mb := new(common.MockMessageProducer)
	s, dbMock := newMockService(t, common.NewMemoryCache(time.Minute, time.Minute), mb)

	dbMock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mb.On("Publish", mock.Anything, mock.Anything, common.UserCreatedKey, common.UserExchange).
		Return(common.ErrQueueUnavailable).Once()

	u, err := s.CreateUser(context.Background(), testUserRequest())
	assert.NoError(t, err)
	assert.NotNil(t, u)
	mb.AssertExpectations(t)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s, dbMock := newMockService(t, common.NewMemoryCache(time.Minute, time.Minute), nil)

	dbMock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	_, err := s.CreateUser(context.Background(), testUserRequest())
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestGetUserByIDReadThrough(t *testing.T) {
	c := common.NewMemoryCache(time.Minute, time.Minute)
	s, dbMock := newMockService(t, c, nil)

	id := uuid.New()
	dbMock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(id.String(), "Jane Doe", "jane@example.com", "+1 555 0100", time.Now(), nil, false))

	first, err := s.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, first.BirthDate)

	// served from the cache, no second query expected
	second, err := s.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, first.Email, second.Email)

	var cached User
	ok, err := c.Get(context.Background(), common.CacheKeyUser(id), &cached)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, cached.ID)

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestGetUserByIDNotFound(t *testing.T) {
	c := common.NewMemoryCache(time.Minute, time.Minute)
	s, dbMock := newMockService(t, c, nil)

	id := uuid.New()
	dbMock.ExpectQuery(regexp.QuoteMeta("FROM users")).WithArgs(id).WillReturnError(sql.ErrNoRows)

	_, err := s.GetUserByID(context.Background(), id)
	assert.ErrorIs(t, err, common.ErrRecordNotFound)

	ok, _ := c.Get(context.Background(), common.CacheKeyUser(id), &User{})
	assert.False(t, ok)
}

func TestGetUserByIDStoreUnavailable(t *testing.T) {
	s, dbMock := newMockService(t, common.NewMemoryCache(time.Minute, time.Minute), nil)

	id := uuid.New()
	dbMock.ExpectQuery(regexp.QuoteMeta("FROM users")).WithArgs(id).WillReturnError(&net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")})

	_, err := s.GetUserByID(context.Background(), id)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestGetUsersPagination(t *testing.T) {
	s, dbMock := newMockService(t, common.NewMemoryCache(time.Minute, time.Minute), nil)

	_, err := s.GetUsers(context.Background(), 0, 0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = s.GetUsers(context.Background(), 10, -1)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	dbMock.ExpectQuery(regexp.QuoteMeta("WHERE is_deleted = false")).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(uuid.NewString(), "Jane Doe", "jane@example.com", "", time.Now(), nil, false).
			AddRow(uuid.NewString(), "John Doe", "john@example.com", "", time.Now(), time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC), false))

	users, err := s.GetUsers(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.NotNil(t, users[1].BirthDate)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestUpdateUserMergesAndEvicts(t *testing.T) {
	c := common.NewMemoryCache(time.Minute, time.Minute)
	s, dbMock := newMockService(t, c, nil)

	id, blogID := uuid.New(), uuid.New()
	key, blogKey := common.CacheKeyUser(id), common.CacheKeyBlog(blogID)
	require.NoError(t, c.Set(context.Background(), key, User{ID: id, Name: "Stale Name"}, common.CacheTTL))
	require.NoError(t, c.Set(context.Background(), blogKey, map[string]any{"id": blogID, "user": map[string]any{"name": "Jane Doe"}}, common.CacheTTL))

	dbMock.ExpectBegin()
	dbMock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(append(userColumns, "password")).
			AddRow(id.String(), "Jane Doe", "jane@example.com", "+1 555 0100", time.Now(), nil, false, []byte("hash")))
	dbMock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs("Jane Smith", "jane@example.com", []byte("hash"), "+1 555 0100", nil, id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectQuery(regexp.QuoteMeta("FROM blogs")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(blogID.String()))
	dbMock.ExpectCommit()

	u, err := s.UpdateUser(context.Background(), id, &UpdateUserRequest{Name: strptr("Jane Smith")})
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", u.Name)
	assert.Equal(t, "jane@example.com", u.Email)

	ok, err := c.Get(context.Background(), key, &User{})
	require.NoError(t, err)
	assert.False(t, ok)

	// the blog snapshot embeds the old owner name
	ok, err = c.Get(context.Background(), blogKey, &map[string]any{})
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestUpdateUserErrors(t *testing.T) {
	id := uuid.New()

	t.Run("invalid patch", func(t *testing.T) {
		s, dbMock := newMockService(t, common.NewMemoryCache(time.Minute, time.Minute), nil)
		_, err := s.UpdateUser(context.Background(), id, &UpdateUserRequest{Email: strptr("nope")})
		assert.ErrorIs(t, err, common.ErrInvalidInput)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("missing user", func(t *testing.T) {
		s, dbMock := newMockService(t, common.NewMemoryCache(time.Minute, time.Minute), nil)
		dbMock.ExpectBegin()
		dbMock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs(id).WillReturnError(sql.ErrNoRows)
		dbMock.ExpectRollback()

		_, err := s.UpdateUser(context.Background(), id, &UpdateUserRequest{Name: strptr("Jane Smith")})
		assert.ErrorIs(t, err, common.ErrRecordNotFound)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("cache unavailable", func(t *testing.T) {
		s, dbMock := newMockService(t, failingCache{common.NewMemoryCache(time.Minute, time.Minute)}, nil)
		expectDeleteUser(dbMock, id, 1)

		err := s.DeleteUser(context.Background(), id)
		assert.ErrorIs(t, err, common.ErrCacheUnavailable)
	})
}

func expectDeleteUser(dbMock sqlmock.Sqlmock, id uuid.UUID, affected int64, blogIDs ...uuid.UUID) {
	rows := sqlmock.NewRows([]string{"id"})
	for _, blogID := range blogIDs {
		rows.AddRow(blogID.String())
	}

	dbMock.ExpectBegin()
	dbMock.ExpectQuery(regexp.QuoteMeta("FROM blogs")).WithArgs(id).WillReturnRows(rows)
	dbMock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, affected))
	if affected == 1 {
		dbMock.ExpectCommit()
	} else {
		dbMock.ExpectRollback()
	}
}

func TestDeleteAndSoftDeleteUser(t *testing.T) {
	c := common.NewMemoryCache(time.Minute, time.Minute)
	s, dbMock := newMockService(t, c, nil)

	id := uuid.New()
	key := common.CacheKeyUser(id)

	require.NoError(t, c.Set(context.Background(), key, User{ID: id}, common.CacheTTL))
	dbMock.ExpectExec(regexp.QuoteMeta("SET is_deleted = true")).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.SoftDeleteUser(context.Background(), id))
	ok, _ := c.Get(context.Background(), key, &User{})
	assert.False(t, ok)

	dbMock.ExpectExec(regexp.QuoteMeta("SET is_deleted = true")).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.SoftDeleteUser(context.Background(), id), common.ErrRecordNotFound)

	require.NoError(t, c.Set(context.Background(), key, User{ID: id}, common.CacheTTL))
	expectDeleteUser(dbMock, id, 1)
	require.NoError(t, s.DeleteUser(context.Background(), id))
	ok, _ = c.Get(context.Background(), key, &User{})
	assert.False(t, ok)

	expectDeleteUser(dbMock, id, 0)
	assert.ErrorIs(t, s.DeleteUser(context.Background(), id), common.ErrRecordNotFound)

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestDeleteUserEvictsCascadedBlogs(t *testing.T) {
	c := common.NewMemoryCache(time.Minute, time.Minute)
	s, dbMock := newMockService(t, c, nil)

	id := uuid.New()
	blogIDs := []uuid.UUID{uuid.New(), uuid.New()}
	other := uuid.New()

	for _, blogID := range append([]uuid.UUID{other}, blogIDs...) {
		require.NoError(t, c.Set(context.Background(), common.CacheKeyBlog(blogID), map[string]any{"title": "T"}, common.CacheTTL))
	}

	expectDeleteUser(dbMock, id, 1, blogIDs...)
	require.NoError(t, s.DeleteUser(context.Background(), id))

	for _, blogID := range blogIDs {
		ok, err := c.Get(context.Background(), common.CacheKeyBlog(blogID), &map[string]any{})
		require.NoError(t, err)
		assert.False(t, ok, "blog %s still cached after its owner was deleted", blogID)
	}

	ok, err := c.Get(context.Background(), common.CacheKeyBlog(other), &map[string]any{})
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestUserServiceWithPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db := common.TestDB("file://../../migrations", t)
	c := common.NewMemoryCache(time.Minute, time.Minute)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	s := NewUserService(db, c, nil, logger, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	u, err := s.CreateUser(ctx, testUserRequest())
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, testUserRequest())
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", got.Email)

	updated, err := s.UpdateUser(ctx, u.ID, &UpdateUserRequest{Phone: strptr("+44 20 7946 0000")})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", updated.Name)
	assert.Equal(t, "+44 20 7946 0000", updated.Phone)

	got, err = s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "+44 20 7946 0000", got.Phone)

	require.NoError(t, s.SoftDeleteUser(ctx, u.ID))
	_, err = s.GetUserByID(ctx, u.ID)
	assert.ErrorIs(t, err, common.ErrRecordNotFound)

	users, err := s.GetUsers(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, users)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, s.DeleteUser(ctx, u.ID))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count))
	assert.Equal(t, 0, count)
}
