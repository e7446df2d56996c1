package userservice

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sushihentaime/blogpipe/internal/common"
)

// DateLayout is the wire format of birth dates.
const DateLayout = "2006-01-02"

type UserService struct {
	m       *UserModel
	c       common.Cache
	mb      common.MessageProducer
	logger  *slog.Logger
	metrics *common.Metrics
}

type UserModel struct {
	db *sql.DB
}

type User struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Password  Password   `json:"-"`
	Phone     string     `json:"phone,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	IsDeleted bool       `json:"is_deleted"`
}

type Password struct {
	Plain string `json:"-"`
	hash  []byte `json:"-"`
}

type CreateUserRequest struct {
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	Phone     string  `json:"phone"`
	BirthDate *string `json:"birth_date"`
}

// UpdateUserRequest is a partial update. A nil field keeps the stored value; a non-nil field replaces it.
type UpdateUserRequest struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	Phone     *string `json:"phone"`
	BirthDate *string `json:"birth_date"`
}

// userCreatedEvent is the payload published on user.created.
type userCreatedEvent struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
}
