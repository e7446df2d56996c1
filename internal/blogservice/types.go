package blogservice

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sushihentaime/blogpipe/internal/common"
)

type Blog struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	// Content is stored in Markdown format.
	Content       string     `json:"content"`
	LikesCount    int        `json:"likes_count"`
	DislikesCount int        `json:"dislikes_count"`
	PublishDate   time.Time  `json:"publish_date"`
	UpdateDate    *time.Time `json:"update_date,omitempty"`
	UserID        uuid.UUID  `json:"user_id"`
	User          Owner      `json:"user"`
}

// Owner is the summary of the owning user joined into every blog read.
type Owner struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

type BlogModel struct {
	db *sql.DB
}

type BlogService struct {
	m       *BlogModel
	c       common.Cache
	mb      common.MessageProducer
	logger  *slog.Logger
	metrics *common.Metrics
}

// CreateBlogRequest is both the API payload and the body of a BlogQueue message.
type CreateBlogRequest struct {
	Title   string    `json:"title"`
	Content string    `json:"content"`
	UserID  uuid.UUID `json:"user_id"`
}

// UpdateBlogRequest is a partial update. A nil field keeps the stored value.
type UpdateBlogRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type Reaction string

const (
	Like    Reaction = "like"
	Dislike Reaction = "dislike"
)

type Reactions struct {
	LikesCount    int `json:"likes_count"`
	DislikesCount int `json:"dislikes_count"`
}
