package commentservice

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sushihentaime/blogpipe/internal/common"
)

func NewCommentService(db *sql.DB, logger *slog.Logger) *CommentService {
	return &CommentService{
		m:      newCommentModel(db),
		logger: logger,
	}
}

// CreateComment stores a comment. Unknown blog or user ids come back as a ValidationError on that field.
func (s *CommentService) CreateComment(ctx context.Context, req *CreateCommentRequest) (*Comment, error) {
	if req == nil {
		return nil, common.ErrInvalidInput
	}

	v := common.NewValidator()
	validateContent(v, req.Content)
	validateID(v, req.BlogID, "blog_id")
	validateID(v, req.UserID, "user_id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	c := Comment{
		ID:      uuid.New(),
		Content: req.Content,
		BlogID:  req.BlogID,
		UserID:  req.UserID,
	}

	if err := s.m.insert(ctx, &c); err != nil {
		return nil, err
	}

	s.logger.Info("comment created", slog.String("comment_id", c.ID.String()), slog.String("blog_id", c.BlogID.String()))

	return &c, nil
}

func (s *CommentService) GetCommentsByBlogID(ctx context.Context, blogID uuid.UUID, limit, offset int) ([]Comment, error) {
	v := common.NewValidator()
	validateID(v, blogID, "blog_id")
	common.ValidatePage(v, limit, offset)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.m.getByBlogID(ctx, blogID, limit, offset)
}

func (s *CommentService) GetCommentsByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Comment, error) {
	v := common.NewValidator()
	validateID(v, userID, "user_id")
	common.ValidatePage(v, limit, offset)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.m.getByUserID(ctx, userID, limit, offset)
}

// UpdateComment replaces the content, which is the only mutable field.
func (s *CommentService) UpdateComment(ctx context.Context, id uuid.UUID, req *UpdateCommentRequest) (*Comment, error) {
	if req == nil || req.Content == nil {
		return nil, common.ValidationError{Errors: map[string]string{"content": "must be provided"}}
	}

	v := common.NewValidator()
	validateContent(v, *req.Content)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.m.update(ctx, id, *req.Content)
}

func (s *CommentService) DeleteComment(ctx context.Context, id uuid.UUID) error {
	return s.m.delete(ctx, id)
}
