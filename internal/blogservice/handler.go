package blogservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sushihentaime/blogpipe/internal/common"
)

const cacheEntity = "blog"

func NewBlogService(db *sql.DB, c common.Cache, mb common.MessageProducer, logger *slog.Logger, metrics *common.Metrics) *BlogService {
	return &BlogService{
		m:       newBlogModel(db),
		c:       c,
		mb:      mb,
		logger:  logger,
		metrics: metrics,
	}
}

// SubmitBlog sanitizes and validates req, then enqueues it on BlogQueue. The blog does not exist until the consumer persists it.
// Validation runs on the sanitized content, the same payload the consumer will validate again.
func (s *BlogService) SubmitBlog(ctx context.Context, req *CreateBlogRequest) error {
	if req == nil {
		return common.ErrInvalidInput
	}

	submission := CreateBlogRequest{
		Title:   req.Title,
		Content: sanitizeMarkdown(req.Content),
		UserID:  req.UserID,
	}

	v := common.NewValidator()
	validateCreateBlog(v, &submission)
	if !v.Valid() {
		return v.ValidationError()
	}

	exists, err := s.m.userExists(ctx, req.UserID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("user %s: %w", req.UserID, common.ErrRecordNotFound)
	}

	body, err := json.Marshal(submission)
	if err != nil {
		return err
	}

	msg := common.Message{ID: uuid.NewString(), Body: body}
	if err := s.mb.Publish(ctx, msg, common.BlogQueueKey, common.DefaultExchange); err != nil {
		return err
	}

	s.metrics.BlogSubmitted()
	s.logger.Info("blog submitted", slog.String("message_id", msg.ID), slog.String("user_id", req.UserID.String()))

	return nil
}

// GetBlogs returns a page of blogs, newest first.
func (s *BlogService) GetBlogs(ctx context.Context, limit, offset int) ([]Blog, error) {
	v := common.NewValidator()
	common.ValidatePage(v, limit, offset)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.m.getAll(ctx, limit, offset)
}

// GetBlogByID reads through the cache. Cache failures are logged and the store result is returned.
func (s *BlogService) GetBlogByID(ctx context.Context, id uuid.UUID) (*Blog, error) {
	key := common.CacheKeyBlog(id)

	var cached Blog
	ok, err := s.c.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("cache read failed", slog.String("key", key), slog.Any("error", err))
	}
	if ok {
		s.metrics.CacheHit(cacheEntity)
		return &cached, nil
	}
	s.metrics.CacheMiss(cacheEntity)

	b, err := s.m.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.c.Set(ctx, key, b, common.CacheTTL); err != nil {
		s.logger.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
	}

	return b, nil
}

func (s *BlogService) GetBlogsByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Blog, error) {
	v := common.NewValidator()
	validateUserID(v, userID)
	common.ValidatePage(v, limit, offset)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.m.getByUserID(ctx, userID, limit, offset)
}

// SearchBlogs runs a full-text search over blog content.
func (s *BlogService) SearchBlogs(ctx context.Context, query string, limit, offset int) ([]Blog, error) {
	v := common.NewValidator()
	validateSearchQuery(v, query)
	common.ValidatePage(v, limit, offset)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.m.search(ctx, query, limit, offset)
}

// UpdateBlog applies the non-nil fields of req and evicts the cached snapshot.
func (s *BlogService) UpdateBlog(ctx context.Context, id uuid.UUID, req *UpdateBlogRequest) (*Blog, error) {
	if req == nil {
		return nil, common.ErrInvalidInput
	}

	var content string
	if req.Content != nil {
		content = sanitizeMarkdown(*req.Content)
	}

	v := common.NewValidator()
	if req.Title != nil {
		validateTitle(v, *req.Title)
	}
	if req.Content != nil {
		validateContent(v, content)
	}
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	b, err := s.m.update(ctx, id, func(b *Blog) {
		if req.Title != nil {
			b.Title = *req.Title
		}
		if req.Content != nil {
			b.Content = content
		}
	})
	if err != nil {
		return nil, err
	}

	if err := common.Evict(ctx, s.c, common.CacheKeyBlog(id)); err != nil {
		return nil, err
	}

	return b, nil
}

func (s *BlogService) DeleteBlog(ctx context.Context, id uuid.UUID) error {
	if err := s.m.delete(ctx, id); err != nil {
		return err
	}

	return common.Evict(ctx, s.c, common.CacheKeyBlog(id))
}

// ReactToBlog records a like or dislike and evicts the cached snapshot, whose counters are now stale.
func (s *BlogService) ReactToBlog(ctx context.Context, id uuid.UUID, r Reaction) (*Reactions, error) {
	v := common.NewValidator()
	validateReaction(v, r)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	counts, err := s.m.react(ctx, id, r)
	if err != nil {
		return nil, err
	}

	if err := common.Evict(ctx, s.c, common.CacheKeyBlog(id)); err != nil {
		return nil, err
	}

	return counts, nil
}
