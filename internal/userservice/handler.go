package userservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sushihentaime/blogpipe/internal/common"
)

const cacheEntity = "user"

// NewUserService builds the service. mb may be nil, in which case no user.created event is published.
func NewUserService(db *sql.DB, c common.Cache, mb common.MessageProducer, logger *slog.Logger, metrics *common.Metrics) *UserService {
	return &UserService{
		m:       newUserModel(db),
		c:       c,
		mb:      mb,
		logger:  logger,
		metrics: metrics,
	}
}

// CreateUser creates a new user account and publish an user.created event.
func (s *UserService) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if req == nil {
		return nil, common.ErrInvalidInput
	}

	v := common.NewValidator()
	validateName(v, req.Name)
	validateEmail(v, req.Email)
	validatePassword(v, req.Password)
	validatePhone(v, req.Phone)

	var birthDate *time.Time
	if req.BirthDate != nil {
		birthDate = validateBirthDate(v, *req.BirthDate)
	}

	if !v.Valid() {
		return nil, v.ValidationError()
	}

	u := User{
		ID:        uuid.New(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		BirthDate: birthDate,
	}

	if err := u.Password.set(req.Password); err != nil {
		return nil, err
	}

	if err := s.m.insert(ctx, &u); err != nil {
		return nil, err
	}

	s.publishUserCreated(ctx, &u)

	return &u, nil
}

// publishUserCreated hands the new account to the mail notifier. The account already exists, so a failure is only logged.
func (s *UserService) publishUserCreated(ctx context.Context, u *User) {
	if s.mb == nil {
		return
	}

	body, err := json.Marshal(userCreatedEvent{UserID: u.ID, Name: u.Name, Email: u.Email})
	if err != nil {
		s.logger.Error("could not encode user.created event", slog.String("user_id", u.ID.String()), slog.Any("error", err))
		return
	}

	msg := common.Message{ID: uuid.NewString(), Body: body}
	if err := s.mb.Publish(ctx, msg, common.UserCreatedKey, common.UserExchange); err != nil {
		s.logger.Error("could not publish user.created event", slog.String("user_id", u.ID.String()), slog.Any("error", err))
	}
}

func (s *UserService) GetUsers(ctx context.Context, limit, offset int) ([]User, error) {
	v := common.NewValidator()
	common.ValidatePage(v, limit, offset)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.m.getAll(ctx, limit, offset)
}

// GetUserByID reads through the cache. Cache failures are logged and the store result is returned.
func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	key := common.CacheKeyUser(id)

	var cached User
	ok, err := s.c.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("cache read failed", slog.String("key", key), slog.Any("error", err))
	}
	if ok {
		s.metrics.CacheHit(cacheEntity)
		return &cached, nil
	}
	s.metrics.CacheMiss(cacheEntity)

	u, err := s.m.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.c.Set(ctx, key, u, common.CacheTTL); err != nil {
		s.logger.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
	}

	return u, nil
}

// UpdateUser applies the non-nil fields of req to the stored user and evicts its cache entry
// along with the cached blogs that embed the user's name and email.
func (s *UserService) UpdateUser(ctx context.Context, id uuid.UUID, req *UpdateUserRequest) (*User, error) {
	if req == nil {
		return nil, common.ErrInvalidInput
	}

	v := common.NewValidator()
	if req.Name != nil {
		validateName(v, *req.Name)
	}
	if req.Email != nil {
		validateEmail(v, *req.Email)
	}
	if req.Password != nil {
		validatePassword(v, *req.Password)
	}
	if req.Phone != nil {
		validatePhone(v, *req.Phone)
	}

	var birthDate *time.Time
	if req.BirthDate != nil {
		birthDate = validateBirthDate(v, *req.BirthDate)
	}

	if !v.Valid() {
		return nil, v.ValidationError()
	}

	// hash outside the transaction so the row lock is not held for the bcrypt work
	var pwd Password
	if req.Password != nil {
		if err := pwd.set(*req.Password); err != nil {
			return nil, err
		}
	}

	u, blogIDs, err := s.m.update(ctx, id, func(u *User) {
		if req.Name != nil {
			u.Name = *req.Name
		}
		if req.Email != nil {
			u.Email = *req.Email
		}
		if req.Password != nil {
			u.Password = pwd
		}
		if req.Phone != nil {
			u.Phone = *req.Phone
		}
		if birthDate != nil {
			u.BirthDate = birthDate
		}
	})
	if err != nil {
		return nil, err
	}

	if err := s.evict(ctx, id, blogIDs...); err != nil {
		return nil, err
	}

	return u, nil
}

// DeleteUser removes the user and, through the cascade, every blog and comment they own.
// The cached snapshots of those blogs are evicted with the user's.
func (s *UserService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	blogIDs, err := s.m.delete(ctx, id)
	if err != nil {
		return err
	}

	return s.evict(ctx, id, blogIDs...)
}

// SoftDeleteUser hides the user. Their blogs stay readable, so only the user entry is evicted.
func (s *UserService) SoftDeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.m.softDelete(ctx, id); err != nil {
		return err
	}

	return s.evict(ctx, id)
}

func (s *UserService) evict(ctx context.Context, id uuid.UUID, blogIDs ...uuid.UUID) error {
	if err := common.Evict(ctx, s.c, common.CacheKeyUser(id)); err != nil {
		return err
	}

	for _, blogID := range blogIDs {
		if err := common.Evict(ctx, s.c, common.CacheKeyBlog(blogID)); err != nil {
			return err
		}
	}

	return nil
}
