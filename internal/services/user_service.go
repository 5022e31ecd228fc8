package services

import (
	"context"
	"errors"
	"time"

	"github.com/wrenfield/vintrack/api/internal/logger"
	"github.com/wrenfield/vintrack/api/internal/models"
	"github.com/wrenfield/vintrack/api/internal/repository"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("an account with that email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSuperadminOnly     = errors.New("only a superadmin may grant superadmin")
	ErrUserHasRecords     = errors.New("user is referenced by spray records")
)

// UserService manages accounts, authentication and role assignment.
type UserService interface {
	// Register creates an account with the user role. The very first
	// account becomes superadmin so a fresh install can be administered.
	Register(ctx context.Context, name, email, password string) (*models.User, error)

	// Login verifies credentials and stamps the last-login time.
	Login(ctx context.Context, email, password string) (*models.User, error)

	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, id uint) (*models.User, error)
	ListOperators(ctx context.Context) ([]models.User, error)

	// ChangeRole assigns a role to a user. Granting superadmin requires
	// the acting user to be a superadmin themselves.
	ChangeRole(ctx context.Context, actor *models.User, userID uint, role models.Role) error

	// Delete removes an account unless spray records still reference it.
	Delete(ctx context.Context, id uint) error
}

// userService is the concrete implementation of UserService.
type userService struct {
	repo    repository.UserRepository
	records repository.SprayRecordRepository
	log     *logger.Logger
}

// NewUserService creates a new UserService.
func NewUserService(
	repo repository.UserRepository,
	records repository.SprayRecordRepository,
	log *logger.Logger,
) UserService {
	return &userService{repo: repo, records: records, log: log}
}

func (s *userService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:  name,
		Email: email,
		Role:  models.RoleUser,
	}
	if count == 0 {
		user.Role = models.RoleSuperadmin
	}
	if err := user.SetPassword(password); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("Registered user", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role.String(),
	})

	return user, nil
}

func (s *userService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	// Unknown email and wrong password are indistinguishable to the caller.
	if user == nil || !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}

	user.LastLogin = time.Now().UTC()
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("User logged in", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})

	return user, nil
}

func (s *userService) List(ctx context.Context) ([]models.User, error) {
	return s.repo.List(ctx)
}

func (s *userService) Get(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *userService) ListOperators(ctx context.Context) ([]models.User, error) {
	return s.repo.ListOperators(ctx)
}

func (s *userService) ChangeRole(ctx context.Context, actor *models.User, userID uint, role models.Role) error {
	if role == models.RoleSuperadmin && !actor.IsSuperadmin() {
		return ErrSuperadminOnly
	}

	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	previous := user.Role
	user.Role = role
	if err := s.repo.Save(ctx, user); err != nil {
		return err
	}

	s.log.Info("Changed user role", map[string]interface{}{
		"user_id":  userID,
		"from":     previous.String(),
		"to":       role.String(),
		"actor_id": actor.ID,
	})
	return nil
}

func (s *userService) Delete(ctx context.Context, id uint) error {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	refs, err := s.records.CountByOperator(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrUserHasRecords
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info("Deleted user", map[string]interface{}{
		"user_id": id,
		"email":   user.Email,
	})
	return nil
}
