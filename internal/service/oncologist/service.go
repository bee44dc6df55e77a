package oncologist

import (
	"context"
	"strings"

	"github.com/oncodose/treatment-api/internal/model"
	"github.com/oncodose/treatment-api/internal/repository"
	apperrors "github.com/oncodose/treatment-api/pkg/errors"
	"github.com/oncodose/treatment-api/pkg/logger"
	"github.com/oncodose/treatment-api/pkg/security"
)

const (
	msgUsernameTaken = "Username is taken!"
	msgShortPassword = "Password must be at least 8 characters"

	minPasswordLen = 8
)

type Service struct {
	repo   repository.OncologistRepository
	hasher security.PasswordHasher
	log    *logger.Logger
}

func NewService(repo repository.OncologistRepository, hasher security.PasswordHasher, log *logger.Logger) *Service {
	return &Service{repo: repo, hasher: hasher, log: log}
}

// Register creates a login record with a bcrypt password hash. A taken
// username reports the registration form's message.
func (s *Service) Register(ctx context.Context, req *model.RegisterOncologistRequest) (*model.Oncologist, error) {
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.FullName) == "" {
		return nil, apperrors.Validation("Input fields must not be empty")
	}
	if len(req.Password) < minPasswordLen {
		return nil, apperrors.Validation(msgShortPassword)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	o := &model.Oncologist{
		Username:     req.Username,
		PasswordHash: hash,
		FullName:     req.FullName,
		IsAdmin:      req.IsAdmin,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		if apperrors.IsDuplicateKey(err) {
			return nil, apperrors.Validation(msgUsernameTaken)
		}
		return nil, err
	}

	s.log.Info("oncologist registered", "username", o.Username)
	return o, nil
}

// Authenticate verifies the password against the stored hash. Unknown
// usernames and wrong passwords both come back as unauthorized so the login
// form cannot be used to probe for accounts.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.Oncologist, error) {
	o, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Unauthorized(err)
		}
		return nil, err
	}
	if err := s.hasher.Compare(o.PasswordHash, password); err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, username string) (*model.Oncologist, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *Service) Delete(ctx context.Context, username string) error {
	if err := s.repo.Delete(ctx, username); err != nil {
		return err
	}
	s.log.Info("oncologist deleted", "username", username)
	return nil
}
