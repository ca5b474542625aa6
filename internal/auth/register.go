package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/internal/users"
	"github.com/angelmondragon/farmloop-backend/pkg/config"
	"github.com/angelmondragon/farmloop-backend/pkg/db"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
	"github.com/angelmondragon/farmloop-backend/pkg/security"
)

const emailTakenMessage = "email already registered"

type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type RegisterServiceParams struct {
	DB             txRunner
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	db      txRunner
	passCfg config.PasswordConfig
}

func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &registerService{db: params.DB, passCfg: params.PasswordConfig}, nil
}

// Register creates a farmer or consumer account with zero reward points.
// Admin accounts are provisioned out of band and cannot self-register.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	input, err := s.newAccount(req)
	if err != nil {
		return nil, err
	}

	var created *users.UserDTO
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := users.NewRepository(tx)
		switch _, err := repo.FindByEmail(ctx, input.Email); {
		case err == nil:
			return pkgerrors.New(pkgerrors.CodeConflict, emailTakenMessage)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user, err := repo.Create(ctx, input)
		if db.IsUniqueViolation(err, "") {
			// lost a race with a concurrent registration
			return pkgerrors.New(pkgerrors.CodeConflict, emailTakenMessage)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		created = users.FromModel(user)
		return nil
	})
	return created, err
}

// newAccount validates the request and hashes the password outside the transaction.
func (s *registerService) newAccount(req RegisterRequest) (users.CreateUserDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return users.CreateUserDTO{}, fieldError("email", "email is required")
	}
	if req.UserType != enums.UserTypeFarmer && req.UserType != enums.UserTypeConsumer {
		return users.CreateUserDTO{}, fieldError("user_type", "user_type must be farmer or consumer")
	}
	if err := security.ValidatePasswordStrength(req.Password); err != nil {
		return users.CreateUserDTO{}, fieldError("password", err.Error())
	}

	hash, err := security.HashPassword(req.Password, s.passCfg)
	if err != nil {
		return users.CreateUserDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	return users.CreateUserDTO{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        req.Phone,
		Address:      req.Address,
		UserType:     req.UserType,
	}, nil
}

func fieldError(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{"field": field})
}
