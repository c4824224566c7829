package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/iho/cashledger/internal/domain"
)

// OperatorUseCase handles console operator management.
type OperatorUseCase struct {
	operatorRepo OperatorRepository
	idGen        IDGenerator
}

// NewOperatorUseCase creates a new operator use case
func NewOperatorUseCase(operatorRepo OperatorRepository, idGen IDGenerator) *OperatorUseCase {
	return &OperatorUseCase{
		operatorRepo: operatorRepo,
		idGen:        idGen,
	}
}

// CreateOperatorInput represents input for creating an operator
type CreateOperatorInput struct {
	Email    string
	Name     string
	Password string
	Role     domain.Role
}

// CreateOperator creates a new operator with a hashed password
func (uc *OperatorUseCase) CreateOperator(ctx context.Context, input CreateOperatorInput) (*domain.Operator, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, err
	}

	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	if !input.Role.IsValid() {
		verr := &domain.ValidationError{}
		verr.Add("role", "unknown role %q", input.Role)
		return nil, verr
	}

	existing, err := uc.operatorRepo.GetByEmail(ctx, input.Email)
	if err == nil && existing != nil {
		return nil, domain.ErrOperatorExists
	}
	if err != nil && !errors.Is(err, domain.ErrOperatorNotFound) {
		return nil, err
	}

	hashedPassword, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	operator := &domain.Operator{
		ID:             uc.idGen.Generate(),
		Email:          input.Email,
		Name:           input.Name,
		HashedPassword: hashedPassword,
		Role:           input.Role,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := uc.operatorRepo.Create(ctx, operator); err != nil {
		return nil, err
	}

	// Don't return hashed password
	operator.HashedPassword = ""
	return operator, nil
}

// EnsureOperator creates the operator unless the email is already taken.
// Used to bootstrap the first admin from configuration.
func (uc *OperatorUseCase) EnsureOperator(ctx context.Context, input CreateOperatorInput) (*domain.Operator, error) {
	op, err := uc.CreateOperator(ctx, input)
	if errors.Is(err, domain.ErrOperatorExists) {
		existing, err := uc.operatorRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
		if err != nil {
			return nil, err
		}
		existing.HashedPassword = ""
		return existing, nil
	}
	return op, err
}

// AuthenticateInput represents authentication input
type AuthenticateInput struct {
	Email    string
	Password string
}

// Authenticate verifies operator credentials
func (uc *OperatorUseCase) Authenticate(ctx context.Context, input AuthenticateInput) (*domain.Operator, error) {
	operator, err := uc.operatorRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	if !operator.Active {
		return nil, domain.ErrOperatorInactive
	}

	if err := verifyPassword(operator.HashedPassword, input.Password); err != nil {
		return nil, domain.ErrUnauthorized
	}

	operator.HashedPassword = ""
	return operator, nil
}

// GetOperator retrieves an operator by ID
func (uc *OperatorUseCase) GetOperator(ctx context.Context, id string) (*domain.Operator, error) {
	operator, err := uc.operatorRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	operator.HashedPassword = ""
	return operator, nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
