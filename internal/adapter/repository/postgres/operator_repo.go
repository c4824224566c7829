package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/cashledger/internal/domain"
)

const operatorColumns = `id, email, name, hashed_password, role, active, created_at, updated_at`

// OperatorRepository implements operator persistence
type OperatorRepository struct {
	db dbtx
}

// NewOperatorRepository creates a new operator repository
func NewOperatorRepository(pool *pgxpool.Pool) *OperatorRepository {
	return &OperatorRepository{db: pool}
}

// Create inserts a new operator
func (r *OperatorRepository) Create(ctx context.Context, operator *domain.Operator) error {
	query := `
		INSERT INTO operators (` + operatorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query,
		operator.ID,
		operator.Email,
		operator.Name,
		operator.HashedPassword,
		string(operator.Role),
		operator.Active,
		operator.CreatedAt,
		operator.UpdatedAt,
	)
	if isUniqueViolation(err, "operators_email_key") {
		return domain.ErrOperatorExists
	}

	return err
}

// GetByID retrieves an operator by ID
func (r *OperatorRepository) GetByID(ctx context.Context, id string) (*domain.Operator, error) {
	row := r.db.QueryRow(ctx, `SELECT `+operatorColumns+` FROM operators WHERE id = $1`, id)
	return scanOperator(row)
}

// GetByEmail retrieves an operator by email
func (r *OperatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	row := r.db.QueryRow(ctx, `SELECT `+operatorColumns+` FROM operators WHERE email = $1`, email)
	return scanOperator(row)
}

func scanOperator(row pgx.Row) (*domain.Operator, error) {
	var (
		operator domain.Operator
		role     string
	)

	err := row.Scan(
		&operator.ID,
		&operator.Email,
		&operator.Name,
		&operator.HashedPassword,
		&role,
		&operator.Active,
		&operator.CreatedAt,
		&operator.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOperatorNotFound
	}
	if err != nil {
		return nil, err
	}

	operator.Role = domain.Role(role)
	return &operator, nil
}
