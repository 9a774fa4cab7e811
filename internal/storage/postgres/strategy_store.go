package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

// StrategyStore implements storage.StrategyStore using PostgreSQL.
// Definitions are stored as JSONB.
type StrategyStore struct {
	pool *Pool
	now  func() time.Time
}

// NewStrategyStore creates a new StrategyStore.
func NewStrategyStore(pool *Pool) *StrategyStore {
	return &StrategyStore{pool: pool, now: time.Now}
}

// Compile-time interface check.
var _ storage.StrategyStore = (*StrategyStore)(nil)

// Insert adds a new strategy and assigns its ID. Returns ErrDuplicateKey if the name exists.
func (s *StrategyStore) Insert(ctx context.Context, st *domain.Strategy) error {
	if st == nil || st.Name == "" {
		return storage.ErrInvalidInput
	}
	def, err := json.Marshal(st.Definition)
	if err != nil {
		return fmt.Errorf("encode strategy definition: %w", err)
	}

	now := s.now().UTC()
	query := `
		INSERT INTO strategies (name, description, definition, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id
	`
	var id int64
	if err := s.pool.QueryRow(ctx, query, st.Name, st.Description, def, now).Scan(&id); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert strategy: %w", err)
	}

	st.ID = id
	st.CreatedAt = now
	st.UpdatedAt = now
	return nil
}

// GetByID retrieves a strategy by its ID. Returns ErrNotFound if not exists.
func (s *StrategyStore) GetByID(ctx context.Context, id int64) (*domain.Strategy, error) {
	query := `
		SELECT id, name, description, definition, created_at, updated_at
		FROM strategies
		WHERE id = $1
	`
	st, err := scanStrategy(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get strategy by id: %w", err)
	}
	return st, nil
}

// List retrieves all strategies ordered by ID ASC.
func (s *StrategyStore) List(ctx context.Context) ([]*domain.Strategy, error) {
	query := `
		SELECT id, name, description, definition, created_at, updated_at
		FROM strategies
		ORDER BY id ASC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query strategies: %w", err)
	}
	defer rows.Close()

	var result []*domain.Strategy
	for rows.Next() {
		st, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		result = append(result, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate strategies: %w", err)
	}
	return result, nil
}

func scanStrategy(row pgx.Row) (*domain.Strategy, error) {
	var st domain.Strategy
	var def []byte
	if err := row.Scan(&st.ID, &st.Name, &st.Description, &def, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(def, &st.Definition); err != nil {
		return nil, fmt.Errorf("decode strategy %d definition: %w", st.ID, err)
	}
	return &st, nil
}
