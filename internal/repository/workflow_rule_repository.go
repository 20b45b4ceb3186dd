package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

type workflowRuleRepository struct {
	pool *pgxpool.Pool
}

// NewWorkflowRuleRepository instantiates the Postgres rule reader.
func NewWorkflowRuleRepository(pool *pgxpool.Pool) WorkflowRuleRepository {
	return &workflowRuleRepository{pool: pool}
}

func (r *workflowRuleRepository) ListActive(ctx context.Context) ([]domain.WorkflowRule, error) {
	const query = `
        SELECT id, name, description, priority, is_active, conditions, actions, created_at, updated_at
        FROM workflow_rules WHERE is_active = true
        ORDER BY priority DESC, created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WorkflowRule
	for rows.Next() {
		var rule domain.WorkflowRule
		if err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.Description,
			&rule.Priority,
			&rule.IsActive,
			&rule.Conditions,
			&rule.Actions,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}
