package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

const ticketColumns = `id, title, description, category, client_id, client_name, status, priority,
               current_level, available_to_levels, assigned_to, assigned_to_name, is_available_for_assignment,
               tags, escalation_history, activity_log, client_notifications,
               submitted_date, last_updated, resolved_date, version`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, title, description, category, client_id, client_name, status, priority,
            current_level, available_to_levels, assigned_to, assigned_to_name, is_available_for_assignment,
            tags, escalation_history, activity_log, client_notifications,
            submitted_date, last_updated, resolved_date, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`
	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.ClientID,
		ticket.ClientName,
		ticket.Status,
		ticket.Priority,
		ticket.CurrentLevel,
		levelStrings(ticket.AvailableToLevels),
		ticket.AssignedTo,
		ticket.AssignedToName,
		ticket.IsAvailableForAssignment,
		nonNil(ticket.Tags),
		nonNil(ticket.EscalationHistory),
		nonNil(ticket.ActivityLog),
		nonNil(ticket.ClientNotifications),
		ticket.SubmittedDate,
		ticket.LastUpdated,
		ticket.ResolvedDate,
		ticket.Version,
	)
	return err
}

// Update only touches the row while id, version, status and assignee still
// match expected, then bumps version. A miss is resolved into ErrNotFound or
// ErrVersionConflict.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, expected Precondition) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, category=$3, status=$4, priority=$5,
            current_level=$6, available_to_levels=$7, assigned_to=$8, assigned_to_name=$9,
            is_available_for_assignment=$10, tags=$11, escalation_history=$12, activity_log=$13,
            client_notifications=$14, last_updated=$15, resolved_date=$16, version=version+1
        WHERE id=$17 AND version=$18 AND status=$19 AND assigned_to IS NOT DISTINCT FROM $20
        RETURNING version`
	var version int64
	err := r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Status,
		ticket.Priority,
		ticket.CurrentLevel,
		levelStrings(ticket.AvailableToLevels),
		ticket.AssignedTo,
		ticket.AssignedToName,
		ticket.IsAvailableForAssignment,
		nonNil(ticket.Tags),
		nonNil(ticket.EscalationHistory),
		nonNil(ticket.ActivityLog),
		nonNil(ticket.ClientNotifications),
		ticket.LastUpdated,
		ticket.ResolvedDate,
		ticket.ID,
		expected.Version,
		expected.Status,
		expected.AssignedTo,
	).Scan(&version)
	if err == nil {
		ticket.Version = version
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE id=$1)`, ticket.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ticket, err
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Levels) > 0 {
		args = append(args, levelStrings(filter.Levels))
		clauses = append(clauses, fmt.Sprintf("available_to_levels && $%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("client_id=$%d", len(args)))
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset, 20)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY last_updated DESC, id LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) CountOpenByAssignee(ctx context.Context, assigneeIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(assigneeIDs))
	if len(assigneeIDs) == 0 {
		return counts, nil
	}
	const query = `
        SELECT assigned_to, COUNT(*) FROM tickets
        WHERE assigned_to = ANY($1) AND status NOT IN ('resolved','closed')
        GROUP BY assigned_to`
	rows, err := r.pool.Query(ctx, query, assigneeIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	var levels []string
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.ClientID,
		&ticket.ClientName,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CurrentLevel,
		&levels,
		&ticket.AssignedTo,
		&ticket.AssignedToName,
		&ticket.IsAvailableForAssignment,
		&ticket.Tags,
		&ticket.EscalationHistory,
		&ticket.ActivityLog,
		&ticket.ClientNotifications,
		&ticket.SubmittedDate,
		&ticket.LastUpdated,
		&ticket.ResolvedDate,
		&ticket.Version,
	); err != nil {
		return nil, err
	}
	for _, l := range levels {
		ticket.AvailableToLevels = append(ticket.AvailableToLevels, domain.Level(l))
	}
	return &ticket, nil
}

func levelStrings(levels []domain.Level) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = string(l)
	}
	return out
}

// nonNil keeps empty audit trails encoded as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
