package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/solmari/civassist/store"
)

func (d *DB) CreateServiceRequest(ctx context.Context, create *store.ServiceRequest) (*store.ServiceRequest, error) {
	var year int
	if _, err := fmt.Sscanf(create.TicketID, "SR-%d-", &year); err != nil {
		return nil, fmt.Errorf("malformed ticket id %q: %w", create.TicketID, err)
	}

	stmt := `INSERT INTO service_request
			(ticket_id, year, category, department, priority, description, location, contact, status, sla_hours, created_ts)
		VALUES (` + placeholders(11) + `) RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.TicketID, year, create.Category, create.Department, create.Priority,
		create.Description, create.Location, create.Contact, create.Status,
		create.SLAHours, create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create service request: %w", err)
	}
	return create, nil
}

func (d *DB) ListServiceRequests(ctx context.Context, find *store.FindServiceRequest) ([]*store.ServiceRequest, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.TicketID; v != nil {
		where, args = append(where, "ticket_id = ?"), append(args, *v)
	}
	if v := find.Department; v != nil {
		where, args = append(where, "department = ?"), append(args, *v)
	}
	if v := find.Status; v != nil {
		where, args = append(where, "status = ?"), append(args, *v)
	}

	query := `SELECT id, ticket_id, category, department, priority, description, location, contact, status, sla_hours, created_ts
		FROM service_request
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list service requests: %w", err)
	}
	defer rows.Close()

	var list []*store.ServiceRequest
	for rows.Next() {
		req := &store.ServiceRequest{}
		if err := rows.Scan(
			&req.ID, &req.TicketID, &req.Category, &req.Department, &req.Priority,
			&req.Description, &req.Location, &req.Contact, &req.Status,
			&req.SLAHours, &req.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan service request: %w", err)
		}
		list = append(list, req)
	}
	return list, rows.Err()
}

func (d *DB) NextServiceRequestSeq(ctx context.Context, year int) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM service_request WHERE year = ?`, year,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to read service request sequence: %w", err)
	}
	return count + 1, nil
}

func (d *DB) CreateConversationLog(ctx context.Context, create *store.ConversationLog) error {
	stmt := `INSERT INTO conversation_log
			(channel, user_id, user_message, assistant_message, language, sentiment, escalated, created_ts)
		VALUES (` + placeholders(8) + `)`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.Channel, create.UserID, create.UserMessage, create.AssistantMessage,
		create.Language, create.Sentiment, create.Escalated, create.CreatedTs,
	); err != nil {
		return fmt.Errorf("failed to create conversation log: %w", err)
	}
	return nil
}
