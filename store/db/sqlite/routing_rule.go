package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/solmari/civassist/store"
)

func (d *DB) ListRoutingRules(ctx context.Context) ([]*store.RoutingRule, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, keywords, department, priority, sla_hours, catch_all, active
		FROM routing_rule
		ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list routing rules: %w", err)
	}
	defer rows.Close()

	var list []*store.RoutingRule
	for rows.Next() {
		rule := &store.RoutingRule{}
		var keywords string
		if err := rows.Scan(
			&rule.ID, &rule.Name, &keywords, &rule.Department,
			&rule.Priority, &rule.SLAHours, &rule.CatchAll, &rule.Active,
		); err != nil {
			return nil, fmt.Errorf("failed to scan routing rule: %w", err)
		}
		if err := json.Unmarshal([]byte(keywords), &rule.Keywords); err != nil {
			return nil, fmt.Errorf("failed to decode routing rule keywords: %w", err)
		}
		list = append(list, rule)
	}
	return list, rows.Err()
}

func (d *DB) UpsertRoutingRule(ctx context.Context, upsert *store.RoutingRule) (*store.RoutingRule, error) {
	keywords, err := json.Marshal(upsert.Keywords)
	if err != nil {
		return nil, fmt.Errorf("failed to encode routing rule keywords: %w", err)
	}

	if upsert.ID == 0 {
		stmt := `INSERT INTO routing_rule (name, keywords, department, priority, sla_hours, catch_all, active)
			VALUES (` + placeholders(7) + `) RETURNING id`
		if err := d.db.QueryRowContext(ctx, stmt,
			upsert.Name, string(keywords), upsert.Department,
			upsert.Priority, upsert.SLAHours, upsert.CatchAll, upsert.Active,
		).Scan(&upsert.ID); err != nil {
			return nil, fmt.Errorf("failed to create routing rule: %w", err)
		}
		return upsert, nil
	}

	stmt := `UPDATE routing_rule
		SET name = ?, keywords = ?, department = ?, priority = ?, sla_hours = ?, catch_all = ?, active = ?
		WHERE id = ?`
	if _, err := d.db.ExecContext(ctx, stmt,
		upsert.Name, string(keywords), upsert.Department,
		upsert.Priority, upsert.SLAHours, upsert.CatchAll, upsert.Active, upsert.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to update routing rule: %w", err)
	}
	return upsert, nil
}

func (d *DB) ListFAQs(ctx context.Context) ([]*store.FAQ, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, question, answer, language, workflow_action, active
		FROM faq
		ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list faqs: %w", err)
	}
	defer rows.Close()

	var list []*store.FAQ
	for rows.Next() {
		faq := &store.FAQ{}
		if err := rows.Scan(
			&faq.ID, &faq.Question, &faq.Answer, &faq.Language,
			&faq.WorkflowAction, &faq.Active,
		); err != nil {
			return nil, fmt.Errorf("failed to scan faq: %w", err)
		}
		list = append(list, faq)
	}
	return list, rows.Err()
}

func (d *DB) UpsertFAQ(ctx context.Context, upsert *store.FAQ) (*store.FAQ, error) {
	if upsert.ID == 0 {
		stmt := `INSERT INTO faq (question, answer, language, workflow_action, active)
			VALUES (` + placeholders(5) + `) RETURNING id`
		if err := d.db.QueryRowContext(ctx, stmt,
			upsert.Question, upsert.Answer, upsert.Language, upsert.WorkflowAction, upsert.Active,
		).Scan(&upsert.ID); err != nil {
			return nil, fmt.Errorf("failed to create faq: %w", err)
		}
		return upsert, nil
	}

	stmt := `UPDATE faq SET question = ?, answer = ?, language = ?, workflow_action = ?, active = ? WHERE id = ?`
	if _, err := d.db.ExecContext(ctx, stmt,
		upsert.Question, upsert.Answer, upsert.Language, upsert.WorkflowAction, upsert.Active, upsert.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to update faq: %w", err)
	}
	return upsert, nil
}
