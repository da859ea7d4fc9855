package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/solmari/civassist/store"
)

func (d *DB) ListAppointmentConfigs(ctx context.Context) ([]*store.AppointmentConfig, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, description, available_days, time_ranges,
			slot_minutes, max_per_slot, lead_time_hours, active
		FROM appointment_config
		ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointment configs: %w", err)
	}
	defer rows.Close()

	var list []*store.AppointmentConfig
	for rows.Next() {
		cfg := &store.AppointmentConfig{}
		var days, ranges string
		if err := rows.Scan(
			&cfg.ID, &cfg.Name, &cfg.Description, &days, &ranges,
			&cfg.SlotMinutes, &cfg.MaxPerSlot, &cfg.LeadTimeHours, &cfg.Active,
		); err != nil {
			return nil, fmt.Errorf("failed to scan appointment config: %w", err)
		}
		if err := json.Unmarshal([]byte(days), &cfg.AvailableDays); err != nil {
			return nil, fmt.Errorf("failed to decode available days: %w", err)
		}
		if err := json.Unmarshal([]byte(ranges), &cfg.TimeRanges); err != nil {
			return nil, fmt.Errorf("failed to decode time ranges: %w", err)
		}
		list = append(list, cfg)
	}
	return list, rows.Err()
}

func (d *DB) UpsertAppointmentConfig(ctx context.Context, upsert *store.AppointmentConfig) (*store.AppointmentConfig, error) {
	days, err := json.Marshal(upsert.AvailableDays)
	if err != nil {
		return nil, fmt.Errorf("failed to encode available days: %w", err)
	}
	ranges, err := json.Marshal(upsert.TimeRanges)
	if err != nil {
		return nil, fmt.Errorf("failed to encode time ranges: %w", err)
	}

	stmt := `INSERT INTO appointment_config
			(id, name, description, available_days, time_ranges, slot_minutes, max_per_slot, lead_time_hours, active)
		VALUES (` + placeholders(9) + `)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			available_days = excluded.available_days,
			time_ranges = excluded.time_ranges,
			slot_minutes = excluded.slot_minutes,
			max_per_slot = excluded.max_per_slot,
			lead_time_hours = excluded.lead_time_hours,
			active = excluded.active`
	if _, err := d.db.ExecContext(ctx, stmt,
		upsert.ID, upsert.Name, upsert.Description, string(days), string(ranges),
		upsert.SlotMinutes, upsert.MaxPerSlot, upsert.LeadTimeHours, upsert.Active,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert appointment config: %w", err)
	}
	return upsert, nil
}

func (d *DB) CreateAppointment(ctx context.Context, create *store.Appointment) (*store.Appointment, error) {
	// seq is carried in the id ("book-NNN"); store it separately for MAX().
	var seq int
	if _, err := fmt.Sscanf(create.ID, "book-%d", &seq); err != nil {
		return nil, fmt.Errorf("malformed appointment id %q: %w", create.ID, err)
	}

	stmt := `INSERT INTO appointment
			(id, seq, service_id, service_name, date, slot, name, email, phone, status, created_ts)
		VALUES (` + placeholders(11) + `)`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID, seq, create.ServiceID, create.ServiceName, create.Date, create.Slot,
		create.Name, create.Email, create.Phone, create.Status, create.CreatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	return create, nil
}

func (d *DB) ListAppointments(ctx context.Context, find *store.FindAppointment) ([]*store.Appointment, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ServiceID; v != nil {
		where, args = append(where, "service_id = ?"), append(args, *v)
	}
	if v := find.Date; v != nil {
		where, args = append(where, "date = ?"), append(args, *v)
	}
	if v := find.Status; v != nil {
		where, args = append(where, "status = ?"), append(args, *v)
	}

	query := `SELECT id, service_id, service_name, date, slot, name, email, phone, status, created_ts
		FROM appointment
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var list []*store.Appointment
	for rows.Next() {
		appt := &store.Appointment{}
		if err := rows.Scan(
			&appt.ID, &appt.ServiceID, &appt.ServiceName, &appt.Date, &appt.Slot,
			&appt.Name, &appt.Email, &appt.Phone, &appt.Status, &appt.CreatedTs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		list = append(list, appt)
	}
	return list, rows.Err()
}

func (d *DB) CountAppointments(ctx context.Context, serviceID, date, slot string) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM appointment
		WHERE service_id = ? AND date = ? AND slot = ? AND status != ?`,
		serviceID, date, slot, store.AppointmentCancelled,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}

func (d *DB) NextAppointmentSeq(ctx context.Context) (int, error) {
	var max int
	if err := d.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM appointment`).Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to read appointment sequence: %w", err)
	}
	return max + 1, nil
}
