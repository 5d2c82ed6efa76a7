package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ezachrisen/dataguard/compliance"
	"github.com/google/uuid"
)

// Results is a compliance.ResultStore over the compliance_results table.
type Results struct {
	db *sql.DB
}

const resultColumns = `id, check_name, entity_type, object_id, attribute, last_evaluated, attribute_value, valid, message`

func (s *Results) Upsert(ctx context.Context, r compliance.Result) error {
	if r.ID == uuid.Nil {
		r.ID = compliance.NewID()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO compliance_results (`+resultColumns+`)
		 VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9)
		 ON CONFLICT (check_name, entity_type, object_id, attribute) DO UPDATE SET
			last_evaluated = excluded.last_evaluated,
			attribute_value = excluded.attribute_value,
			valid = excluded.valid,
			message = excluded.message`,
		r.ID.String(), r.CheckName, r.EntityType, r.ObjectID, r.Attribute,
		r.LastEvaluated.UTC().Format(time.RFC3339Nano), r.AttributeValue, r.Valid, r.Message)
	if err != nil {
		return fmt.Errorf("upserting result %s: %w", r.Key(), err)
	}
	return nil
}

func (s *Results) ForObject(ctx context.Context, checkName, entityType, objectID string) ([]compliance.Result, error) {
	return s.query(ctx,
		`SELECT `+resultColumns+` FROM compliance_results
		 WHERE check_name = ?1 AND entity_type = ?2 AND object_id = ?3
		 ORDER BY attribute`,
		checkName, entityType, objectID)
}

func (s *Results) All(ctx context.Context) ([]compliance.Result, error) {
	return s.query(ctx,
		`SELECT `+resultColumns+` FROM compliance_results
		 ORDER BY check_name, entity_type, object_id, attribute`)
}

func (s *Results) Delete(ctx context.Context, k compliance.Key) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM compliance_results
		 WHERE check_name = ?1 AND entity_type = ?2 AND object_id = ?3 AND attribute = ?4`,
		k.CheckName, k.EntityType, k.ObjectID, k.Attribute)
	if err != nil {
		return fmt.Errorf("deleting result %s: %w", k, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting result %s: %w", k, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", compliance.ErrResultNotFound, k)
	}
	return nil
}

func (s *Results) query(ctx context.Context, q string, args ...any) ([]compliance.Result, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := []compliance.Result{}
	for rows.Next() {
		var (
			r        compliance.Result
			id, when string
		)
		err := rows.Scan(&id, &r.CheckName, &r.EntityType, &r.ObjectID, &r.Attribute,
			&when, &r.AttributeValue, &r.Valid, &r.Message)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("result id %q: %w", id, err)
		}
		if r.LastEvaluated, err = time.Parse(time.RFC3339Nano, when); err != nil {
			return nil, fmt.Errorf("result %s timestamp %q: %w", r.Key(), when, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
