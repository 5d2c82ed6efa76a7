package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ezachrisen/dataguard"
)

// Objects is a dataguard.ObjectStore over the objects table. Field values are
// stored as a JSON document per object.
type Objects struct {
	db *sql.DB
}

// Put adds or replaces objects. Objects must have an ID.
func (s *Objects) Put(ctx context.Context, objs ...*dataguard.Object) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, o := range objs {
		if o.ID == "" {
			return fmt.Errorf("sqlstore: %s has no id", o)
		}
		fields := o.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", o, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO objects (entity_type, id, data) VALUES (?1, ?2, ?3)
			 ON CONFLICT (entity_type, id) DO UPDATE SET data = excluded.data`,
			o.Type, o.ID, string(data))
		if err != nil {
			return fmt.Errorf("storing %s: %w", o, err)
		}
	}
	return tx.Commit()
}

// Remove deletes an object. Removing an object that does not exist is not an error.
func (s *Objects) Remove(ctx context.Context, entityType, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM objects WHERE entity_type = ?1 AND id = ?2`, entityType, id)
	if err != nil {
		return fmt.Errorf("removing %s(%s): %w", entityType, id, err)
	}
	return nil
}

func (s *Objects) All(ctx context.Context, entityType string) ([]*dataguard.Object, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM objects WHERE entity_type = ?1 ORDER BY id`, entityType)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", entityType, err)
	}
	defer rows.Close()

	out := []*dataguard.Object{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("listing %s: %w", entityType, err)
		}
		o, err := decodeObject(entityType, id, data)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Objects) Get(ctx context.Context, entityType, id string) (*dataguard.Object, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM objects WHERE entity_type = ?1 AND id = ?2`, entityType, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s(%s)", dataguard.ErrObjectNotFound, entityType, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s(%s): %w", entityType, id, err)
	}
	return decodeObject(entityType, id, data)
}

// CountMatching compares the field inside the stored document with
// json_extract. Only scalar values can be matched.
func (s *Objects) CountMatching(ctx context.Context, entityType, field string, value any, excludeID string) (int, error) {
	arg, err := sqlValue(value)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM objects
		 WHERE entity_type = ?1 AND id <> ?2 AND json_extract(data, ?3) = ?4`,
		entityType, excludeID, fmt.Sprintf(`$."%s"`, field), arg).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s.%s: %w", entityType, field, err)
	}
	return n, nil
}

// sqlValue converts a field value to the SQL value json_extract yields for it.
func sqlValue(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case json.Number:
		return normalize(x), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return nil, fmt.Errorf("sqlstore: cannot match values of type %T", v)
}

func decodeObject(entityType, id, data string) (*dataguard.Object, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decoding %s(%s): %w", entityType, id, err)
	}
	for k, v := range fields {
		fields[k] = normalize(v)
	}
	return &dataguard.Object{Type: entityType, ID: id, Fields: fields}, nil
}

// normalize turns decoded JSON numbers into int64 when they are whole and
// float64 otherwise.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	}
	return v
}
