// internal/store/fields.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Field is static reference data: an hourly rate before the pricing cutoff
// and another after it.
type Field struct {
	ID       string
	Name     string
	PreRate  int64
	PostRate int64
}

type CreateFieldParams struct {
	ID       string
	Name     string
	PreRate  int64
	PostRate int64
}

func (q *Queries) CreateField(ctx context.Context, arg CreateFieldParams) (Field, error) {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO fields (id, name, pre_rate, post_rate) VALUES (?, ?, ?, ?)`,
		arg.ID, arg.Name, arg.PreRate, arg.PostRate,
	)
	if err != nil {
		return Field{}, fmt.Errorf("create field: %w", err)
	}
	return Field(arg), nil
}

func (q *Queries) GetField(ctx context.Context, id string) (Field, error) {
	var field Field
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, pre_rate, post_rate FROM fields WHERE id = ?`, id,
	).Scan(&field.ID, &field.Name, &field.PreRate, &field.PostRate)
	if errors.Is(err, sql.ErrNoRows) {
		return Field{}, ErrNotFound
	}
	if err != nil {
		return Field{}, fmt.Errorf("get field: %w", err)
	}
	return field, nil
}

func (q *Queries) ListFields(ctx context.Context) ([]Field, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, name, pre_rate, post_rate FROM fields ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	defer rows.Close()

	var fields []Field
	for rows.Next() {
		var field Field
		if err := rows.Scan(&field.ID, &field.Name, &field.PreRate, &field.PostRate); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		fields = append(fields, field)
	}
	return fields, rows.Err()
}
