package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/infinicraft/internal/element"
)

// WriteElement records a discovered element. Writing an id that was removed
// earlier brings it back. Satisfies element.Journal.
func (s *Store) WriteElement(ctx context.Context, e element.Element) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO elements (id, seq, name, emoji, removed)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			emoji = excluded.emoji,
			removed = 0
	`,
		e.ID,
		seqOf(e.ID),
		e.Name,
		e.Emoji,
	)
	if err != nil {
		return fmt.Errorf("write element %s: %w", e.ID, err)
	}
	return nil
}

// DeleteElements marks the given elements removed. Unknown ids are ignored.
// Satisfies element.Journal.
func (s *Store) DeleteElements(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE elements SET removed = 1 WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("delete elements: %w", err)
	}
	return nil
}

// ReadElements returns every live element in id order.
func (s *Store) ReadElements(ctx context.Context) ([]element.Element, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, emoji
		FROM elements
		WHERE removed = 0
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("read elements: %w", err)
	}
	defer rows.Close()

	var out []element.Element
	for rows.Next() {
		var e element.Element
		if err := rows.Scan(&e.ID, &e.Name, &e.Emoji); err != nil {
			return nil, fmt.Errorf("scan element: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read elements: %w", err)
	}
	return out, nil
}

// HighWater returns the largest numeric id ever stored, removed elements and
// recipe results included. Returns 0 for an empty database.
func (s *Store) HighWater(ctx context.Context) (int64, error) {
	var hw int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT MAX(seq) FROM elements), 0),
			COALESCE((SELECT MAX(result_seq) FROM recipes), 0)
		)
	`).Scan(&hw)
	if err != nil {
		return 0, fmt.Errorf("read high water: %w", err)
	}
	return hw, nil
}

// seqOf maps an id to its ordering key. Non-numeric ids sort first.
func seqOf(id string) int64 {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
