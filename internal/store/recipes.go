package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/infinicraft/internal/element"
	"github.com/roach88/infinicraft/internal/recipe"
)

// WriteRecipe records result for key. If key already has a result the write
// is silently ignored (first result wins).
func (s *Store) WriteRecipe(ctx context.Context, key recipe.Key, result element.Element) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recipes (first, second, result_id, result_seq, result_name, result_emoji)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(first, second) DO NOTHING
	`,
		key.First,
		key.Second,
		result.ID,
		seqOf(result.ID),
		result.Name,
		result.Emoji,
	)
	if err != nil {
		return fmt.Errorf("write recipe %s: %w", key, err)
	}
	return nil
}

// ReadRecipe returns the result stored for key, if any.
func (s *Store) ReadRecipe(ctx context.Context, key recipe.Key) (element.Element, bool, error) {
	var e element.Element
	err := s.db.QueryRowContext(ctx, `
		SELECT result_id, result_name, result_emoji
		FROM recipes
		WHERE first = ? AND second = ?
	`, key.First, key.Second).Scan(&e.ID, &e.Name, &e.Emoji)
	if errors.Is(err, sql.ErrNoRows) {
		return element.Element{}, false, nil
	}
	if err != nil {
		return element.Element{}, false, fmt.Errorf("read recipe %s: %w", key, err)
	}
	return e, true, nil
}

// ReadRecipes returns every recipe in the order it was written.
func (s *Store) ReadRecipes(ctx context.Context) ([]recipe.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT first, second, result_id, result_name, result_emoji
		FROM recipes
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read recipes: %w", err)
	}
	defer rows.Close()

	var out []recipe.Entry
	for rows.Next() {
		var en recipe.Entry
		if err := rows.Scan(&en.Key.First, &en.Key.Second, &en.Result.ID, &en.Result.Name, &en.Result.Emoji); err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		out = append(out, en)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read recipes: %w", err)
	}
	return out, nil
}

// RecipeCache adapts a Store to recipe.Cache and recipe.Lister.
type RecipeCache struct {
	s *Store
}

// NewRecipeCache returns a durable recipe cache backed by s.
func NewRecipeCache(s *Store) *RecipeCache {
	return &RecipeCache{s: s}
}

// Lookup implements recipe.Cache.
func (c *RecipeCache) Lookup(ctx context.Context, a, b element.Element) (element.Element, bool, error) {
	return c.s.ReadRecipe(ctx, recipe.Of(a, b))
}

// Store implements recipe.Cache.
func (c *RecipeCache) Store(ctx context.Context, a, b, result element.Element) error {
	return c.s.WriteRecipe(ctx, recipe.Of(a, b), result)
}

// Entries implements recipe.Lister.
func (c *RecipeCache) Entries(ctx context.Context) ([]recipe.Entry, error) {
	return c.s.ReadRecipes(ctx)
}

var (
	_ recipe.Cache    = (*RecipeCache)(nil)
	_ recipe.Lister   = (*RecipeCache)(nil)
	_ element.Journal = (*Store)(nil)
)
