package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/infinicraft/internal/recipe"
)

// NewRecipesCommand creates the recipes command.
func NewRecipesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recipes",
		Short: "List cached recipes",
		Long: `List every cached recipe as "A + B = result", oldest first.

Example:
  infinicraft recipes --db ./craft.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(s *session) error {
				entries, err := s.app.RecipeEntries(s.ctx)
				if err != nil {
					return failure(ExitFailure, "RECIPES_UNAVAILABLE", "failed to list recipes", err)
				}
				if len(entries) == 0 {
					return s.out.Success([]recipe.Entry{}, "no recipes yet")
				}
				lines := make([]string, 0, len(entries))
				for _, e := range entries {
					lines = append(lines, e.String())
				}
				return s.out.Success(entries, lines...)
			})
		},
	}
}
