package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/infinicraft/internal/element"
	"github.com/roach88/infinicraft/internal/engine"
	"github.com/roach88/infinicraft/internal/opstate"
)

// NewElementsCommand creates the elements command.
func NewElementsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "elements",
		Short: "List the element catalog",
		Long: `List every element in the catalog in id order.

Without --db (or a database in the config file) only the seed elements exist.

Example:
  infinicraft elements --db ./craft.db
  infinicraft elements --db ./craft.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(s *session) error {
				return printCatalog(s.out, s.app.Catalog.GetAll())
			})
		},
	}
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove elements from the catalog",
		Long: `Remove the given element ids from the catalog and take their instances
off the canvas. Seed elements cannot be removed and are restored if missing.
Recipes that produced a removed element are kept.

Example:
  infinicraft remove --db ./craft.db 5 7`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(s *session) error {
				before := s.app.Catalog.Len()
				remaining, err := s.app.Engine.RemoveElements(s.ctx, args)
				if err != nil {
					return removalFailure(err)
				}
				s.out.VerboseLog("removed %d element(s)", before-len(remaining))
				return printCatalog(s.out, remaining)
			})
		},
	}
}

// NewResetCommand creates the reset command.
func NewResetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove every discovered element",
		Long: `Reset the catalog to the seed elements. Recipes survive, so merging a
known pair again rediscovers its result without calling the generator.

Example:
  infinicraft reset --db ./craft.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, false, func(s *session) error {
				remaining, err := s.app.Engine.ResetCatalog(s.ctx)
				if err != nil {
					return removalFailure(err)
				}
				return printCatalog(s.out, remaining)
			})
		},
	}
}

func removalFailure(err error) error {
	if errors.Is(err, opstate.ErrBusy) {
		return failure(ExitFailure, string(engine.ErrCodeBusy), "catalog is busy", err)
	}
	return failure(ExitFailure, "REMOVAL_FAILED", "failed to remove elements", err)
}

func printCatalog(out *OutputFormatter, elements []element.Element) error {
	lines := make([]string, 0, len(elements))
	for _, e := range elements {
		lines = append(lines, fmt.Sprintf("%4s  %s", e.ID, e))
	}
	return out.Success(elements, lines...)
}
