package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/infinicraft/internal/app"
	"github.com/roach88/infinicraft/internal/engine"
	"github.com/roach88/infinicraft/internal/generator"
)

// NewMergeCommand creates the merge command.
func NewMergeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <element> <element>",
		Short: "Combine two elements",
		Long: `Place one instance of each named element and drop the first onto the
second. A cached recipe answers immediately; otherwise the generator is asked
for a new element, retrying until a candidate passes validation.

Exit status is 1 when generation is exhausted and 2 for unknown names.

Example:
  infinicraft merge Fire Water
  infinicraft merge --db ./craft.db --format json Steam Earth`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, true, func(s *session) error {
				start := time.Now()
				result, err := s.app.MergeNames(s.ctx, args[0], args[1])
				if errors.Is(err, app.ErrUnknownElement) {
					return failure(ExitCommandError, "UNKNOWN_ELEMENT", "cannot merge", err)
				}
				if err != nil {
					reason := string(engine.CodeOf(err))
					if reason == "" {
						reason = "MERGE_FAILED"
					}
					return failure(ExitFailure, reason, "merge failed", err)
				}
				s.out.VerboseLog("merged in %s, element id %s", time.Since(start).Round(time.Millisecond), result.ID)
				return s.out.Success(result, fmt.Sprintf("%s + %s = %s", args[0], args[1], result))
			})
		},
	}
}

// NewWarmupCommand creates the warmup command.
func NewWarmupCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "warmup",
		Short: "Load the generator backend",
		Long: `Send a one-token request to the configured generator so that the first
merge does not pay the backend's cold-start cost. Useful as a readiness probe.

Example:
  infinicraft warmup --config ./infinicraft.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, true, func(s *session) error {
				start := time.Now()
				if err := generator.WarmUp(s.ctx, s.app.Client); err != nil {
					return failure(ExitFailure, string(engine.ErrCodeGenerationClient), "generator unavailable", err)
				}
				elapsed := time.Since(start).Round(time.Millisecond)
				s.logger.Info("generator warmed up", "backend", s.app.Config.Generator.Backend, "elapsed", elapsed)
				return s.out.Success(map[string]string{
					"backend": s.app.Config.Generator.Backend,
					"model":   s.app.Config.Generator.Model,
					"elapsed": elapsed.String(),
				}, fmt.Sprintf("generator ready (%s/%s, %s)", s.app.Config.Generator.Backend, s.app.Config.Generator.Model, elapsed))
			})
		},
	}
}
