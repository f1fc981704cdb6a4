package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/infinicraft/internal/app"
	"github.com/roach88/infinicraft/internal/config"
	"github.com/roach88/infinicraft/internal/generator"
)

// Execute runs the CLI with args and returns the process exit code. Errors
// are reported on stderr in text mode and on stdout in JSON mode.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, &RootOptions{}, args, stdout, stderr)
}

func execute(ctx context.Context, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		// Flag and argument errors from cobra.
		err = WrapExitError(ExitCommandError, "invalid usage", err)
	}

	out := newFormatter(opts, stdout, stderr)
	if !isValidFormat(out.Format) {
		out.Format = "text"
	}
	var details any
	var ve *config.ValidationError
	if errors.As(err, &ve) {
		details = ve.Details
	}
	_ = out.Error(reasonOf(err), err.Error(), details)
	return GetExitCode(err)
}

func newFormatter(opts *RootOptions, stdout, stderr io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    stdout,
		ErrWriter: stderr,
		Verbose:   opts.Verbose,
	}
}

// errGeneratorOffline is returned by the stand-in client of commands that
// never generate, so they run without backend credentials.
var errGeneratorOffline = errors.New("generator not available for this command")

var offlineClient = generator.ClientFunc(func(context.Context, string, generator.Options) (generator.Result, error) {
	return generator.Result{}, errGeneratorOffline
})

// session is what every command body receives.
type session struct {
	ctx    context.Context
	app    *app.App
	out    *OutputFormatter
	logger *slog.Logger
}

// withApp resolves the config, installs the logger, builds an App, runs fn
// and closes the App. Commands that never call the generator pass
// needsGenerator=false and skip backend setup.
func withApp(cmd *cobra.Command, opts *RootOptions, needsGenerator bool, fn func(s *session) error) (err error) {
	cfg, used, err := config.Resolve(opts.Config)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Reason: "CONFIG_ERROR", Message: "failed to load config", Err: err}
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	level := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	if used != "" {
		logger.Debug("config loaded", "path", used)
	}

	appOpts := []app.Option{app.WithLogger(logger)}
	switch {
	case opts.Client != nil:
		appOpts = append(appOpts, app.WithClient(opts.Client))
	case !needsGenerator:
		appOpts = append(appOpts, app.WithClient(offlineClient))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, appOpts...)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Reason: "SETUP_ERROR", Message: "failed to start", Err: err}
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Error("error closing app", "error", closeErr)
			if err == nil {
				err = WrapExitError(ExitFailure, "failed to close", closeErr)
			}
		}
	}()

	return fn(&session{
		ctx:    ctx,
		app:    a,
		out:    newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr()),
		logger: logger,
	})
}

// failure builds an ExitError with a machine-readable reason.
func failure(code int, reason, message string, err error) *ExitError {
	return &ExitError{Code: code, Reason: reason, Message: message, Err: err}
}
