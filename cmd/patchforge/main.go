package main

import (
	"context"
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/mxcd/patchforge/internal/actions"
	"github.com/mxcd/patchforge/internal/patch"
	"github.com/mxcd/patchforge/internal/util"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

var version = "development"

func main() {

	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{},
		Usage:   "print only the version",
	}

	cmd := &cli.Command{
		Name:    "patchforge",
		Version: version,
		Usage:   "Maintain a patch stack on top of an upstream repository",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "debug output",
				Sources: cli.EnvVars("PATCHFORGE_VERBOSE"),
			},
			&cli.BoolFlag{
				Name:    "very-verbose",
				Aliases: []string{"vv"},
				Usage:   "trace output",
				Sources: cli.EnvVars("PATCHFORGE_VERY_VERBOSE"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return initCli(ctx, cmd)
		},
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Run the full pipeline: checkout, patch, overlay, inject, build, regenerate",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file or directory",
						Value:   ".patchforge.yml",
						Sources: cli.EnvVars("PATCHFORGE_CONFIG"),
					},
					&cli.BoolFlag{
						Name:  "discard-changes",
						Usage: "Reset a dirty working tree instead of failing",
					},
					&cli.BoolFlag{
						Name:  "skip-build",
						Usage: "Skip the external build command",
					},
				},
				Action: buildCommand,
			},
			{
				Name:  "apply",
				Usage: "Prepare the working tree without building: checkout, patch, overlay, inject",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file or directory",
						Value:   ".patchforge.yml",
						Sources: cli.EnvVars("PATCHFORGE_CONFIG"),
					},
					&cli.BoolFlag{
						Name:  "discard-changes",
						Usage: "Reset a dirty working tree instead of failing",
					},
				},
				Action: applyCommand,
			},
			{
				Name:  "save",
				Usage: "Regenerate the patch from the current working tree",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file or directory",
						Value:   ".patchforge.yml",
						Sources: cli.EnvVars("PATCHFORGE_CONFIG"),
					},
					&cli.BoolFlag{
						Name:    "write",
						Aliases: []string{"w"},
						Usage:   "Write the patch file instead of printing it",
					},
				},
				Action: saveCommand,
			},
			{
				Name:  "validate",
				Usage: "Validate the configuration and the resolvable patch set",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file or directory",
						Value:   ".patchforge.yml",
						Sources: cli.EnvVars("PATCHFORGE_CONFIG"),
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output format: table, json, yaml",
						Value: "table",
					},
				},
				Action: validateCommand,
			},
			{
				Name:  "resolve",
				Usage: "Show which patch set the configured upstream resolves to",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file or directory",
						Value:   ".patchforge.yml",
						Sources: cli.EnvVars("PATCHFORGE_CONFIG"),
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output format: table, json, yaml",
						Value: "table",
					},
				},
				Action: resolveCommand,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("command terminated with error")
	}
}

func initCli(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	godotenv.Load()
	util.SetCliLoggerDefaults()
	util.SetCliLogLevel(cmd)
	log.Trace().Msg("Trace logging enabled")
	log.Debug().Msg("Debug logging enabled")

	return ctx, nil
}

// exitCode maps the pipeline's error classes to the documented exit codes:
// 3 configuration error, 4 patch conflict, 5 malformed patch, 6 no patch
// set found, 1 anything else (including a failed external build). Success
// paths use 0 (patch unchanged) and 2 (patch updated).
func exitCode(err error) int {
	var configErr *actions.ConfigError
	var conflictErr *patch.ConflictError
	var structuralErr *patch.StructuralError
	var resolutionErr *patch.ResolutionError
	switch {
	case errors.As(err, &configErr):
		return 3
	case errors.As(err, &conflictErr):
		return 4
	case errors.As(err, &structuralErr):
		return 5
	case errors.As(err, &resolutionErr):
		return 6
	}
	return 1
}

func buildCommand(ctx context.Context, cmd *cli.Command) error {
	result, err := actions.Build(ctx, &actions.BuildOptions{
		ConfigPath:     cmd.String("config"),
		DiscardChanges: cmd.Bool("discard-changes"),
		SkipBuild:      cmd.Bool("skip-build"),
	})
	if err != nil {
		log.Error().Err(err).Msg("Build failed")
		return cli.Exit(err.Error(), exitCode(err))
	}
	if result.PatchUpdated {
		return cli.Exit("", 2)
	}
	return nil
}

func applyCommand(ctx context.Context, cmd *cli.Command) error {
	err := actions.Apply(ctx, &actions.ApplyOptions{
		ConfigPath:     cmd.String("config"),
		DiscardChanges: cmd.Bool("discard-changes"),
	})
	if err != nil {
		log.Error().Err(err).Msg("Apply failed")
		return cli.Exit(err.Error(), exitCode(err))
	}
	return nil
}

func saveCommand(ctx context.Context, cmd *cli.Command) error {
	result, err := actions.Save(ctx, &actions.SaveOptions{
		ConfigPath: cmd.String("config"),
		Write:      cmd.Bool("write"),
	})
	if err != nil {
		log.Error().Err(err).Msg("Save failed")
		return cli.Exit(err.Error(), exitCode(err))
	}
	if result.PatchUpdated {
		return cli.Exit("", 2)
	}
	return nil
}

func validateCommand(ctx context.Context, cmd *cli.Command) error {
	err := actions.Validate(&actions.ValidateOptions{
		ConfigPath:   cmd.String("config"),
		OutputFormat: cmd.String("output"),
	})
	if err != nil {
		return cli.Exit(err.Error(), exitCode(err))
	}
	return nil
}

func resolveCommand(ctx context.Context, cmd *cli.Command) error {
	err := actions.Resolve(&actions.ResolveOptions{
		ConfigPath:   cmd.String("config"),
		OutputFormat: cmd.String("output"),
	})
	if err != nil {
		log.Error().Err(err).Msg("Resolve failed")
		return cli.Exit(err.Error(), exitCode(err))
	}
	return nil
}
