package commands

import (
	"context"
	"errors"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/tradeoff/internal/core/config"
	"github.com/hay-kot/tradeoff/pkg/iojson"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "tradeoff config validate [options]",
				Description: "Validates the configuration file, checking the scoring backend, URLs and file paths.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

// validationReport is the JSON output format for config validate.
type validationReport struct {
	Valid    bool                       `json:"valid"`
	Errors   []string                   `json:"errors,omitempty"`
	Warnings []config.ValidationWarning `json:"warnings,omitempty"`
}

func (cmd *ConfigValidateCmd) run(_ context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	err := cfg.ValidateDeep(cmd.flags.ConfigPath)

	report := validationReport{
		Valid:    err == nil,
		Errors:   flattenErrors(err),
		Warnings: cfg.Warnings(),
	}

	if cmd.format == "json" {
		if werr := iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, report); werr != nil {
			return werr
		}
		if !report.Valid {
			return cli.Exit("", 1)
		}
		return nil
	}

	p := printer{w: c.Root().Writer}
	for _, w := range report.Warnings {
		p.Infof("%s: %s", w.Category, w.Message)
		if w.Item != "" {
			p.Printf("  Item: %s", w.Item)
		}
	}
	for _, e := range report.Errors {
		p.Errorf("%s", e)
	}

	p.Printf("")
	if report.Valid {
		p.Successf("Configuration is valid")
		return nil
	}

	p.Errorf("%d error(s) found", len(report.Errors))
	return cli.Exit("", 1)
}

// flattenErrors expands criterio field errors into one line per field.
func flattenErrors(err error) []string {
	if err == nil {
		return nil
	}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		out := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			out = append(out, fe.Field+": "+fe.Err.Error())
		}
		return out
	}
	return []string{err.Error()}
}
