package commands

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/tradeoff/internal/core/identity"
	"github.com/hay-kot/tradeoff/internal/tradeoff"
	"github.com/hay-kot/tradeoff/pkg/iojson"
)

type AuthCmd struct {
	flags *Flags
	app   *tradeoff.App

	// flags
	jsonOutput bool
}

// NewAuthCmd creates the login, logout and whoami commands
func NewAuthCmd(flags *Flags, app *tradeoff.App) *AuthCmd {
	return &AuthCmd{flags: flags, app: app}
}

// Register adds the login, logout and whoami commands to the application
func (cmd *AuthCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "login",
			Usage:     "Sign in so analyzed decisions are recorded",
			UsageText: "tradeoff login [username]",
			Description: `Signs in as the given user, creating it on first use. While signed in,
every analyzed decision is recorded as a task and counts toward the
leaderboard. Usernames are 3-32 letters, digits, '-', '_' or '.'.`,
			Action: cmd.login,
		},
		&cli.Command{
			Name:   "logout",
			Usage:  "Sign out",
			Action: cmd.logout,
		},
		&cli.Command{
			Name:  "whoami",
			Usage: "Show the signed-in user",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:        "json",
					Usage:       "output as JSON",
					Destination: &cmd.jsonOutput,
				},
			},
			Action: cmd.whoami,
		},
	)

	return app
}

func (cmd *AuthCmd) login(ctx context.Context, c *cli.Command) error {
	p := printer{w: c.Root().Writer}

	username := strings.TrimSpace(c.Args().First())
	if username == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("username is required")
		}
		err := huh.NewInput().
			Title("Username").
			Validate(func(s string) error {
				_, err := identity.NormalizeUsername(s)
				return err
			}).
			Value(&username).
			Run()
		if err != nil {
			return err
		}
	}

	user, err := cmd.app.Identity.SignIn(ctx, username)
	if err != nil {
		return err
	}

	p.Successf("Signed in as %s", user.Username)
	return nil
}

func (cmd *AuthCmd) logout(ctx context.Context, c *cli.Command) error {
	p := printer{w: c.Root().Writer}

	user, err := cmd.app.Identity.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		p.Infof("Not signed in")
		return nil
	}

	if err := cmd.app.Identity.SignOut(ctx); err != nil {
		return err
	}
	p.Successf("Signed out %s", user.Username)
	return nil
}

func (cmd *AuthCmd) whoami(ctx context.Context, c *cli.Command) error {
	user, err := cmd.app.Identity.CurrentUser(ctx)
	if err != nil {
		return err
	}

	if cmd.jsonOutput {
		return iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, user)
	}

	if user == nil {
		return errSignedOut
	}
	printer{w: c.Root().Writer}.Printf("%s", user.Username)
	return nil
}
