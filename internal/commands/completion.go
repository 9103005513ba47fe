package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/hay-kot/tradeoff/internal/core/config"
)

// ExampleCompleter returns a ShellCompleteFunc that suggests the configured
// example decisions as positional completions.
//
// When the user's last typed argument starts with "-", it falls back to the
// default flag completion behavior.
func ExampleCompleter(flags *Flags) cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		if args := cmd.Args(); args.Present() {
			last := args.Slice()[args.Len()-1]
			if len(last) > 0 && last[0] == '-' {
				cli.DefaultCompleteWithFlags(ctx, cmd)
				return
			}
		}

		examples := config.DefaultConfig().Examples
		if flags.Config != nil {
			examples = flags.Config.Examples
		}

		w := cmd.Root().Writer
		for _, ex := range examples {
			_, _ = fmt.Fprintf(w, "%q\n", ex)
		}
	}
}
