package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/hay-kot/tradeoff/internal/core/metrics"
	"github.com/hay-kot/tradeoff/internal/core/workflow"
	"github.com/hay-kot/tradeoff/internal/tradeoff"
	"github.com/hay-kot/tradeoff/pkg/iojson"
)

type AnalyzeCmd struct {
	flags *Flags
	app   *tradeoff.App

	// flags
	image      string
	jsonOutput bool
}

// NewAnalyzeCmd creates a new analyze command
func NewAnalyzeCmd(flags *Flags, app *tradeoff.App) *AnalyzeCmd {
	return &AnalyzeCmd{flags: flags, app: app}
}

// Register adds the analyze command to the application
func (cmd *AnalyzeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "analyze",
		Usage:     "Analyze a decision without opening the TUI",
		UsageText: "tradeoff analyze [--image path|glob] [--json] [decision]",
		Description: `Sends a decision to the scoring backend and prints the analysis with its
impact metrics.

The decision is read from the arguments, from stdin when piped, or from an
interactive prompt. When the decision is an ongoing activity, --image attaches
a photo as evidence and requests a verification. Glob patterns such as
'~/Pictures/**/*.jpg' pick the most recently modified match.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "image",
				Aliases:     []string{"i"},
				Usage:       "photo (path or glob) to verify an ongoing activity",
				Destination: &cmd.image,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		ShellComplete: ExampleCompleter(cmd.flags),
		Action:        cmd.run,
	})

	return app
}

// analyzeResult is the JSON output format for tradeoff analyze --json.
type analyzeResult struct {
	Query             string           `json:"query"`
	Analysis          string           `json:"analysis"`
	IsOngoingActivity *bool            `json:"isOngoingActivity,omitempty"`
	Metrics           *metrics.Metrics `json:"metrics,omitempty"`
	Verdict           string           `json:"verdict,omitempty"`
	Verification      string           `json:"verification,omitempty"`
	Image             string           `json:"image,omitempty"`
}

func (cmd *AnalyzeCmd) run(ctx context.Context, c *cli.Command) error {
	text, err := cmd.readDecision(c)
	if err != nil {
		return err
	}

	session, err := cmd.app.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	submit, err := session.Submit(text)
	if err != nil {
		return err
	}
	workflow.Await(ctx, session, submit)

	snap := session.Snapshot()
	if snap.Phase == workflow.PhaseError {
		return errors.New(snap.LastError)
	}

	result := analyzeResult{
		Query:             snap.LastSubmittedQuery,
		Analysis:          snap.AnalysisResult,
		IsOngoingActivity: snap.IsOngoingActivity.Ptr(),
		Metrics:           snap.Metrics,
	}
	if snap.Metrics != nil {
		result.Verdict = string(snap.Metrics.Verdict())
	}

	if cmd.image != "" {
		if err := cmd.verify(ctx, session, &result); err != nil {
			return err
		}
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		return iojson.WriteWith(out, c.Root().ErrWriter, result)
	}

	return cmd.render(out, result, snap.CanAttachImage())
}

func (cmd *AnalyzeCmd) verify(ctx context.Context, session *workflow.Session, result *analyzeResult) error {
	if !session.Snapshot().CanAttachImage() {
		return errors.New("this decision is not an ongoing activity; photo verification is unavailable")
	}

	path, err := resolveImage(cmd.image)
	if err != nil {
		return err
	}

	encode, err := session.SelectVerificationFile(path)
	if err != nil {
		return err
	}
	if err := encodeImage(ctx, session, encode); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	submit, err := session.SubmitVerification()
	if err != nil {
		return err
	}
	workflow.Await(ctx, session, submit)

	snap := session.Snapshot()
	if snap.Phase == workflow.PhaseError {
		return errors.New(snap.LastError)
	}

	result.Verification = snap.AnalysisResult
	result.Image = path
	return nil
}

// encodeImage runs the encode step and surfaces its failure. The session
// detaches an image it could not encode, which would otherwise only show up
// later as a missing image.
func encodeImage(ctx context.Context, session *workflow.Session, encode workflow.Cmd) error {
	msg := encode(ctx)
	session.Apply(msg)

	if em, ok := msg.(workflow.EncodeMsg); ok && em.Err != nil {
		return em.Err
	}
	if img := session.Snapshot().VerificationImage; !img.Ready() {
		return errors.New("image could not be prepared for verification")
	}
	return nil
}

func (cmd *AnalyzeCmd) readDecision(c *cli.Command) (string, error) {
	if text := strings.TrimSpace(strings.Join(c.Args().Slice(), " ")); text != "" {
		return text, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	var text string
	err := huh.NewInput().
		Title("What decision are you weighing?").
		Suggestions(cmd.flags.Config.Examples).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("this field cannot be left blank")
			}
			return nil
		}).
		Value(&text).
		Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (cmd *AnalyzeCmd) render(w io.Writer, r analyzeResult, canVerify bool) error {
	p := printer{w: w}

	p.Section("Analysis")
	p.Printf("%s", renderMarkdown(r.Analysis))

	if r.Metrics != nil {
		p.Printf("")
		p.Section("Impact")
		p.Printf("  Financial  %3d", r.Metrics.FinancialImpact)
		p.Printf("  Time       %3d", r.Metrics.TimeImpact)
		p.Printf("  Health     %3d", r.Metrics.HealthImpact)
		p.Printf("  Overall    %3d/100", r.Metrics.OverallScore)
		p.Printf("  %s", faintStyle.Render(r.Metrics.Verdict().Summary()))
	}

	if r.Verification != "" {
		p.Printf("")
		p.Section("Verification")
		p.Printf("%s", renderMarkdown(r.Verification))
		p.Successf("Verified with %s", r.Image)
		return nil
	}

	if canVerify {
		p.Printf("")
		p.Infof("This looks like an ongoing activity. Re-run with --image to verify it with a photo.")
	}
	return nil
}

func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
