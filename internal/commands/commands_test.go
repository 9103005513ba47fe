package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/hay-kot/tradeoff/internal/core/analysis"
	"github.com/hay-kot/tradeoff/internal/core/config"
	"github.com/hay-kot/tradeoff/internal/core/eventbus"
	"github.com/hay-kot/tradeoff/internal/core/media"
	"github.com/hay-kot/tradeoff/internal/core/task"
	"github.com/hay-kot/tradeoff/internal/core/workflow"
	"github.com/hay-kot/tradeoff/internal/data/db"
	"github.com/hay-kot/tradeoff/internal/tradeoff"
)

type stubGateway struct {
	ongoing analysis.Ongoing
}

func (g stubGateway) AnalyzeText(_ context.Context, text string) (analysis.Result, error) {
	return analysis.Result{Text: "analysis of " + text, Ongoing: g.ongoing}, nil
}

func (stubGateway) VerifyImage(context.Context, string, string) (analysis.Verification, error) {
	return analysis.Verification{Text: "The photo shows a running track."}, nil
}

type harness struct {
	flags *Flags
	app   *tradeoff.App
	out   *bytes.Buffer
}

func newHarness(t *testing.T, gw analysis.Gateway) *harness {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = dir

	database, err := db.Open(dir, db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	bus := eventbus.New(64)
	ctx, cancel := context.WithCancel(context.Background())
	go bus.Start(ctx)
	t.Cleanup(cancel)

	app := tradeoff.NewApp(tradeoff.Deps{
		Config:  &cfg,
		DB:      database,
		Bus:     bus,
		Gateway: gw,
		Logger:  zerolog.Nop(),
	})
	t.Cleanup(app.Close)

	flags := &Flags{Config: &cfg, DataDir: dir}
	return &harness{flags: flags, app: app, out: &bytes.Buffer{}}
}

// run executes args against a freshly built command tree so flag values
// never leak between invocations.
func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	h.out.Reset()

	root := &cli.Command{Name: "tradeoff", Writer: h.out, ErrWriter: h.out}
	root = NewAnalyzeCmd(h.flags, h.app).Register(root)
	root = NewTasksCmd(h.flags, h.app).Register(root)
	root = NewLeaderboardCmd(h.flags, h.app).Register(root)
	root = NewAuthCmd(h.flags, h.app).Register(root)
	root = NewConfigValidateCmd(h.flags).Register(root)
	root = NewDBCmd(h.flags, h.app).Register(root)

	return root.Run(context.Background(), append([]string{"tradeoff"}, args...))
}

func TestAuthCommands(t *testing.T) {
	h := newHarness(t, stubGateway{})

	require.ErrorIs(t, h.run(t, "whoami"), errSignedOut)

	require.NoError(t, h.run(t, "login", "ada"))
	assert.Contains(t, h.out.String(), "Signed in as ada")

	require.NoError(t, h.run(t, "whoami"))
	assert.Equal(t, "ada", strings.TrimSpace(h.out.String()))

	require.NoError(t, h.run(t, "whoami", "--json"))
	var user map[string]any
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &user))
	assert.Equal(t, "ada", user["username"])

	require.NoError(t, h.run(t, "logout"))
	assert.Contains(t, h.out.String(), "Signed out ada")

	require.NoError(t, h.run(t, "logout"))
	assert.Contains(t, h.out.String(), "Not signed in")

	require.Error(t, h.run(t, "login", "x"))
}

func TestAnalyzeCommand_JSON(t *testing.T) {
	h := newHarness(t, stubGateway{ongoing: analysis.OngoingNo})

	require.NoError(t, h.run(t, "analyze", "--json", "Should", "I", "buy", "a", "bike?"))

	var got analyzeResult
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &got))
	assert.Equal(t, "Should I buy a bike?", got.Query)
	assert.Equal(t, "analysis of Should I buy a bike?", got.Analysis)
	require.NotNil(t, got.IsOngoingActivity)
	assert.False(t, *got.IsOngoingActivity)
	require.NotNil(t, got.Metrics)
	assert.NotEmpty(t, got.Verdict)
}

func TestAnalyzeCommand_ImageRequiresOngoingActivity(t *testing.T) {
	h := newHarness(t, stubGateway{ongoing: analysis.OngoingNo})

	err := h.run(t, "analyze", "--image", "photo.png", "Buy a console?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an ongoing activity")
}

func TestAnalyzeCommand_VerifiesWithImage(t *testing.T) {
	h := newHarness(t, stubGateway{ongoing: analysis.OngoingYes})

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "old.png"), pngData(t), time.Now().Add(-time.Hour))
	writeFile(t, filepath.Join(dir, "new.png"), pngData(t), time.Now())

	require.NoError(t, h.run(t, "analyze", "--json", "--image", filepath.Join(dir, "*.png"), "Run every morning"))

	var got analyzeResult
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &got))
	assert.Equal(t, "The photo shows a running track.", got.Verification)
	assert.Equal(t, filepath.Join(dir, "new.png"), got.Image)
}

func TestEncodeImage_reports_encode_failure(t *testing.T) {
	h := newHarness(t, stubGateway{ongoing: analysis.OngoingYes})
	ctx := context.Background()

	session, err := h.app.NewSession(ctx)
	require.NoError(t, err)
	submit, err := session.Submit("Run every morning")
	require.NoError(t, err)
	require.True(t, workflow.Await(ctx, session, submit))

	path := filepath.Join(t.TempDir(), "proof.png")
	writeFile(t, path, pngData(t), time.Now())
	encode, err := session.SelectVerificationFile(path)
	require.NoError(t, err)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write(make([]byte, 6<<20))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	err = encodeImage(ctx, session, encode)
	require.ErrorIs(t, err, media.ErrTooLarge)
	assert.NotContains(t, err.Error(), "Image required")
	assert.Nil(t, session.Snapshot().VerificationImage)
}

func TestTasksAndLeaderboard(t *testing.T) {
	h := newHarness(t, stubGateway{})
	ctx := context.Background()

	require.ErrorIs(t, h.run(t, "tasks"), errSignedOut)

	ada, err := h.app.Identity.SignIn(ctx, "ada")
	require.NoError(t, err)
	grace, err := h.app.Identity.SignIn(ctx, "grace")
	require.NoError(t, err)

	for _, q := range []string{"walk", "run"} {
		_, err := h.app.Tasks.InsertTask(ctx, task.Task{UserID: ada.ID, Query: q, Analysis: "ok"})
		require.NoError(t, err)
	}
	_, err = h.app.Tasks.InsertTask(ctx, task.Task{UserID: grace.ID, Query: "swim", Analysis: "ok"})
	require.NoError(t, err)

	// grace is signed in
	require.NoError(t, h.run(t, "tasks"))
	assert.Contains(t, h.out.String(), "swim")
	assert.NotContains(t, h.out.String(), "walk")

	require.NoError(t, h.run(t, "tasks", "--json"))
	lines := strings.Split(strings.TrimSpace(h.out.String()), "\n")
	assert.Len(t, lines, 1)

	require.NoError(t, h.run(t, "leaderboard", "--json"))
	var rows []leaderboardRow
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, leaderboardRow{Rank: 1, Username: "ada", TasksCompleted: 2}, rows[0])
	assert.Equal(t, leaderboardRow{Rank: 2, Username: "grace", TasksCompleted: 1}, rows[1])

	require.NoError(t, h.run(t, "leaderboard"))
	assert.Contains(t, h.out.String(), "grace (you)")

	require.NoError(t, h.run(t, "leaderboard", "--limit", "1", "--json"))
	rows = nil
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &rows))
	assert.Len(t, rows, 1)
}

func TestConfigValidate(t *testing.T) {
	h := newHarness(t, stubGateway{})

	require.NoError(t, h.run(t, "config", "validate", "--format", "json"))

	var report validationReport
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &report))
	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
}

func TestResolveImage(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeFile(t, filepath.Join(dir, "a", "one.jpg"), []byte("x"), now.Add(-2*time.Hour))
	writeFile(t, filepath.Join(dir, "b", "c", "two.jpg"), []byte("x"), now)
	writeFile(t, filepath.Join(dir, "b", "three.png"), []byte("x"), now.Add(time.Hour))

	t.Run("plain path passes through", func(t *testing.T) {
		got, err := resolveImage(filepath.Join(dir, "missing.jpg"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "missing.jpg"), got)
	})

	t.Run("recursive glob picks newest", func(t *testing.T) {
		got, err := resolveImage(filepath.Join(dir, "**", "*.jpg"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "b", "c", "two.jpg"), got)
	})

	t.Run("no matches", func(t *testing.T) {
		_, err := resolveImage(filepath.Join(dir, "*.gif"))
		require.Error(t, err)
	})
}

func pngData(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func writeFile(t *testing.T, path string, data []byte, mod time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestDBCommands(t *testing.T) {
	h := newHarness(t, stubGateway{})

	require.NoError(t, h.run(t, "db", "status"))
	assert.Contains(t, h.out.String(), "0002")
	assert.NotContains(t, h.out.String(), "pending")

	require.ErrorIs(t, h.run(t, "db", "rollback"), errRollbackUnconfirmed)

	require.NoError(t, h.run(t, "db", "rollback", "--yes"))
	assert.Contains(t, h.out.String(), "schema is at version 1")

	require.NoError(t, h.run(t, "db", "status", "--json"))
	lines := strings.Split(strings.TrimSpace(h.out.String()), "\n")
	require.Len(t, lines, 2)
	var rows []migrationRow
	for _, line := range lines {
		var row migrationRow
		require.NoError(t, json.Unmarshal([]byte(line), &row))
		rows = append(rows, row)
	}
	assert.True(t, rows[0].Applied)
	assert.NotEmpty(t, rows[0].AppliedAt)
	assert.Equal(t, migrationRow{Version: 2, Name: "tasks"}, rows[1])

	err := h.run(t, "db", "rollback", "--steps", "5", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only 1 are applied")
}
