package tradeoff

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/tradeoff/internal/core/analysis"
	"github.com/hay-kot/tradeoff/internal/core/config"
	"github.com/hay-kot/tradeoff/internal/core/eventbus"
	"github.com/hay-kot/tradeoff/internal/core/eventbus/testbus"
	"github.com/hay-kot/tradeoff/internal/core/identity"
	"github.com/hay-kot/tradeoff/internal/core/workflow"
	"github.com/hay-kot/tradeoff/internal/data/db"
	"github.com/hay-kot/tradeoff/internal/data/stores"
)

const waitTimeout = time.Second

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(t.TempDir(), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

type stubGateway struct{}

func (stubGateway) AnalyzeText(_ context.Context, text string) (analysis.Result, error) {
	return analysis.Result{Text: "analysis of " + text, Ongoing: analysis.OngoingYes}, nil
}

func (stubGateway) VerifyImage(context.Context, string, string) (analysis.Verification, error) {
	return analysis.Verification{Text: "verified"}, nil
}

func newTestApp(t *testing.T) (*App, *testbus.Bus) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	tb := testbus.New(t)
	app := NewApp(Deps{
		Config:  &cfg,
		DB:      openTestDB(t),
		Bus:     tb.EventBus,
		Gateway: stubGateway{},
		Logger:  zerolog.Nop(),
	})
	t.Cleanup(app.Close)
	return app, tb
}

func TestIdentityService(t *testing.T) {
	ctx := context.Background()

	t.Run("sign in and out", func(t *testing.T) {
		app, tb := newTestApp(t)

		var seen []string
		require.NoError(t, app.Identity.OnAuthChange(ctx, func(u *identity.User) {
			if u == nil {
				seen = append(seen, "<nil>")
				return
			}
			seen = append(seen, u.Username)
		}))

		user, err := app.Identity.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Nil(t, user)

		signed, err := app.Identity.SignIn(ctx, "  ada  ")
		require.NoError(t, err)
		assert.Equal(t, "ada", signed.Username)

		user, err = app.Identity.CurrentUser(ctx)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, signed.ID, user.ID)

		require.NoError(t, app.Identity.SignOut(ctx))
		user, err = app.Identity.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Nil(t, user)

		assert.Equal(t, []string{"<nil>", "ada", "<nil>"}, seen)

		require.True(t, tb.WaitFor(eventbus.EventAuthChanged, waitTimeout))
		assert.Eventually(t, func() bool {
			return len(testbus.Payloads[eventbus.AuthChangedPayload](tb, eventbus.EventAuthChanged)) == 2
		}, waitTimeout, 5*time.Millisecond)
	})

	t.Run("listener starts with the signed-in user", func(t *testing.T) {
		app, _ := newTestApp(t)
		signed, err := app.Identity.SignIn(ctx, "grace")
		require.NoError(t, err)

		var got []*identity.User
		require.NoError(t, app.Identity.OnAuthChange(ctx, func(u *identity.User) {
			got = append(got, u)
		}))

		require.Len(t, got, 1)
		require.NotNil(t, got[0])
		assert.Equal(t, signed.ID, got[0].ID)
	})

	t.Run("sign out when signed out is a no-op", func(t *testing.T) {
		app, tb := newTestApp(t)
		require.NoError(t, app.Identity.SignOut(ctx))
		tb.AssertNotPublished(t, eventbus.EventAuthChanged, 50*time.Millisecond)
	})

	t.Run("invalid username", func(t *testing.T) {
		app, _ := newTestApp(t)
		_, err := app.Identity.SignIn(ctx, "a")
		require.Error(t, err)
	})

	t.Run("same username reuses the user", func(t *testing.T) {
		app, _ := newTestApp(t)
		first, err := app.Identity.SignIn(ctx, "grace")
		require.NoError(t, err)
		second, err := app.Identity.SignIn(ctx, "GRACE")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("stale remembered user", func(t *testing.T) {
		app, _ := newTestApp(t)
		require.NoError(t, app.Identity.session.Set(ctx, currentUserKey, "gone"))

		user, err := app.Identity.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Nil(t, user)

		has, err := app.Identity.session.Has(ctx, currentUserKey)
		require.NoError(t, err)
		assert.False(t, has)
	})
}

func TestTaskRecorder(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous completions are ignored", func(t *testing.T) {
		app, tb := newTestApp(t)

		ok, err := app.Recorder.RecordAnalysis(ctx, workflow.Completion{Query: "q", Result: "r", At: time.Now()})
		require.NoError(t, err)
		assert.False(t, ok)
		require.NoError(t, app.Recorder.RecordVerification(ctx, workflow.Completion{Query: "q", At: time.Now()}))
		tb.AssertNotPublished(t, eventbus.EventTaskRecorded, 50*time.Millisecond)
	})

	t.Run("analysis then verification", func(t *testing.T) {
		app, tb := newTestApp(t)
		user, err := app.Identity.SignIn(ctx, "ada")
		require.NoError(t, err)

		now := time.Now()
		ok, err := app.Recorder.RecordAnalysis(ctx, workflow.Completion{UserID: user.ID, Query: "walk", Result: "good", At: now})
		require.NoError(t, err)
		assert.True(t, ok)
		tb.AssertPublished(t, eventbus.EventTaskRecorded)

		require.NoError(t, app.Recorder.RecordVerification(ctx, workflow.Completion{UserID: user.ID, Query: "walk", Result: "seen", At: now.Add(time.Minute)}))

		tasks, err := app.Tasks.ListTasks(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.True(t, tasks[0].Verified)
		assert.Equal(t, "good", tasks[0].Analysis)
	})

	t.Run("verification without a task inserts a verified task", func(t *testing.T) {
		app, _ := newTestApp(t)
		user, err := app.Identity.SignIn(ctx, "ada")
		require.NoError(t, err)

		require.NoError(t, app.Recorder.RecordVerification(ctx, workflow.Completion{UserID: user.ID, Query: "run", Result: "seen", At: time.Now()}))

		tasks, err := app.Tasks.ListTasks(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.True(t, tasks[0].Verified)
	})
}

func TestApp_SessionRecordsTasks(t *testing.T) {
	ctx := context.Background()
	app, tb := newTestApp(t)

	user, err := app.Identity.SignIn(ctx, "ada")
	require.NoError(t, err)

	s, err := app.NewSession(ctx)
	require.NoError(t, err)

	cmd, err := s.Submit("walk to work")
	require.NoError(t, err)
	require.True(t, workflow.Await(ctx, s, cmd))
	assert.Equal(t, workflow.PhaseAnalysisReady, s.Phase())

	require.True(t, tb.WaitFor(eventbus.EventTaskRecorded, waitTimeout))
	recorded := testbus.Payloads[eventbus.TaskRecordedPayload](tb, eventbus.EventTaskRecorded)
	require.Len(t, recorded, 1)
	assert.Equal(t, user.ID, recorded[0].Task.UserID)
	assert.Equal(t, "walk to work", recorded[0].Task.Query)

	phases := testbus.Payloads[eventbus.PhaseChangedPayload](tb, eventbus.EventPhaseChanged)
	require.NotEmpty(t, phases)
	assert.Equal(t, s.ID(), phases[0].SessionID)

	tb.AssertPublished(t, eventbus.EventNotificationPublished)
}

func TestApp_AnonymousSessionRecordsNothing(t *testing.T) {
	ctx := context.Background()
	app, tb := newTestApp(t)

	s, err := app.NewSession(ctx)
	require.NoError(t, err)

	cmd, err := s.Submit("walk to work")
	require.NoError(t, err)
	require.True(t, workflow.Await(ctx, s, cmd))

	tb.AssertPublished(t, eventbus.EventAnalysisCompleted)
	tb.AssertNotPublished(t, eventbus.EventTaskRecorded, 100*time.Millisecond)
}

type countingChecker struct {
	calls atomic.Int32
	err   error
}

func (c *countingChecker) Health(context.Context) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	return "ok", nil
}

func TestHealthService(t *testing.T) {
	ctx := context.Background()

	t.Run("caches checks", func(t *testing.T) {
		checker := &countingChecker{}
		h := NewHealthService(checker, stores.NewKVStore(openTestDB(t)))

		first := h.Check(ctx)
		second := h.Check(ctx)
		assert.True(t, first.OK)
		assert.Equal(t, "ok", second.Message)
		assert.Equal(t, int32(1), checker.calls.Load())

		h.Refresh(ctx)
		assert.Equal(t, int32(2), checker.calls.Load())
	})

	t.Run("failure is reported in the status", func(t *testing.T) {
		checker := &countingChecker{err: errors.New("connection refused")}
		h := NewHealthService(checker, stores.NewKVStore(openTestDB(t)))

		status := h.Check(ctx)
		assert.False(t, status.OK)
		assert.Contains(t, status.Message, "connection refused")
	})

	t.Run("no checker", func(t *testing.T) {
		h := NewHealthService(nil, stores.NewKVStore(openTestDB(t)))
		assert.True(t, h.Check(ctx).OK)
		assert.True(t, h.Refresh(ctx).OK)
	})
}

func TestNewGateway(t *testing.T) {
	ctx := context.Background()

	t.Run("http", func(t *testing.T) {
		cfg := config.DefaultConfig()
		gw, checker, err := NewGateway(ctx, &cfg, zerolog.Nop())
		require.NoError(t, err)
		assert.NotNil(t, gw)
		assert.NotNil(t, checker)
	})

	t.Run("gemini without key", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Scoring.Backend = config.BackendGemini
		cfg.Gemini.APIKeyEnv = "TRADEOFF_TEST_UNSET_KEY"
		t.Setenv("TRADEOFF_TEST_UNSET_KEY", "")

		_, _, err := NewGateway(ctx, &cfg, zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TRADEOFF_TEST_UNSET_KEY")
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Scoring.Backend = "carrier-pigeon"
		_, _, err := NewGateway(ctx, &cfg, zerolog.Nop())
		require.Error(t, err)
	})
}

type sweepCounter struct{ calls atomic.Int32 }

func (s *sweepCounter) SweepExpired(context.Context) error {
	s.calls.Add(1)
	return nil
}

func TestStartSweep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	counter := &sweepCounter{}

	done := make(chan struct{})
	go func() {
		StartSweep(ctx, counter, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return counter.calls.Load() >= 2 }, waitTimeout, 5*time.Millisecond)
	cancel()
	<-done
}

func TestBusObserver(t *testing.T) {
	tb := testbus.New(t)
	obs := NewBusObserver(tb.EventBus)

	obs.PhaseChanged("s1", workflow.PhaseIdle, workflow.PhaseSubmitting)
	obs.AnalysisCompleted(workflow.Completion{SessionID: "s1", Query: "q"})
	obs.VerificationCompleted(workflow.Completion{SessionID: "s1", Query: "q"})

	tb.AssertPublished(t, eventbus.EventPhaseChanged)
	tb.AssertPublished(t, eventbus.EventAnalysisCompleted)
	tb.AssertPublished(t, eventbus.EventVerificationCompleted)

	phases := testbus.Payloads[eventbus.PhaseChangedPayload](tb, eventbus.EventPhaseChanged)
	require.Len(t, phases, 1)
	assert.Equal(t, workflow.PhaseSubmitting, phases[0].To)
}
