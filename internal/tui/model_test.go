package tui

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/tradeoff/internal/core/analysis"
	"github.com/hay-kot/tradeoff/internal/core/identity"
	"github.com/hay-kot/tradeoff/internal/core/notify"
	"github.com/hay-kot/tradeoff/internal/core/workflow"
)

type fakeGateway struct {
	ongoing analysis.Ongoing
	err     error
}

func (g fakeGateway) AnalyzeText(_ context.Context, text string) (analysis.Result, error) {
	if g.err != nil {
		return analysis.Result{}, g.err
	}
	return analysis.Result{Text: "## Verdict\n\nanalysis of " + text, Ongoing: g.ongoing}, nil
}

func (g fakeGateway) VerifyImage(context.Context, string, string) (analysis.Verification, error) {
	return analysis.Verification{Text: "Photo confirms the activity."}, nil
}

func newTestModel(t *testing.T, gw analysis.Gateway) (Model, *workflow.Session, *notify.Center) {
	t.Helper()

	center := notify.NewCenter(time.Hour)
	t.Cleanup(center.Close)

	s := workflow.New(workflow.Config{
		Gateway:  gw,
		Notifier: center,
		Examples: []string{"Should I buy a bike?", "Should I learn Go?"},
	})

	m := New(Options{Session: s, Notifications: center, Backend: "http"})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model), s, center
}

// drain runs cmd and feeds every workflow outcome back into m. Only the
// commands produced by one key press are executed, none of which block.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}

	var msgs []tea.Msg
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			if c != nil {
				msgs = append(msgs, c())
			}
		}
	default:
		msgs = append(msgs, msg)
	}

	for _, msg := range msgs {
		if wm, ok := msg.(workflowMsg); ok {
			next, _ := m.Update(wm)
			m = next.(Model)
		}
	}
	return pumpToasts(m)
}

// pumpToasts applies queued notification changes without blocking.
func pumpToasts(m Model) Model {
	for {
		select {
		case c := <-m.feed.ch:
			m.toasts.Apply(c)
		default:
			return m
		}
	}
}

func typeText(m Model, text string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(Model)
}

func press(t *testing.T, m Model, k tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(k)
	return drain(t, next.(Model), cmd)
}

func TestModel_SubmitShowsAnalysis(t *testing.T) {
	m, s, center := newTestModel(t, fakeGateway{ongoing: analysis.OngoingNo})

	m = typeText(m, "Should I run every morning?")
	assert.Equal(t, "Should I run every morning?", s.Snapshot().DecisionText)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, workflow.PhaseAnalysisReady, s.Phase())
	assert.Equal(t, "Should I run every morning?", m.input.Value())

	view := m.View()
	assert.Contains(t, view, "Analysis")
	assert.Contains(t, view, "Overall")
	assert.Contains(t, view, "Analysis complete")
	assert.NotContains(t, view, "Verify with a photo")

	n, ok := center.Current()
	require.True(t, ok)
	assert.Equal(t, notify.SeveritySuccess, n.Severity)
}

func TestModel_BlankSubmitIsRejected(t *testing.T) {
	m, s, _ := newTestModel(t, fakeGateway{})

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, workflow.PhaseIdle, s.Phase())
	assert.Contains(t, m.View(), "Decision")
}

func TestModel_FailedAnalysisShowsError(t *testing.T) {
	m, s, _ := newTestModel(t, fakeGateway{err: analysis.ServerErrorf("status 500")})

	m = typeText(m, "Should I nap?")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, workflow.PhaseError, s.Phase())
	assert.Contains(t, m.View(), s.Snapshot().LastError)
}

func TestModel_PickExampleCycles(t *testing.T) {
	m, s, _ := newTestModel(t, fakeGateway{})

	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlE})
	assert.Equal(t, "Should I buy a bike?", m.input.Value())
	assert.Equal(t, "Should I buy a bike?", s.Snapshot().DecisionText)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlE})
	assert.Equal(t, "Should I learn Go?", m.input.Value())

	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlE})
	assert.Equal(t, "Should I buy a bike?", m.input.Value())
}

func TestModel_AttachAndVerify(t *testing.T) {
	m, s, _ := newTestModel(t, fakeGateway{ongoing: analysis.OngoingYes})

	m = typeText(m, "I want to run every day.")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, s.Snapshot().CanAttachImage())
	assert.Contains(t, m.View(), "Verify with a photo")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	assert.Equal(t, focusImagePath, m.focus)

	m = typeText(m, writePNG(t))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, focusDecision, m.focus)
	require.True(t, s.Snapshot().CanSubmitVerification())
	assert.Contains(t, m.View(), "photo.png")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlV})
	assert.Equal(t, workflow.PhaseVerificationReady, s.Phase())
	assert.Contains(t, m.View(), "Verification complete")
}

func TestModel_AttachIgnoredWithoutOngoingActivity(t *testing.T) {
	m, _, _ := newTestModel(t, fakeGateway{ongoing: analysis.OngoingNo})

	m = typeText(m, "Buy a console?")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})

	assert.Equal(t, focusDecision, m.focus)
}

func TestModel_EscapeCancelsPathInput(t *testing.T) {
	m, s, _ := newTestModel(t, fakeGateway{ongoing: analysis.OngoingYes})

	m = typeText(m, "Walk the dog daily")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	m = typeText(m, "/nope.png")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	assert.Equal(t, focusDecision, m.focus)
	assert.Nil(t, s.Snapshot().VerificationImage)
}

func TestModel_ResetClearsEverything(t *testing.T) {
	m, s, _ := newTestModel(t, fakeGateway{ongoing: analysis.OngoingYes})

	m = typeText(m, "Walk the dog daily")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})

	assert.Equal(t, workflow.PhaseIdle, s.Phase())
	assert.Empty(t, m.input.Value())
	assert.NotContains(t, m.View(), "Overall")
}

func TestModel_ToastFollowsCenter(t *testing.T) {
	m, _, center := newTestModel(t, fakeGateway{})

	n := center.Notify("Saved", "all good", notify.SeveritySuccess)
	next, _ := m.Update(notifyChangeMsg{Notification: n})
	m = next.(Model)
	assert.Contains(t, m.View(), "Saved")

	next, _ = m.Update(notifyChangeMsg{Notification: n, Expired: true})
	m = next.(Model)
	assert.NotContains(t, m.View(), "Saved")
}

func TestToastFeed_KeepsLatestChange(t *testing.T) {
	m, _, center := newTestModel(t, fakeGateway{})

	var last notify.Notification
	for range 40 {
		last = center.Notify("Toast", "burst", notify.SeveritySuccess)
	}
	center.Dismiss()

	m = pumpToasts(m)
	_, ok := m.toasts.Current()
	assert.False(t, ok, "expiry of the last toast must not be lost")

	n := center.Notify("After", "burst", notify.SeveritySuccess)
	assert.Greater(t, n.ID, last.ID)
	m = pumpToasts(m)
	got, ok := m.toasts.Current()
	require.True(t, ok)
	assert.Equal(t, n.ID, got.ID)
}

func TestToastController_IgnoresStaleExpiry(t *testing.T) {
	var c ToastController

	first := notify.Notification{ID: 1, Title: "first"}
	second := notify.Notification{ID: 2, Title: "second"}

	c.Apply(notify.Change{Notification: first})
	c.Apply(notify.Change{Notification: second})
	c.Apply(notify.Change{Notification: first, Expired: true})

	got, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, int64(2), got.ID)
}

type fakeIdentity struct {
	user     *identity.User
	listener identity.AuthListener
}

func (f *fakeIdentity) CurrentUser(context.Context) (*identity.User, error) { return f.user, nil }

func (f *fakeIdentity) OnAuthChange(_ context.Context, fn identity.AuthListener) error {
	f.listener = fn
	fn(f.user)
	return nil
}

func (f *fakeIdentity) SignOut(context.Context) error {
	f.user = nil
	f.listener(nil)
	return nil
}

func applyAuth(t *testing.T, m Model) Model {
	t.Helper()
	select {
	case u := <-m.auth.ch:
		next, _ := m.Update(authChangedMsg{user: u})
		return next.(Model)
	default:
		t.Fatal("expected an auth change")
		return m
	}
}

func TestModel_FollowsSignedInUser(t *testing.T) {
	ids := &fakeIdentity{user: &identity.User{ID: "u-1", Username: "ada"}}
	s := workflow.New(workflow.Config{Gateway: fakeGateway{}})

	m := New(Options{Session: s, Identity: ids, Backend: "http"})
	m = applyAuth(t, m)
	assert.Equal(t, "u-1", s.UserID())
	assert.Contains(t, m.View(), "ada")

	require.NoError(t, ids.SignOut(context.Background()))
	m = applyAuth(t, m)
	assert.Empty(t, s.UserID())
	assert.Contains(t, m.View(), "signed out")
}

func TestModel_QuitKey(t *testing.T) {
	m, _, _ := newTestModel(t, fakeGateway{})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, next.(Model).View())
}

func writePNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	require.NoError(t, f.Close())
	return path
}
