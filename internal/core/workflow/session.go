// Package workflow implements the decision analysis and verification
// session: the state machine that sequences "submit decision, await
// analysis, optionally await photographic verification, derive metrics".
//
// A Session is owned by a single event loop. Its methods are not safe for
// concurrent use; only the Cmds it returns run elsewhere, and their outcomes
// are folded back in through Apply on the owner loop.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hay-kot/tradeoff/internal/core/analysis"
	"github.com/hay-kot/tradeoff/internal/core/logging"
	"github.com/hay-kot/tradeoff/internal/core/media"
	"github.com/hay-kot/tradeoff/internal/core/metrics"
	"github.com/hay-kot/tradeoff/internal/core/notify"
)

// ErrBusy is returned when the decision text is edited while it is being analyzed.
var ErrBusy = errors.New("a decision is being analyzed")

// ValidationError is a local guard failure. It is surfaced as a transient
// notification and never moves the session into PhaseError.
type ValidationError struct {
	Title   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Title + ": " + e.Message
}

// Notifier shows transient notifications. *notify.Center implements it.
type Notifier interface {
	Notify(title, message string, severity notify.Severity) notify.Notification
}

// Completion describes a finished analysis or verification.
type Completion struct {
	SessionID string
	UserID    string
	Query     string
	Result    string
	Ongoing   analysis.Ongoing
	Metrics   *metrics.Metrics
	At        time.Time
}

// Observer is notified of state transitions so presentation layers and
// recorders can react without being embedded in the workflow.
type Observer interface {
	PhaseChanged(sessionID string, from, to Phase)
	AnalysisCompleted(Completion)
	VerificationCompleted(Completion)
}

type nopObserver struct{}

func (nopObserver) PhaseChanged(string, Phase, Phase) {}
func (nopObserver) AnalysisCompleted(Completion) {}
func (nopObserver) VerificationCompleted(Completion) {}

// Config holds the collaborators of a Session.
type Config struct {
	Gateway  analysis.Gateway
	Notifier Notifier
	// Project derives metrics from an analysis; defaults to metrics.Placeholder.
	Project  metrics.Projector
	Limits   media.Limits
	Examples []string
	Observer Observer
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Image is the verification photo attached to a session.
type Image struct {
	Handle  media.Handle
	Encoded *media.Encoded // nil while encoding
}

// Ready reports whether the encoded form is available.
func (i *Image) Ready() bool {
	return i != nil && i.Encoded != nil
}

// Snapshot is a read-only copy of the session state for rendering.
type Snapshot struct {
	ID                 string
	DecisionText       string
	Phase              Phase
	PendingText        string
	LastSubmittedQuery string
	AnalysisResult     string
	IsOngoingActivity  analysis.Ongoing
	VerificationImage  *Image
	Metrics            *metrics.Metrics
	LastError          string
}

// CanAttachImage reports whether the verification upload affordance should
// be offered.
func (s Snapshot) CanAttachImage() bool {
	return s.IsOngoingActivity == analysis.OngoingYes && s.LastSubmittedQuery != ""
}

// CanSubmitVerification reports whether SubmitVerification would dispatch.
func (s Snapshot) CanSubmitVerification() bool {
	return s.CanAttachImage() && s.VerificationImage.Ready()
}

// Session is one live decision analysis workflow.
type Session struct {
	id       string
	userID   string
	gateway  analysis.Gateway
	notifier Notifier
	project  metrics.Projector
	limits   media.Limits
	examples []string
	observer Observer
	log      zerolog.Logger
	now      func() time.Time

	decisionText  string
	phase         Phase
	pendingText   string
	lastQuery     string
	result        string
	ongoing       analysis.Ongoing
	image         *Image
	metrics       *metrics.Metrics
	lastError     string
	uploadRestore Phase

	// lastID is the monotonically increasing request counter. pending holds
	// the id of the in-flight request per kind; zero means none.
	lastID  uint64
	pending [kindCount]uint64
}

// New creates an idle session.
func New(cfg Config) *Session {
	if cfg.Project == nil {
		cfg.Project = metrics.Placeholder
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Limits.MaxBytes <= 0 {
		cfg.Limits = media.DefaultLimits()
	}

	id := uuid.NewString()
	return &Session{
		id:       id,
		gateway:  cfg.Gateway,
		notifier: cfg.Notifier,
		project:  cfg.Project,
		limits:   cfg.Limits,
		examples: cfg.Examples,
		observer: cfg.Observer,
		log:      logging.ForSession(cfg.Logger, id),
		now:      cfg.Now,
		phase:    PhaseIdle,
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// SetUser attributes future completions to userID. An empty id means
// anonymous.
func (s *Session) SetUser(userID string) {
	s.userID = userID
}

// UserID returns the user completions are attributed to.
func (s *Session) UserID() string {
	return s.userID
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	return s.phase
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:                 s.id,
		DecisionText:       s.decisionText,
		Phase:              s.phase,
		PendingText:        s.pendingText,
		LastSubmittedQuery: s.lastQuery,
		AnalysisResult:     s.result,
		IsOngoingActivity:  s.ongoing,
		LastError:          s.lastError,
	}
	if s.image != nil {
		img := *s.image
		snap.VerificationImage = &img
	}
	if s.metrics != nil {
		m := *s.metrics
		snap.Metrics = &m
	}
	return snap
}

// Examples returns the configured example decisions.
func (s *Session) Examples() []string {
	return s.examples
}

// SetDecisionText updates the input. The text is frozen while it is being
// analyzed.
func (s *Session) SetDecisionText(text string) error {
	if s.phase == PhaseSubmitting {
		return ErrBusy
	}
	s.decisionText = text
	return nil
}

// PickExample copies the i-th example into the decision text.
func (s *Session) PickExample(i int) error {
	if i < 0 || i >= len(s.examples) {
		return s.reject("Unknown example", fmt.Sprintf("Pick an example between 1 and %d", len(s.examples)))
	}
	return s.SetDecisionText(s.examples[i])
}

// Submit dispatches a text analysis for text. Blank input is rejected
// locally with a notification and no request. Submitting supersedes any
// pending verification context: an attached image is discarded and
// in-flight verify and encode outcomes will be dropped.
func (s *Session) Submit(text string) (Cmd, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return nil, s.reject("This field cannot be left blank", "Please enter a decision to analyze")
	}

	if s.image != nil {
		s.log.Debug().Str("image", s.image.Handle.Name).Msg("discarding verification image for new submission")
	}
	s.image = nil
	s.ongoing = analysis.OngoingUnknown
	s.pending[kindVerify] = 0
	s.pending[kindEncode] = 0

	s.decisionText = text
	s.pendingText = query
	s.lastError = ""
	id := s.dispatch(kindAnalyze)
	s.setPhase(PhaseSubmitting)

	gw, sid, uid := s.gateway, s.id, s.userID
	return func(ctx context.Context) Msg {
		ctx = requestContext(ctx, sid, uid, id)
		res, err := gw.AnalyzeText(ctx, query)
		return AnalysisMsg{ID: id, Query: query, Result: res, Err: err}
	}, nil
}

// SelectVerificationImage attaches h as the verification photo and returns
// the Cmd that encodes it. Only sessions whose last analysis was classified
// as an ongoing activity accept images.
func (s *Session) SelectVerificationImage(h media.Handle) (Cmd, error) {
	if s.ongoing != analysis.OngoingYes || s.lastQuery == "" {
		return nil, s.reject("Verification unavailable", "Only ongoing activities can be verified with a photo")
	}

	if err := s.limits.Validate(h); err != nil {
		switch {
		case errors.Is(err, media.ErrTooLarge):
			return nil, s.reject("File too large", s.tooLargeMessage())
		default:
			return nil, s.reject("Invalid file", "Please choose an image file")
		}
	}

	s.image = &Image{Handle: h}
	id := s.dispatch(kindEncode)

	switch s.phase {
	case PhaseAwaitingVerificationUpload:
	case PhaseSubmittingVerification:
		// A new photo replaces the one being verified.
		s.pending[kindVerify] = 0
		s.uploadRestore = PhaseAnalysisReady
		s.setPhase(PhaseAwaitingVerificationUpload)
	default:
		s.uploadRestore = s.phase
		s.setPhase(PhaseAwaitingVerificationUpload)
	}

	limits := s.limits
	return func(ctx context.Context) Msg {
		enc, err := media.Encode(ctx, h, limits)
		return EncodeMsg{ID: id, Encoded: enc, Err: err}
	}, nil
}

// SelectVerificationFile inspects the file at path and attaches it.
func (s *Session) SelectVerificationFile(path string) (Cmd, error) {
	h, err := media.Inspect(path)
	if err != nil {
		s.log.Debug().Err(err).Str("path", path).Msg("inspect verification image")
		return nil, s.reject("Invalid file", "The selected file could not be read")
	}
	return s.SelectVerificationImage(h)
}

// RemoveVerificationImage detaches the verification photo. An encode still
// in flight is dropped when it arrives.
func (s *Session) RemoveVerificationImage() {
	s.image = nil
	s.pending[kindEncode] = 0
	if s.phase == PhaseAwaitingVerificationUpload {
		s.setPhase(s.uploadRestore)
	}
}

// SubmitVerification dispatches the attached, encoded photo for
// verification against the last submitted query.
func (s *Session) SubmitVerification() (Cmd, error) {
	if s.ongoing != analysis.OngoingYes || s.lastQuery == "" || !s.image.Ready() {
		return nil, s.reject("Image required", "Please upload a photo to verify your activity")
	}

	query := s.lastQuery
	image := s.image.Encoded.DataURI
	prompt := analysis.VerificationPrompt(query)

	s.lastError = ""
	id := s.dispatch(kindVerify)
	s.setPhase(PhaseSubmittingVerification)

	gw, sid, uid := s.gateway, s.id, s.userID
	return func(ctx context.Context) Msg {
		ctx = requestContext(ctx, sid, uid, id)
		res, err := gw.VerifyImage(ctx, image, prompt)
		return VerificationMsg{ID: id, Query: query, Result: res, Err: err}
	}, nil
}

// Reset returns the session to idle. The last submitted query and its
// classification survive so a verification context outlives a transient
// error; in-flight outcomes are dropped when they arrive.
func (s *Session) Reset() {
	s.decisionText = ""
	s.pendingText = ""
	s.result = ""
	s.metrics = nil
	s.lastError = ""
	s.image = nil
	s.pending = [kindCount]uint64{}
	s.setPhase(PhaseIdle)
}

// Apply folds the outcome of a Cmd into the session. It returns false when
// the outcome is stale and was dropped.
func (s *Session) Apply(msg Msg) bool {
	k := msg.kind()
	if id := msg.requestID(); id == 0 || s.pending[k] != id {
		s.log.Debug().
			Stringer("kind", k).
			Uint64("request_id", id).
			Uint64("current_id", s.pending[k]).
			Msg("dropping stale response")
		return false
	}
	s.pending[k] = 0

	switch m := msg.(type) {
	case AnalysisMsg:
		s.applyAnalysis(m)
	case VerificationMsg:
		s.applyVerification(m)
	case EncodeMsg:
		s.applyEncode(m)
	}
	return true
}

func (s *Session) applyAnalysis(m AnalysisMsg) {
	s.pendingText = ""

	if m.Err != nil {
		s.log.Warn().Err(m.Err).Str("query", m.Query).Msg("analysis failed")
		s.lastError = describeFailure("analyze your decision", m.Err)
		s.setPhase(PhaseError)
		s.notify("Something went wrong", "Failed to analyze your decision", notify.SeverityError)
		return
	}

	projected := s.project(m.Result.Text).Clamp()
	s.result = m.Result.Text
	s.ongoing = m.Result.Ongoing
	s.lastQuery = m.Query
	s.metrics = &projected
	s.setPhase(PhaseAnalysisReady)
	s.notify("Analysis complete", "Your decision has been analyzed", notify.SeveritySuccess)

	s.observer.AnalysisCompleted(Completion{
		SessionID: s.id,
		UserID:    s.userID,
		Query:     m.Query,
		Result:    m.Result.Text,
		Ongoing:   m.Result.Ongoing,
		Metrics:   &projected,
		At:        s.now(),
	})
}

func (s *Session) applyVerification(m VerificationMsg) {
	if m.Err != nil {
		s.log.Warn().Err(m.Err).Str("query", m.Query).Msg("verification failed")
		s.lastError = describeFailure("verify your photo", m.Err)
		s.setPhase(PhaseError)
		s.notify("Verification failed", "Failed to verify your photo", notify.SeverityError)
		return
	}

	s.result = m.Result.Text
	s.image = nil
	s.setPhase(PhaseVerificationReady)
	s.notify("Verification complete", "Your photo has been reviewed", notify.SeveritySuccess)

	s.observer.VerificationCompleted(Completion{
		SessionID: s.id,
		UserID:    s.userID,
		Query:     m.Query,
		Result:    m.Result.Text,
		Ongoing:   s.ongoing,
		At:        s.now(),
	})
}

func (s *Session) applyEncode(m EncodeMsg) {
	if s.image == nil {
		return
	}

	if m.Err != nil {
		s.log.Warn().Err(m.Err).Str("image", s.image.Handle.Name).Msg("encode failed")
		s.RemoveVerificationImage()
		if errors.Is(m.Err, media.ErrTooLarge) {
			s.notify("File too large", s.tooLargeMessage(), notify.SeverityError)
			return
		}
		s.notify("Invalid file", "The selected image could not be read", notify.SeverityError)
		return
	}

	enc := m.Encoded
	s.image.Encoded = &enc
}

func (s *Session) tooLargeMessage() string {
	return fmt.Sprintf("Images must be %s or smaller", humanize.IBytes(uint64(s.limits.MaxBytes)))
}

func (s *Session) dispatch(k kind) uint64 {
	s.lastID++
	s.pending[k] = s.lastID
	s.log.Debug().Stringer("kind", k).Uint64("request_id", s.lastID).Msg("dispatch")
	return s.lastID
}

// requestContext tags ctx so log lines written by collaborators carry the
// session and request ids.
func requestContext(ctx context.Context, sessionID, userID string, id uint64) context.Context {
	ctx = logging.WithSessionID(ctx, sessionID)
	ctx = logging.WithRequestID(ctx, strconv.FormatUint(id, 10))
	if userID != "" {
		ctx = logging.WithUserID(ctx, userID)
	}
	return ctx
}

func (s *Session) setPhase(p Phase) {
	if s.phase == p {
		return
	}
	from := s.phase
	s.phase = p
	s.observer.PhaseChanged(s.id, from, p)
}

func (s *Session) notify(title, message string, severity notify.Severity) {
	if s.notifier != nil {
		s.notifier.Notify(title, message, severity)
	}
}

func (s *Session) reject(title, message string) error {
	s.notify(title, message, notify.SeverityError)
	return &ValidationError{Title: title, Message: message}
}

func describeFailure(action string, err error) string {
	switch {
	case errors.Is(err, analysis.ErrNetwork):
		return fmt.Sprintf("Failed to %s: the analysis service could not be reached. Please try again.", action)
	case errors.Is(err, analysis.ErrServer):
		return fmt.Sprintf("Failed to %s: the analysis service returned an unusable response. Please try again.", action)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("Failed to %s: the request timed out. Please try again.", action)
	default:
		return fmt.Sprintf("Failed to %s. Please try again.", action)
	}
}
