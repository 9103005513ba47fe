package workflow

// Phase is the lifecycle state of a Session.
// ENUM(idle, submitting, analysis_ready, awaiting_verification_upload,
// submitting_verification, verification_ready, error).
type Phase string

const (
	PhaseIdle                       Phase = "idle"
	PhaseSubmitting                 Phase = "submitting"
	PhaseAnalysisReady              Phase = "analysis_ready"
	PhaseAwaitingVerificationUpload Phase = "awaiting_verification_upload"
	PhaseSubmittingVerification     Phase = "submitting_verification"
	PhaseVerificationReady          Phase = "verification_ready"
	PhaseError                      Phase = "error"
)

// Busy reports whether a request is in flight. Presentation layers disable
// their submit affordance while busy.
func (p Phase) Busy() bool {
	return p == PhaseSubmitting || p == PhaseSubmittingVerification
}

// Label is a short human-readable name for the phase.
func (p Phase) Label() string {
	switch p {
	case PhaseIdle:
		return "ready"
	case PhaseSubmitting:
		return "analyzing"
	case PhaseAnalysisReady:
		return "analysis ready"
	case PhaseAwaitingVerificationUpload:
		return "photo attached"
	case PhaseSubmittingVerification:
		return "verifying"
	case PhaseVerificationReady:
		return "verified"
	case PhaseError:
		return "error"
	default:
		return string(p)
	}
}

// kind identifies an asynchronous operation. Each kind has its own
// "current request" slot.
type kind uint8

const (
	kindAnalyze kind = iota
	kindVerify
	kindEncode
	kindCount
)

func (k kind) String() string {
	switch k {
	case kindAnalyze:
		return "analyze"
	case kindVerify:
		return "verify"
	case kindEncode:
		return "encode"
	default:
		return "unknown"
	}
}
