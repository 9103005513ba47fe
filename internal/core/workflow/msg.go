package workflow

import (
	"context"

	"github.com/hay-kot/tradeoff/internal/core/analysis"
	"github.com/hay-kot/tradeoff/internal/core/media"
)

// Cmd is the asynchronous half of an operation. It performs I/O without
// touching the Session and returns a Msg describing the outcome. Callers
// run Cmds off the owner loop and feed the Msg back through Session.Apply.
type Cmd func(ctx context.Context) Msg

// Msg is the outcome of a Cmd. Each Msg carries the request id it was
// dispatched with so stale outcomes can be dropped.
type Msg interface {
	requestID() uint64
	kind() kind
}

// AnalysisMsg is the outcome of a text analysis.
type AnalysisMsg struct {
	ID     uint64
	Query  string
	Result analysis.Result
	Err    error
}

func (m AnalysisMsg) requestID() uint64 { return m.ID }
func (AnalysisMsg) kind() kind { return kindAnalyze }

// VerificationMsg is the outcome of an image verification.
type VerificationMsg struct {
	ID     uint64
	Query  string
	Result analysis.Verification
	Err    error
}

func (m VerificationMsg) requestID() uint64 { return m.ID }
func (VerificationMsg) kind() kind { return kindVerify }

// EncodeMsg is the outcome of encoding a selected image.
type EncodeMsg struct {
	ID      uint64
	Encoded media.Encoded
	Err     error
}

func (m EncodeMsg) requestID() uint64 { return m.ID }
func (EncodeMsg) kind() kind { return kindEncode }

// Await runs cmd synchronously and applies its outcome. It returns false
// when cmd is nil or the outcome was stale.
func Await(ctx context.Context, s *Session, cmd Cmd) bool {
	if cmd == nil {
		return false
	}
	return s.Apply(cmd(ctx))
}
