// Package analysis defines the contract with the remote scoring service:
// the gateway interface, its failure kinds and the canonical wire schema.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNetwork marks transport failures: the request never produced a
	// usable HTTP response.
	ErrNetwork = errors.New("network error")
	// ErrServer marks responses that arrived but could not be used.
	ErrServer = errors.New("server error")
)

// NetworkError wraps err as an ErrNetwork.
func NetworkError(err error) error {
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

// ServerErrorf builds an ErrServer with a formatted reason.
func ServerErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrServer, fmt.Sprintf(format, args...))
}

// Ongoing is the tri-state activity classification returned by text analysis.
type Ongoing uint8

const (
	OngoingUnknown Ongoing = iota
	OngoingYes
	OngoingNo
)

// OngoingFromPtr maps an optional wire boolean to Ongoing.
func OngoingFromPtr(b *bool) Ongoing {
	switch {
	case b == nil:
		return OngoingUnknown
	case *b:
		return OngoingYes
	default:
		return OngoingNo
	}
}

// Ptr maps back to the optional wire boolean.
func (o Ongoing) Ptr() *bool {
	switch o {
	case OngoingYes:
		t := true
		return &t
	case OngoingNo:
		f := false
		return &f
	default:
		return nil
	}
}

func (o Ongoing) String() string {
	switch o {
	case OngoingYes:
		return "true"
	case OngoingNo:
		return "false"
	default:
		return "unknown"
	}
}

// Result is a normalized text-analysis response.
type Result struct {
	Text    string
	Ongoing Ongoing
}

// Verification is a normalized image-verification response.
type Verification struct {
	Text string
}

// Gateway issues the two request shapes against the scoring service. Each
// call is a single attempt; failures wrap ErrNetwork or ErrServer.
type Gateway interface {
	AnalyzeText(ctx context.Context, text string) (Result, error)
	VerifyImage(ctx context.Context, image, prompt string) (Verification, error)
}

// VerificationPrompt builds the question sent alongside a verification photo.
func VerificationPrompt(query string) string {
	return fmt.Sprintf(
		"Does this image show the person doing the following activity: %q? "+
			"Answer yes or no first, then briefly explain what you see.",
		strings.TrimSpace(query),
	)
}

// AnalysisPrompt builds the instruction used by scorers that talk to a
// language model directly.
func AnalysisPrompt(text string) string {
	return fmt.Sprintf(
		"Analyze the following life choice: '%s'. Provide a brief qualitative analysis of its "+
			"financial, time, and health impacts. Also decide whether it describes an ongoing "+
			"activity the person will repeat over time (for example a daily habit) rather than "+
			"a one-off purchase or event.",
		strings.TrimSpace(text),
	)
}
