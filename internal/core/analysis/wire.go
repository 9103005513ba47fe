package analysis

import "strings"

// Canonical HTTP contract of the scoring service.
const (
	PathAnalyze = "/analyze"
	PathVerify  = "/verify"
	PathHealth  = "/health"
)

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Text string `json:"text"`
}

// AnalyzeResponse is the body returned by POST /analyze.
type AnalyzeResponse struct {
	Result            string `json:"result"`
	IsOngoingActivity *bool  `json:"isOngoingActivity,omitempty"`
}

// Normalize validates the response and converts it to a Result.
func (r AnalyzeResponse) Normalize() (Result, error) {
	if strings.TrimSpace(r.Result) == "" {
		return Result{}, ServerErrorf("response is missing %q", "result")
	}
	return Result{Text: r.Result, Ongoing: OngoingFromPtr(r.IsOngoingActivity)}, nil
}

// VerifyRequest is the body of POST /verify. Image is a base64 data URI.
type VerifyRequest struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
}

// VerifyResponse is the body returned by POST /verify.
type VerifyResponse struct {
	Result string `json:"result"`
}

// Normalize validates the response and converts it to a Verification.
func (r VerifyResponse) Normalize() (Verification, error) {
	if strings.TrimSpace(r.Result) == "" {
		return Verification{}, ServerErrorf("response is missing %q", "result")
	}
	return Verification{Text: r.Result}, nil
}

// ErrorResponse is returned with non-2xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Message string `json:"message"`
}
