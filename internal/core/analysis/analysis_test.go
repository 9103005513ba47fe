package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOngoingFromPtr(t *testing.T) {
	yes, no := true, false

	assert.Equal(t, OngoingUnknown, OngoingFromPtr(nil))
	assert.Equal(t, OngoingYes, OngoingFromPtr(&yes))
	assert.Equal(t, OngoingNo, OngoingFromPtr(&no))

	assert.Nil(t, OngoingUnknown.Ptr())
	assert.True(t, *OngoingYes.Ptr())
	assert.False(t, *OngoingNo.Ptr())
	assert.Equal(t, "unknown", OngoingUnknown.String())
}

func TestAnalyzeResponse_Normalize(t *testing.T) {
	yes := true

	res, err := AnalyzeResponse{Result: "costly habit", IsOngoingActivity: &yes}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "costly habit", res.Text)
	assert.Equal(t, OngoingYes, res.Ongoing)

	_, err = AnalyzeResponse{Result: "  "}.Normalize()
	assert.ErrorIs(t, err, ErrServer)
}

func TestVerifyResponse_Normalize(t *testing.T) {
	v, err := VerifyResponse{Result: "yes, drinking tea"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "yes, drinking tea", v.Text)

	_, err = VerifyResponse{}.Normalize()
	assert.ErrorIs(t, err, ErrServer)
}

func TestErrorKinds(t *testing.T) {
	netErr := NetworkError(errors.New("connection refused"))
	assert.ErrorIs(t, netErr, ErrNetwork)
	assert.NotErrorIs(t, netErr, ErrServer)
	assert.Contains(t, netErr.Error(), "connection refused")

	srvErr := ServerErrorf("status %d", 502)
	assert.ErrorIs(t, srvErr, ErrServer)
	assert.Contains(t, srvErr.Error(), "502")
}

func TestVerificationPrompt(t *testing.T) {
	p := VerificationPrompt("  I want to drink bubble tea every day for a year. ")
	assert.Contains(t, p, `"I want to drink bubble tea every day for a year."`)
}
