package server

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/tradeoff/internal/core/analysis"
	"github.com/hay-kot/tradeoff/internal/core/media"
	"github.com/hay-kot/tradeoff/internal/scoring/httpclient"
)

// The http gateway and the server agree on the wire contract.
func TestContract_httpclient_against_server(t *testing.T) {
	scorer := &stubScorer{
		result: analysis.Result{Text: "A daily habit.", Ongoing: analysis.OngoingYes},
		verify: analysis.Verification{Text: "Yes."},
	}
	ts := httptest.NewServer(adaptor.FiberApp(New(scorer, Options{Logger: zerolog.Nop()}).App()))
	defer ts.Close()

	client := httpclient.New(httpclient.Options{BaseURL: ts.URL, Logger: zerolog.Nop()})
	ctx := context.Background()

	res, err := client.AnalyzeText(ctx, "I want to drink bubble tea every day for a year.")
	require.NoError(t, err)
	assert.Equal(t, "A daily habit.", res.Text)
	assert.Equal(t, analysis.OngoingYes, res.Ongoing)

	v, err := client.VerifyImage(ctx, media.DataURI("image/jpeg", []byte{0xff, 0xd8}), analysis.VerificationPrompt("tea"))
	require.NoError(t, err)
	assert.Equal(t, "Yes.", v.Text)

	msg, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", msg)

	scorer.err = analysis.ServerErrorf("model refused")
	_, err = client.AnalyzeText(ctx, "x")
	assert.ErrorIs(t, err, analysis.ErrServer)
	assert.False(t, errors.Is(err, analysis.ErrNetwork))
}
