// Package server hosts the scoring service's HTTP contract in front of a
// scorer, so clients can use the http backend without holding model
// credentials themselves.
package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog"

	"github.com/hay-kot/tradeoff/internal/core/analysis"
	"github.com/hay-kot/tradeoff/internal/core/media"
)

// DefaultBodyLimit leaves room for a base64 encoded 5 MiB image.
const DefaultBodyLimit = 10 << 20

// Options configures a Server.
type Options struct {
	Addr      string
	BodyLimit int
	Logger    zerolog.Logger
}

// Server serves /analyze, /verify and /health.
type Server struct {
	app    *fiber.App
	addr   string
	scorer analysis.Gateway
	log    zerolog.Logger
}

// New creates a Server that answers with scorer.
func New(scorer analysis.Gateway, opts Options) *Server {
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = DefaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	s := &Server{
		app:    app,
		addr:   opts.Addr,
		scorer: scorer,
		log:    opts.Logger,
	}
	app.Use(s.logRequests)

	app.Get(analysis.PathHealth, s.health)
	app.Post(analysis.PathAnalyze, s.analyze)
	app.Post(analysis.PathVerify, s.verify)

	return s
}

// App exposes the fiber app for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("scoring server listening")
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.app.ShutdownWithContext(shutdownCtx)
	}
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(analysis.HealthResponse{Message: "ok"})
}

func (s *Server) analyze(c *fiber.Ctx) error {
	var req analysis.AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	}

	res, err := s.scorer.AnalyzeText(c.UserContext(), text)
	if err != nil {
		return s.upstreamError(err, "analyze")
	}

	return c.JSON(analysis.AnalyzeResponse{
		Result:            res.Text,
		IsOngoingActivity: res.Ongoing.Ptr(),
	})
}

func (s *Server) verify(c *fiber.Ctx) error {
	var req analysis.VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}

	switch {
	case req.Image == "":
		return fiber.NewError(fiber.StatusBadRequest, "image is required")
	case strings.TrimSpace(req.Prompt) == "":
		return fiber.NewError(fiber.StatusBadRequest, "prompt is required")
	}

	mime, _, err := media.ParseDataURI(req.Image)
	if err != nil || !media.IsImage(mime) {
		return fiber.NewError(fiber.StatusBadRequest, "image must be a base64 image data URI")
	}

	res, err := s.scorer.VerifyImage(c.UserContext(), req.Image, req.Prompt)
	if err != nil {
		return s.upstreamError(err, "verify")
	}

	return c.JSON(analysis.VerifyResponse{Result: res.Text})
}

func (s *Server) upstreamError(err error, op string) error {
	s.log.Error().Err(err).Str("op", op).Msg("scorer failed")

	switch {
	case errors.Is(err, analysis.ErrNetwork):
		return fiber.NewError(fiber.StatusBadGateway, "scoring model unreachable")
	case errors.Is(err, analysis.ErrServer):
		return fiber.NewError(fiber.StatusBadGateway, "scoring model returned an unusable answer")
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "scoring failed")
	}
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.log.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("elapsed", time.Since(start)).
		Msg("request")
	return err
}

// errorHandler renders every error as {"error": message}.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}

	return c.Status(code).JSON(analysis.ErrorResponse{Error: msg})
}
