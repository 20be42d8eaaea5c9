// Package server exposes cached proposal snapshots and result verification over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ton-vote/verifier/internal/config"
	"github.com/ton-vote/verifier/internal/output"
	"github.com/ton-vote/verifier/internal/verifier"
)

type Server struct {
	app      *fiber.App
	verifier *verifier.Verifier
	store    output.SnapshotStore
	session  *verifier.Session
}

func New(v *verifier.Verifier, store output.SnapshotStore, session *verifier.Session, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		app:      fiber.New(fiber.Config{DisableStartupMessage: true}),
		verifier: v,
		store:    store,
		session:  session,
	}
	s.app.Use(cors.New())

	s.app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	s.app.Get("/endpoints", s.getEndpoints)
	s.app.Get("/proposals/:address", s.getProposal)
	s.app.Post("/proposals/:address/verify", s.verifyProposal)
	return s
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	slog.Info("Listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

type endpointsResponse struct {
	IndexerEndpoint  string `json:"clientV2Endpoint"`
	FullNodeEndpoint string `json:"clientV4Endpoint"`
	HasApiKey        bool   `json:"hasApiKey"`
}

func (s *Server) getEndpoints(c *fiber.Ctx) error {
	e := s.session.Endpoints()
	return c.JSON(endpointsResponse{
		IndexerEndpoint:  e.IndexerEndpoint,
		FullNodeEndpoint: e.FullNodeEndpoint,
		HasApiKey:        e.ApiKey != "",
	})
}

func (s *Server) getProposal(c *fiber.Ctx) error {
	snap, err := s.store.GetSnapshot(c.UserContext(), c.Params("address"))
	if errors.Is(err, output.ErrSnapshotNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		slog.Error("Failed to read snapshot", "proposal", c.Params("address"), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read snapshot"})
	}
	return c.JSON(snap)
}

type verifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	*verifier.Outcome
}

func (s *Server) verifyProposal(c *fiber.Ctx) error {
	var override config.Endpoints
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&override); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	outcome := s.verifier.Verify(c.UserContext(), c.Params("address"), override)
	status := fiber.StatusOK
	switch {
	case outcome.IsNotFound():
		status = fiber.StatusNotFound
	case outcome.Kind == verifier.Mismatch:
		status = fiber.StatusConflict
	case outcome.Kind == verifier.FetchError:
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(verifyResponse{
		Status:  outcome.Kind.String(),
		Message: outcome.Message(),
		Outcome: outcome,
	})
}
