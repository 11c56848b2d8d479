// Package web serves the bench dashboard: stored runs over REST and
// live simulations over a websocket.
package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/embq/liftkit/internal/config"
	"github.com/embq/liftkit/internal/lift"
	"github.com/embq/liftkit/internal/metrics"
	"github.com/embq/liftkit/internal/scenario"
	"github.com/embq/liftkit/internal/storage"
)

type Server struct {
	app   *fiber.App
	cfg   *config.Config
	store *storage.Store
	log   *slog.Logger
}

func NewServer(cfg *config.Config, store *storage.Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{cfg: cfg, store: store, log: log}

	app := fiber.New(fiber.Config{
		AppName:               "liftkit",
		DisableStartupMessage: true,
	})

	app.Get("/", s.handleIndex)
	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api")
	api.Get("/scenarios", s.handleScenarios)
	api.Get("/runs", s.handleListRuns)
	api.Get("/runs/:id", s.handleGetRun)
	api.Get("/runs/:id/series", s.handleGetSeries)
	api.Post("/run/:scenario", s.handleRunScenario)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/live/:scenario", websocket.New(s.handleLiveWS))

	s.app = app
	return s
}

// App exposes the fiber app, used by tests.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.log.Info("web server listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleScenarios(c *fiber.Ctx) error {
	type info struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Duration    float64 `json:"duration"`
	}
	out := make([]info, 0, len(scenario.Presets))
	for _, name := range scenario.ListPresets() {
		p := scenario.Presets[name]
		out = append(out, info{Name: p.Name, Description: p.Description, Duration: p.Duration})
	}
	return c.JSON(out)
}

func (s *Server) handleListRuns(c *fiber.Ctx) error {
	runs, err := s.store.List()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(runs)
}

func (s *Server) handleGetRun(c *fiber.Ctx) error {
	meta, err := s.store.Load(c.Params("id"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "run not found"})
	}
	return c.JSON(meta)
}

func (s *Server) handleGetSeries(c *fiber.Ctx) error {
	samples, err := s.store.LoadSeries(c.Params("id"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "run not found"})
	}
	return c.JSON(samples)
}

func (s *Server) handleRunScenario(c *fiber.Ctx) error {
	scn := scenario.GetPreset(c.Params("scenario"))
	if scn == nil {
		return c.Status(404).JSON(fiber.Map{"error": "unknown scenario"})
	}

	runner := scenario.NewRunner(s.cfg, s.log)
	res, err := runner.Run(c.Context(), scn)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}

	runID, err := s.store.Save(s.cfg.Profile, res)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}

	meta, err := s.store.Load(runID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(meta)
}

// handleLiveWS plays a scenario in real time and streams a decimated
// sample feed to the client.
func (s *Server) handleLiveWS(c *websocket.Conn) {
	defer c.Close()

	scn := scenario.GetPreset(c.Params("scenario"))
	if scn == nil {
		c.WriteJSON(fiber.Map{"error": "unknown scenario"})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The client closing its side ends the run.
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	const decimate = 8
	tickPeriod := time.Duration(lift.ControlDT * float64(time.Second))

	runner := scenario.NewRunner(s.cfg, s.log)
	count := 0
	runner.OnSample = func(sm metrics.Sample) {
		time.Sleep(tickPeriod)
		count++
		if count%decimate != 0 {
			return
		}
		if err := c.WriteJSON(sm); err != nil {
			cancel()
		}
	}

	res, err := runner.Run(ctx, scn)
	if err != nil {
		s.log.Info("live run ended early", "scenario", scn.Name, "err", err)
		return
	}
	c.WriteJSON(fiber.Map{"done": true, "metrics": res.Metrics})
}
