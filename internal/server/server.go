/*
Package server implements the application's network transport layer.
It builds the HTTP server, configures timeouts, and wires the planner,
provider and mail dependencies into the handler packages.
*/
package server

import (
	"fmt"
	"net/http"
	"time"

	"bluewell/internal/config"
	"bluewell/internal/database"
	"bluewell/internal/openaiservice"
	"bluewell/internal/planner"
	"bluewell/internal/user"
	"bluewell/internal/utility"

	"github.com/rs/zerolog/log"
)

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	// port specifies the TCP port the server will listen on.
	port int

	// db provides access to the database service and its health.
	db database.Service

	cfg config.Config

	startedAt time.Time
}

// NewServer wires the handler packages and returns a configured *http.Server.
func NewServer(cfg config.Config, db database.Service) *http.Server {
	newApp := &Server{
		port:      cfg.Port,
		db:        db,
		cfg:       cfg,
		startedAt: time.Now(),
	}
	newApp.initPackages()

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", newApp.port),
		Handler:     newApp.RegisterRoutes(),
		IdleTimeout: time.Minute,
		ReadTimeout: 10 * time.Second,
		// Plan generation with a tool round-trip can take two provider calls.
		WriteTimeout: 90 * time.Second,
	}

	return server
}

// initPackages builds the shared services and hands them to the user package.
func (s *Server) initPackages() {
	q := s.db.Queries()

	var ai openaiservice.Client
	if s.cfg.AIEnabled() {
		ai = openaiservice.New(openaiservice.Config{
			APIKey:         s.cfg.OpenAIAPIKey,
			BaseURL:        s.cfg.OpenAIBaseURL,
			Model:          s.cfg.OpenAIModel,
			EmbeddingModel: s.cfg.OpenAIEmbeddingModel,
		})
		log.Info().Str("model", s.cfg.OpenAIModel).Msg("AI provider configured")
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, plans use the deterministic fallback")
	}

	classes := planner.NewClassLoader(q, planner.ClassLoaderConfig{
		CSVPath:  s.cfg.ClassesCSVPath,
		FeedURL:  s.cfg.ClassesICalURL,
		Location: s.cfg.Location,
	})

	plans := planner.NewService(q, ai, classes, planner.Options{
		ProteinPerKg: s.cfg.DefaultProteinPerKg,
		DiningSource: s.cfg.DiningPrimarySource,
		Location:     s.cfg.Location,
		Notify: func(userID string, kind database.PlanKind) {
			utility.NotifyPlanUpdated(userID, string(kind))
		},
	})

	user.InitUserPackage(user.Deps{
		Queries: q,
		Planner: plans,
		Classes: classes,
		AI:      ai,
		Journal: utility.NewEstimateJournal(s.cfg.EstimateLogPath),
		Mailer: utility.NewMailer(utility.SMTPConfig{
			Host: s.cfg.SMTPHost,
			Port: s.cfg.SMTPPort,
			User: s.cfg.SMTPUser,
			Pass: s.cfg.SMTPPass,
			From: s.cfg.SMTPFrom,
		}),
		DefaultStepGoal:   s.cfg.DefaultStepGoal,
		DisableAIInsights: s.cfg.DisableAIInsights,
		Location:          s.cfg.Location,
	})
}
