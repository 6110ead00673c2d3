package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/schemamesh/ontolink/internal/config"
	"github.com/schemamesh/ontolink/internal/core"
	"github.com/schemamesh/ontolink/internal/core/decision"
	"github.com/schemamesh/ontolink/internal/core/model"
	"github.com/schemamesh/ontolink/internal/driver"
	"github.com/schemamesh/ontolink/internal/llm"
	"github.com/schemamesh/ontolink/internal/scheduler"
	"github.com/schemamesh/ontolink/internal/store"
)

type Server struct {
	Discovery *core.Discovery
	Scheduler *scheduler.Scheduler
	Actions   *decision.Actions
	Config    *config.Config
}

func NewServer() *Server {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Warning: could not load %s: %v. Using defaults", cfgPath, err)
		cfg = config.Default()
	}
	applyEnvOverrides(cfg)

	// Unreachable graph store or counter store at startup is the one fatal
	// condition; nothing downstream can run with partial state.
	d, err := driver.NewNeo4jDriver(cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password,
		cfg.Graph.DataDB, cfg.Graph.OntologyDB)
	if err != nil {
		log.Fatalf("Failed to connect to graph store: %v", err)
	}
	if err := d.BuildIndices(context.Background()); err != nil {
		log.Printf("Warning: failed to build graph indices: %v", err)
	}

	counters, err := store.NewCounterStore(store.Options{URL: cfg.Redis.URL})
	if err != nil {
		log.Fatalf("Failed to connect to counter store: %v", err)
	}

	judgeClient, err := llm.NewClient(context.Background(), cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize judge client: %v", err)
	}

	disc := core.NewDiscovery(d, counters, judgeClient, cfg)

	return &Server{
		Discovery: disc,
		Scheduler: scheduler.New(disc, counters, cfg.RunInterval(), cfg.RebuildInterval()),
		Actions:   decision.NewActions(disc.Repo),
		Config:    cfg,
	}
}

func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("GRAPH_URI"); v != "" {
		cfg.Graph.URI = v
	}
	if v := os.Getenv("GRAPH_USER"); v != "" {
		cfg.Graph.User = v
	}
	if v := os.Getenv("GRAPH_PASSWORD"); v != "" {
		cfg.Graph.Password = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	// Default to Ollama if provider is empty
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
		cfg.LLM.Model = "gpt-oss:latest"
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/candidates", s.ListCandidates)
	r.POST("/candidates/:id/accept", s.Accept)
	r.POST("/candidates/:id/reject", s.Reject)
	r.POST("/candidates/:id/unreject", s.Unreject)
	r.POST("/candidates/:id/archive", s.Archive)
	r.POST("/candidates/:id/evaluate", s.EvaluateOne)

	r.POST("/discovery/process", s.trigger(s.Scheduler.TriggerProcess))
	r.POST("/discovery/evaluate", s.trigger(s.Scheduler.TriggerEvaluate))
	r.POST("/discovery/run", s.trigger(s.Scheduler.TriggerRun))

	return r
}

// candidateView is a candidate plus its derived effective status, which is
// what operators act on.
type candidateView struct {
	model.RelationshipCandidate
	ManuallyAccepted bool            `json:"manually_accepted"`
	ManuallyRejected bool            `json:"manually_rejected"`
	EffectiveStatus  decision.Status `json:"effective_status"`
}

func (s *Server) renderCandidates(c *gin.Context) {
	cands, err := s.Discovery.Candidates(c.Request.Context())
	if err != nil {
		log.Printf("Failed to list candidates: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list candidates"})
		return
	}

	disc := s.Config.Discovery
	views := make([]candidateView, len(cands))
	for i, cand := range cands {
		views[i] = candidateView{
			RelationshipCandidate: cand,
			ManuallyAccepted:      cand.ManuallyAccepted(),
			ManuallyRejected:      cand.ManuallyRejected(),
			EffectiveStatus:       decision.Effective(cand, disc.AcceptanceThreshold, disc.RejectionThreshold),
		}
	}
	c.JSON(http.StatusOK, gin.H{"candidates": views})
}

func (s *Server) ListCandidates(c *gin.Context) {
	s.renderCandidates(c)
}

func (s *Server) Accept(c *gin.Context) {
	s.manualAction(c, s.Actions.Accept)
}

func (s *Server) Reject(c *gin.Context) {
	s.manualAction(c, s.Actions.Reject)
}

func (s *Server) Unreject(c *gin.Context) {
	s.manualAction(c, s.Actions.Unreject)
}

// Archive retires a candidate without deleting it. Its edges are removed on
// the next sync's orphan sweep.
func (s *Server) Archive(c *gin.Context) {
	s.manualAction(c, s.Discovery.Repo.ArchiveCandidate)
}

func (s *Server) manualAction(c *gin.Context, action func(context.Context, string) error) {
	id := c.Param("id")
	if err := action(c.Request.Context(), id); err != nil {
		log.Printf("Manual action on %s failed: %v", id, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.renderCandidates(c)
}

// EvaluateOne re-runs the judge for a single candidate. The evidence
// threshold still applies; an override is not touched by the fresh verdict.
func (s *Server) EvaluateOne(c *gin.Context) {
	id := c.Param("id")
	cand, err := s.Discovery.Repo.GetCandidate(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h, err := s.Discovery.Counters.Get(c.Request.Context(), id)
	if err == nil {
		cand.Heuristic = h
	}

	s.Discovery.Dispatcher.Dispatch(c.Request.Context(), []model.RelationshipCandidate{cand})
	s.renderCandidates(c)
}

func (s *Server) trigger(fn func(context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(c.Request.Context()); err != nil {
			if errors.Is(err, scheduler.ErrRunActive) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			log.Printf("Discovery trigger failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Discovery run failed"})
			return
		}
		s.renderCandidates(c)
	}
}
