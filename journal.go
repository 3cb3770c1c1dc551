// Package journal is the top-level entry point for the journaling
// assistant core: it wires storage, templates, drafts, the LLM client, the
// structurer, the tool catalogue, the agent runtime, and the HTTP API into
// one running system. One struct holds every wired component, built from an
// Options value so callers can substitute any piece (store backend, LLM
// client) in tests.
package journal

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/ghiac/journal/internal/agent"
	"github.com/ghiac/journal/internal/auth"
	"github.com/ghiac/journal/internal/config"
	"github.com/ghiac/journal/internal/draft"
	"github.com/ghiac/journal/internal/httpapi"
	"github.com/ghiac/journal/internal/journallog"
	"github.com/ghiac/journal/internal/llmclient"
	"github.com/ghiac/journal/internal/store"
	"github.com/ghiac/journal/internal/store/mongostore"
	"github.com/ghiac/journal/internal/store/sqlitestore"
	"github.com/ghiac/journal/internal/structurer"
	"github.com/ghiac/journal/internal/tasks"
	"github.com/ghiac/journal/internal/template"
	"github.com/ghiac/journal/internal/tools"
)

// Journal is a fully wired instance of the journaling assistant core.
type Journal struct {
	Store  store.Store
	API    *httpapi.API
	Router *gin.Engine
}

// Options lets callers override the store backend and the LLM client that
// Journal would otherwise build from cfg.
type Options struct {
	Store store.Store
	LLM   *llmclient.Client
}

// New builds a Journal from configuration, constructing every component
// with its default backend.
func New(cfg *config.Config) (*Journal, error) {
	return NewWithOptions(cfg, nil)
}

// NewWithOptions builds a Journal from configuration, substituting any
// component supplied in opts.
func NewWithOptions(cfg *config.Config, opts *Options) (*Journal, error) {
	journallog.SetDebug(cfg.HTTP.Debug)

	var s store.Store
	var err error
	if opts != nil && opts.Store != nil {
		s = opts.Store
	} else {
		switch cfg.DB.Driver {
		case "mongo", "mongodb":
			s, err = mongostore.New(mongostore.Config{URI: cfg.DB.DSN, Database: cfg.DB.MongoDatabase}, cfg.HTTP.Debug)
			if err != nil {
				return nil, err
			}
		case "sqlite", "":
			s, err = sqlitestore.New(cfg.DB.DSN, cfg.HTTP.Debug)
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("journal: unknown db driver %q", cfg.DB.Driver)
		}
	}

	var llm *llmclient.Client
	if opts != nil && opts.LLM != nil {
		llm = opts.LLM
	} else {
		llm = llmclient.New(cfg.LLM)
	}

	locks := store.NewLockTable()
	templates, err := template.New(cfg.Template.DefaultPath)
	if err != nil {
		return nil, err
	}
	drafts := draft.New()
	structurerSvc := structurer.New(llm)

	catalogue := tools.NewCatalogue()
	tools.RegisterDefaults(catalogue)

	agentRuntime := agent.New(agent.Deps{
		Store:      s,
		Locks:      locks,
		Templates:  templates,
		Drafts:     drafts,
		Structurer: structurerSvc,
		LLM:        llm,
		Catalogue:  catalogue,
	})

	authSvc := auth.New(s, cfg.Auth)
	taskMgr := tasks.New(s, locks)

	api := &httpapi.API{
		Store:     s,
		Auth:      authSvc,
		Agent:     agentRuntime,
		Tasks:     taskMgr,
		Templates: templates,
		Locks:     locks,
	}

	if !cfg.HTTP.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(cfg.HTTP.CORSOrigins))
	api.RegisterRoutes(router)

	return &Journal{Store: s, API: api, Router: router}, nil
}

// Close releases every resource the Journal owns.
func (j *Journal) Close(ctx context.Context) error {
	return j.Store.Close()
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
