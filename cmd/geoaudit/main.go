// geoaudit runs the GEO/SEO audit pipeline as an HTTP service: submit
// a seed URL, stream its progress, fetch its results, and regenerate
// its report. Grounded on teacher's cmd/tarsy/main.go for the service
// wiring (godotenv, gin router, plain log.Printf/log.Fatalf, a /health
// endpoint) and on the docs-crawler example's internal/cli/root.go for
// the cobra command shape.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/geoauditlabs/geo-audit-core/pkg/config"
	"github.com/geoauditlabs/geo-audit-core/pkg/crawler"
	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
	"github.com/geoauditlabs/geo-audit-core/pkg/events"
	"github.com/geoauditlabs/geo-audit-core/pkg/fetcher"
	"github.com/geoauditlabs/geo-audit-core/pkg/jobmanager"
	"github.com/geoauditlabs/geo-audit-core/pkg/llm"
	"github.com/geoauditlabs/geo-audit-core/pkg/models"
	"github.com/geoauditlabs/geo-audit-core/pkg/perf"
	"github.com/geoauditlabs/geo-audit-core/pkg/pipeline"
	"github.com/geoauditlabs/geo-audit-core/pkg/search"
	"github.com/geoauditlabs/geo-audit-core/pkg/ssrf"
	"github.com/geoauditlabs/geo-audit-core/pkg/store"
	"github.com/geoauditlabs/geo-audit-core/pkg/store/memory"
	"github.com/geoauditlabs/geo-audit-core/pkg/store/postgres"
)

var (
	ginMode    string
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:   "geoaudit",
	Short: "geoaudit is the GEO/SEO site audit service.",
	Long: `geoaudit accepts audit submissions for a seed URL, runs them through
the crawl / competitor-discovery / performance / synthesis pipeline, and
serves their progress and results over HTTP.`,
	RunE: runServe,
}

func init() {
	rootCmd.Flags().StringVar(&ginMode, "gin-mode", "release", "gin engine mode (debug, release, test)")
	rootCmd.Flags().StringVar(&listenAddr, "listen-addr", "", "override HTTP_LISTEN_ADDR from the environment")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("geoaudit: %v", err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	config.LoadDotenvIfPresent()

	log.Printf("Starting geoaudit")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if listenAddr != "" {
		cfg.HTTP.ListenAddr = listenAddr
	}

	gin.SetMode(ginMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	defer closeStore()
	log.Println("Persistence ready")

	bus := events.New(cfg.Events.BufferSize, cfg.Events.HeartbeatInterval, cfg.Events.SubscriptionTTL)

	orchestrator := buildOrchestrator(cfg, st, bus)

	jm := jobmanager.New(st, orchestrator, bus, cfg.Queue.WorkerPoolSize, cfg.Queue.WorkerPoolSize*4)
	jm.Start(ctx)
	log.Printf("Job manager started with %d workers", cfg.Queue.WorkerPoolSize)

	router := newRouter(st, jm, orchestrator)

	srv := &http.Server{Addr: cfg.HTTP.ListenAddr, Handler: router}
	serveErrs := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTP.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrs <- err
			return
		}
		serveErrs <- nil
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received, draining in-flight audits")
	case err := <-serveErrs:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := jm.Shutdown(shutdownCtx); err != nil {
		log.Printf("Job manager shutdown error: %v", err)
	}
	log.Println("Shutdown complete")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.Database.DSN == "" {
		log.Println("DATABASE_URL not set, using in-memory store")
		return memory.New(), func() {}, nil
	}
	pgStore, err := postgres.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	return pgStore, pgStore.Close, nil
}

func buildOrchestrator(cfg *config.Config, st store.Store, bus *events.Bus) *pipeline.Orchestrator {
	guard := ssrf.New(cfg.SSRF.AllowLoopback)
	f := fetcher.New(guard)

	var llmFallback *llm.Backend
	if cfg.LLM.Fallback != nil {
		llmFallback = &llm.Backend{
			Name:  cfg.LLM.Fallback.Name,
			URL:   cfg.LLM.Fallback.URL,
			Key:   cfg.LLM.Fallback.Key,
			Model: cfg.LLM.Fallback.Model,
		}
	}
	llmClient := llm.New(llm.Backend{
		Name:  cfg.LLM.Primary.Name,
		URL:   cfg.LLM.Primary.URL,
		Key:   cfg.LLM.Primary.Key,
		Model: cfg.LLM.Primary.Model,
	}, llmFallback, cfg.LLM.Timeout)

	return pipeline.New(
		guard,
		f,
		crawler.New(f, cfg.Crawl.PrimaryConcurrency, cfg.Crawl.FetchTimeout),
		crawler.New(f, cfg.Crawl.CompetitorConcurrency, cfg.Crawl.FetchTimeout),
		llmClient,
		perf.New(cfg.Perf.OracleURL, cfg.Perf.OracleKey, cfg.Perf.CallTimeout, cfg.Perf.StalenessAfter),
		search.New(cfg.Search.OracleURL, cfg.Search.OracleKey, cfg.Search.EngineID, 15*time.Second),
		st,
		bus,
		cfg,
	)
}

// submitRequest is the audit-submission payload (spec §6 "Audit
// submission (to the core)").
type submitRequest struct {
	SeedURL         string   `json:"seed_url" binding:"required"`
	OwnerSubjectID  string   `json:"owner_subject_id" binding:"required"`
	OwnerEmail      string   `json:"owner_email"`
	Language        string   `json:"language"`
	Market          string   `json:"market"`
	Competitors     []string `json:"competitors"`
	CrawlCap        int      `json:"crawl_cap"`
	FetchTimeoutSec int      `json:"fetch_timeout_seconds"`
	AllowSubdomains bool     `json:"allow_subdomains"`
}

type regenerateRequest struct {
	ForcePerf bool `json:"force_perf"`
}

func newRouter(st store.Store, jm *jobmanager.Manager, orchestrator *pipeline.Orchestrator) *gin.Engine {
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.POST("/audits", func(c *gin.Context) {
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		audit := &models.Audit{
			OwnerSubjectID: req.OwnerSubjectID,
			OwnerEmail:     req.OwnerEmail,
			Config: models.AuditConfig{
				SeedURL:         req.SeedURL,
				Language:        models.Language(req.Language),
				Market:          models.Market(req.Market),
				Competitors:     req.Competitors,
				CrawlCap:        req.CrawlCap,
				FetchTimeout:    time.Duration(req.FetchTimeoutSec) * time.Second,
				AllowSubdomains: req.AllowSubdomains,
			},
		}
		audit.Config.Normalize()

		if err := st.Put(c.Request.Context(), audit); err != nil {
			writeError(c, err)
			return
		}
		if err := jm.Submit(c.Request.Context(), audit.ID); err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"audit_id": audit.ID, "status": audit.Status})
	})

	router.GET("/audits/:id", func(c *gin.Context) {
		id, err := auditIDParam(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		audit, err := st.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, audit)
	})

	router.POST("/audits/:id/regenerate", func(c *gin.Context) {
		id, err := auditIDParam(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var req regenerateRequest
		_ = c.ShouldBindJSON(&req)

		if err := orchestrator.Regenerate(c.Request.Context(), id, req.ForcePerf); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"audit_id": id, "status": "regenerated"})
	})

	router.GET("/audits/:id/events", func(c *gin.Context) {
		id, err := auditIDParam(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		streamProgress(c, jm, id)
	})

	return router
}

// streamProgress serves a Server-Sent Events stream of ProgressEvents
// for one audit (spec §6 "Progress stream (from the core)"), closing
// when the subscriber cancels, the client disconnects, or the Job
// Manager's bus expires the subscription.
func streamProgress(c *gin.Context, jm *jobmanager.Manager, auditID int64) {
	ch, cancel := jm.Subscribe(auditID)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-ch:
			if !ok {
				return false
			}
			payload, err := json.Marshal(e)
			if err != nil {
				return true
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func auditIDParam(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func writeError(c *gin.Context, err error) {
	kind, _ := errs.Of(err)
	status := http.StatusInternalServerError
	switch kind {
	case errs.KindNotFound:
		status = http.StatusNotFound
	case errs.KindConflict:
		status = http.StatusConflict
	case errs.KindInvalidConfig:
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
