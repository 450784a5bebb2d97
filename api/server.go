// Package api provides the HTTP API server for batch cost estimation
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"process-capex/db/runs"
	"process-capex/decision/blocks"
	"process-capex/decision/costing"
	"process-capex/decision/estimation"
	"process-capex/decision/policy"
	"process-capex/internal/acquisition"
	"process-capex/pkg/equipment"
	costerrors "process-capex/pkg/errors"
	"process-capex/pkg/platform"
)

// Server is the HTTP API server
type Server struct {
	httpServer *http.Server
	engine     *estimation.Engine
	policies   *policy.Engine
	recorder   runs.Recorder
	logger     zerolog.Logger
	config     *Config
}

// Config holds server configuration
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxRequestSize int64
	CORSOrigins    []string
	APIKey         string
	Version        string
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		RequestTimeout: 30 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024, // 10MB
		CORSOrigins:    []string{"*"},
		Version:        "dev",
	}
}

// Option configures a Server.
type Option func(*Server)

// WithRecorder stores every estimate run.
func WithRecorder(r runs.Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithPolicies replaces the default policy engine.
func WithPolicies(p *policy.Engine) Option {
	return func(s *Server) { s.policies = p }
}

// NewServer creates a new API server
func NewServer(engine *estimation.Engine, config *Config, opts ...Option) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	s := &Server{
		engine:   engine,
		policies: policy.NewEngine(),
		logger:   zerolog.Nop(),
		config:   config,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the routed handler with middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(platform.RequireAPIKey(s.config.APIKey))

		r.Post("/estimate", s.handleEstimate)
		r.Post("/preview", s.handlePreview)
		r.Post("/classify", s.handleClassify)
		r.Get("/correlations", s.handleCorrelations)
		r.Get("/types/{category}", s.handleTypeOptions)
		r.Get("/cepci", s.handleCEPCI)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/projects/{project}/trend", s.handleTrend)
	})
	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info().Int("port", s.config.Port).Msg("API server starting")
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts server with graceful shutdown handling
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		s.logger.Info().Msg("Shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		allowed := false
		for _, o := range s.config.CORSOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+platform.APIKeyHeader)
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.config.Version,
	})
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if p, ok := s.recorder.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			s.jsonError(w, http.StatusServiceUnavailable, "database not ready")
			return
		}
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// =============================================================================
// ESTIMATE ENDPOINT
// =============================================================================

// EstimateRequest is the API request for a batch estimate
type EstimateRequest struct {
	File              acquisition.DeviceFile `json:"file"`
	AllowBelowMinimum bool                   `json:"allow_below_minimum"`
	IncludeFormulas   bool                   `json:"include_formulas"`
	CostLimit         *float64               `json:"cost_limit,omitempty"`
	Persist           bool                   `json:"persist"`
}

// EstimateResponse is the API response for a batch estimate
type EstimateResponse struct {
	RunID   string `json:"run_id"`
	Project string `json:"project,omitempty"`

	// Cost totals, rounded to cents
	Purchased    string                        `json:"purchased"`
	PurchasedAdj string                        `json:"purchased_adj"`
	BareModule   string                        `json:"bare_module"`
	ByCategory   map[equipment.Category]string `json:"by_category"`

	// Quality
	Confidence     float64 `json:"confidence"`
	CostConfidence float64 `json:"cost_weighted_confidence"`
	IsIncomplete   bool    `json:"is_incomplete"`

	// Statistics
	DevicesProcessed int `json:"devices_processed"`
	DevicesEstimated int `json:"devices_estimated"`
	DevicesFailed    int `json:"devices_failed"`

	// Policy
	PolicyResult string             `json:"policy_result"`
	Violations   []policy.Violation `json:"violations"`

	Devices  []DeviceResponse         `json:"devices"`
	Errors   []estimation.DeviceError `json:"errors"`
	Warnings []string                 `json:"warnings"`
	Skipped  []blocks.Detection       `json:"skipped,omitempty"`

	// Audit
	Index       costing.CostIndexOptions `json:"index"`
	EstimatedAt string                   `json:"estimated_at"`
	Stored      bool                     `json:"stored"`
	// RerunOf is the earlier stored run of the project with identical
	// device results.
	RerunOf string `json:"rerun_of,omitempty"`
}

// DeviceResponse is a single costed device
type DeviceResponse struct {
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Subtype      string  `json:"subtype"`
	Material     string  `json:"material"`
	Size         float64 `json:"size"`
	SizeUnit     string  `json:"size_unit"`
	Units        int     `json:"units"`
	FM           float64 `json:"f_m"`
	FP           float64 `json:"f_p"`
	FBM          float64 `json:"f_bm"`
	Purchased    string  `json:"purchased"`
	PurchasedAdj string  `json:"purchased_adj"`
	BareModule   string  `json:"bare_module"`
	Confidence   float64 `json:"confidence"`
	Provisional  bool    `json:"provisional"`
	Extrapolated bool    `json:"extrapolated"`
	Formula      string  `json:"formula,omitempty"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	batch, ok := s.buildBatch(w, r, &req.File)
	if !ok {
		return
	}
	batch.Request.AllowBelowMinimum = req.AllowBelowMinimum

	est, err := s.engine.Estimate(ctx, batch.Request)
	if err != nil {
		s.jsonError(w, statusFor(err), fmt.Sprintf("estimation failed: %v", err))
		return
	}

	policies := s.policies
	if req.CostLimit != nil {
		policies = policy.NewEngine()
		for _, p := range s.policies.Policies() {
			policies.AddPolicy(p)
		}
		policies.AddPolicy(policy.Policy{
			ID:        "api-cost-limit",
			Name:      "Cost Limit",
			Type:      policy.PolicyTypeCostLimit,
			Severity:  policy.SeverityError,
			Threshold: *req.CostLimit,
			Enabled:   true,
		})
	}
	pol := policies.Evaluate(est)

	resp := buildEstimateResponse(batch, est, pol, req.IncludeFormulas)
	if req.Persist {
		if s.recorder == nil {
			s.jsonError(w, http.StatusServiceUnavailable, "no run store configured")
			return
		}
		saved, err := runs.Save(ctx, s.recorder, batch.Project, est)
		if err != nil {
			s.logger.Error().Err(err).Str("run_id", est.RunID.String()).Msg("Failed to store run")
			s.jsonError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Stored = true
		if saved.RerunOf != nil {
			resp.RerunOf = saved.RerunOf.ID.String()
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// buildBatch resolves a device file into an engine request, writing the
// error response itself when it fails.
func (s *Server) buildBatch(w http.ResponseWriter, r *http.Request, df *acquisition.DeviceFile) (*acquisition.Batch, bool) {
	if len(df.Devices) == 0 {
		s.jsonError(w, http.StatusBadRequest, "file has no devices")
		return nil, false
	}
	x := acquisition.NewExtractor(acquisition.NewFileSource(df),
		acquisition.WithCache(acquisition.NewCache()),
		acquisition.WithLogger(s.logger))
	batch, err := acquisition.Build(r.Context(), df, x)
	if err != nil {
		s.jsonError(w, statusFor(err), fmt.Sprintf("invalid device file: %v", err))
		return nil, false
	}
	return batch, true
}

func buildEstimateResponse(batch *acquisition.Batch, est *estimation.EstimationResult, pol *policy.EvaluationResult, formulas bool) EstimateResponse {
	devices := make([]DeviceResponse, len(est.Devices))
	for i, d := range est.Devices {
		devices[i] = DeviceResponse{
			Name:         d.Name,
			Category:     string(d.Category),
			Subtype:      string(d.Subtype),
			Material:     string(d.Material),
			Size:         d.Size,
			SizeUnit:     d.SizeUnit,
			Units:        d.Units,
			FM:           d.Factors.Material,
			FP:           d.Factors.Pressure,
			FBM:          d.Factors.BareModule,
			Purchased:    money(d.Costs.Purchased),
			PurchasedAdj: money(d.Costs.PurchasedAdj),
			BareModule:   money(d.Costs.BareModule),
			Confidence:   d.Confidence,
			Provisional:  d.Provisional,
			Extrapolated: d.Extrapolated,
		}
		if formulas {
			devices[i].Formula = d.Formula
		}
	}

	byCategory := make(map[equipment.Category]string, len(est.ByCategory))
	for c, t := range est.ByCategory {
		byCategory[c] = t.BareModule.StringFixed(2)
	}

	return EstimateResponse{
		RunID:            est.RunID.String(),
		Project:          batch.Project,
		Purchased:        est.Totals.Purchased.StringFixed(2),
		PurchasedAdj:     est.Totals.PurchasedAdj.StringFixed(2),
		BareModule:       est.Totals.BareModule.StringFixed(2),
		ByCategory:       byCategory,
		Confidence:       est.Confidence,
		CostConfidence:   est.CostConfidence,
		IsIncomplete:     est.IsIncomplete,
		DevicesProcessed: est.DevicesProcessed,
		DevicesEstimated: est.DevicesEstimated,
		DevicesFailed:    est.DevicesFailed,
		PolicyResult:     string(pol.Decision),
		Violations:       pol.Violations,
		Devices:          devices,
		Errors:           est.Errors,
		Warnings:         est.Warnings,
		Skipped:          batch.Skipped,
		Index:            est.AuditTrail.Index,
		EstimatedAt:      est.AuditTrail.EstimatedAt.Format(time.RFC3339),
	}
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// =============================================================================
// PREVIEW AND CLASSIFICATION
// =============================================================================

// PreviewResponse lists what an estimate of the file would cost.
type PreviewResponse struct {
	Devices []estimation.PreviewEntry `json:"devices"`
	Skipped []blocks.Detection        `json:"skipped,omitempty"`
	Errors  map[string]string         `json:"errors,omitempty"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var df acquisition.DeviceFile
	if !s.decode(w, r, &df) {
		return
	}
	batch, ok := s.buildBatch(w, r, &df)
	if !ok {
		return
	}

	resp := PreviewResponse{
		Devices: s.engine.Preview(batch.Request),
		Skipped: batch.Skipped,
	}
	if len(batch.Request.InputErrors) > 0 {
		resp.Errors = make(map[string]string, len(batch.Request.InputErrors))
		for name, err := range batch.Request.InputErrors {
			resp.Errors[name] = err.Error()
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// ClassifyRequest carries simulator blocks to classify.
type ClassifyRequest struct {
	Blocks []blocks.Block `json:"blocks"`
}

// ClassifyResponse is the detection of every block plus the costable
// devices grouped by kind.
type ClassifyResponse struct {
	Detections []blocks.Detection            `json:"detections"`
	Groups     map[blocks.Kind][]string      `json:"groups"`
	Devices    map[string]equipment.Category `json:"devices"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	ds := blocks.ClassifyAll(req.Blocks)
	s.jsonResponse(w, http.StatusOK, ClassifyResponse{
		Detections: ds,
		Groups:     blocks.Group(ds),
		Devices:    blocks.DeviceMap(ds),
	})
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (s *Server) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	entries := s.engine.Evaluator().Registry().Entries()
	if c := r.URL.Query().Get("category"); c != "" {
		category, err := equipment.ParseCategory(c)
		if err != nil {
			s.jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		filtered := entries[:0]
		for _, e := range entries {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	s.jsonResponse(w, http.StatusOK, entries)
}

func (s *Server) handleTypeOptions(w http.ResponseWriter, r *http.Request) {
	category, err := equipment.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, s.engine.TypeOptions(category))
}

// CEPCIEntry is one year of the plant cost index.
type CEPCIEntry struct {
	Year  int     `json:"year"`
	Index float64 `json:"index"`
}

func (s *Server) handleCEPCI(w http.ResponseWriter, r *http.Request) {
	out := make([]CEPCIEntry, 0, len(costing.CEPCIByYear))
	for y, v := range costing.CEPCIByYear {
		out = append(out, CEPCIEntry{Year: y, Index: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	s.jsonResponse(w, http.StatusOK, out)
}

// =============================================================================
// RUN HISTORY
// =============================================================================

// RunResponse is a stored run with its device rows.
type RunResponse struct {
	Run     runs.RunRecord      `json:"run"`
	Devices []runs.DeviceRecord `json:"devices"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "no run store configured")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.jsonError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var list []runs.RunRecord
	var err error
	if project := r.URL.Query().Get("project"); project != "" {
		list, err = s.recorder.ListProjectRuns(r.Context(), project, limit)
	} else {
		list, err = s.recorder.ListRuns(r.Context(), limit)
	}
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	if list == nil {
		list = []runs.RunRecord{}
	}
	s.jsonResponse(w, http.StatusOK, list)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "no run store configured")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	ctx := r.Context()
	run, err := s.recorder.GetRun(ctx, id)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get run: %v", err))
		return
	}
	if run == nil {
		s.jsonError(w, http.StatusNotFound, "run not found")
		return
	}
	devices, err := s.recorder.DeviceRows(ctx, id)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get devices: %v", err))
		return
	}
	s.jsonResponse(w, http.StatusOK, RunResponse{Run: *run, Devices: devices})
}

// handleTrend returns the daily bare-module totals per category of a
// project over the last ?days days (default 30).
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		s.jsonError(w, http.StatusServiceUnavailable, "no run store configured")
		return
	}
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.jsonError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	trend, err := s.recorder.CategoryTrend(r.Context(), chi.URLParam(r, "project"), since)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, fmt.Sprintf("failed to query trend: %v", err))
		return
	}
	if trend == nil {
		trend = []runs.CategoryHistory{}
	}
	s.jsonResponse(w, http.StatusOK, trend)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return false
	}
	return true
}

// statusFor maps cost errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case costerrors.IsUnsupportedConfiguration(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{
		"error": message,
	})
}
