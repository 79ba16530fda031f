package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Cypherspark/webhook-gateway/internal/core"
	"github.com/Cypherspark/webhook-gateway/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Server struct {
	Store  *core.Store
	Ingest *core.Ingestor
	Log    zerolog.Logger

	limiter *rate.Limiter // nil = throttle disabled
}

func NewServer(pool *pgxpool.Pool, secret string, log zerolog.Logger) *Server {
	store := &core.Store{DB: pool}
	return &Server{
		Store:  store,
		Ingest: &core.Ingestor{Store: store, Secret: []byte(secret)},
		Log:    log,
	}
}

// WithThrottle caps POST /webhook to rps with the given burst. rps <= 0
// leaves the throttle off.
func (s *Server) WithThrottle(rps float64, burst int) *Server {
	if rps > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, requestID, s.requestLogger, middleware.Recoverer, instrument)

	r.With(throttle(s.limiter)).Post("/webhook", s.postWebhook)
	r.Get("/messages", s.listMessages)
	r.Get("/stats", s.getStats)

	s.mountHealth(r)
	s.mountMetrics(r)
	s.mountDocs(r)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) postWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read_body"})
		return
	}

	res, err := s.Ingest.Ingest(r.Context(), raw, r.Header.Get("X-Signature"))
	log := s.Log.With().Str("request_id", reqIDFromContext(r.Context())).Logger()
	if err != nil {
		var verr *core.ValidationError
		switch {
		case errors.Is(err, core.ErrInvalidSignature):
			metrics.IngestTotal.WithLabelValues("invalid_signature").Inc()
			log.Error().Int("status", 401).Str("result", "invalid_signature").Msg("webhook rejected")
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_signature"})
		case errors.As(err, &verr):
			metrics.IngestTotal.WithLabelValues("validation_error").Inc()
			log.Error().Int("status", 422).Str("result", "validation_error").Strs("reasons", verr.Reasons).Msg("webhook rejected")
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "validation_error", "detail": verr.Reasons})
		default:
			metrics.IngestTotal.WithLabelValues("error").Inc()
			log.Error().Int("status", 500).Err(err).Msg("webhook storage failure")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage_unavailable"})
		}
		return
	}

	result := "created"
	if res.Duplicate {
		result = "duplicate"
	}
	metrics.IngestTotal.WithLabelValues(result).Inc()
	log.Info().
		Int("status", 200).
		Int64("latency_ms", time.Since(start).Milliseconds()).
		Str("message_id", res.MessageID).
		Bool("dup", res.Duplicate).
		Str("result", result).
		Msg("webhook ingested")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := core.Filters{
		FromMSISDN: q.Get("from"),
		ToMSISDN:   q.Get("to"),
		StartTS:    q.Get("start_ts"),
		EndTS:      q.Get("end_ts"),
	}

	page := 1
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			page = n
		}
	}
	perPage := 20
	if v := q.Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 100 {
			perPage = n
		}
	}
	order := "desc"
	if q.Get("order") == "asc" {
		order = "asc"
	}

	items, total, err := s.Store.QueryMessages(r.Context(), f, page, perPage, order)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage_unavailable"})
		return
	}
	pages := (total + perPage - 1) / perPage

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"meta": map[string]any{
			"total":    total,
			"page":     page,
			"per_page": perPage,
			"pages":    pages,
		},
	})
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := core.Filters{StartTS: q.Get("start_ts"), EndTS: q.Get("end_ts")}

	days := 0
	if v := q.Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	top := 10
	if v := q.Get("top"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			top = n
		}
	}

	total, err := s.Store.CountMessages(r.Context(), f)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage_unavailable"})
		return
	}
	byDay, err := s.Store.MessagesByDay(r.Context(), f, days)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage_unavailable"})
		return
	}
	topSenders, err := s.Store.TopSenders(r.Context(), f, top)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage_unavailable"})
		return
	}

	if byDay == nil {
		byDay = []core.DayCount{}
	}
	if topSenders == nil {
		topSenders = []core.SenderCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_messages":  total,
		"messages_by_day": byDay,
		"top_senders":     topSenders,
	})
}
