package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/djlord-it/linkswap/internal/domain"
	"github.com/djlord-it/linkswap/internal/engine"
	"github.com/djlord-it/linkswap/internal/extract"
)

// RequestIDHeader is echoed on every response.
const RequestIDHeader = "X-Request-ID"

const (
	msgNotFound = "page not found"
	msgInternal = "internal server error"
)

// Decider turns a go request into a decision.
type Decider interface {
	Decide(ctx context.Context, req engine.Request) domain.Decision
}

var _ Decider = (*engine.Engine)(nil)

// PairReader looks up a pair in one exact orientation.
type PairReader interface {
	Find(ctx context.Context, domain1, domain2 string) (domain.Pair, error)
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// BreakerState reports the store circuit breaker for verbose /health.
type BreakerState interface {
	State(key string) string
}

type Handler struct {
	decider    Decider
	pairs      PairReader
	db         HealthChecker // optional
	breaker    BreakerState  // optional
	breakerKey string
}

func NewHandler(decider Decider, pairs PairReader) *Handler {
	return &Handler{decider: decider, pairs: pairs}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithBreakerState adds the breaker for key to verbose /health responses.
func (h *Handler) WithBreakerState(b BreakerState, key string) *Handler {
	h.breaker = b
	h.breakerKey = key
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" || len(requestID) > 128 {
		requestID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, requestID)

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("api: request_id=%s path=%s panic: %v", requestID, r.URL.Path, rec)
			writeText(w, http.StatusInternalServerError, msgInternal)
		}
	}()

	path := r.URL.Path
	get := r.Method == http.MethodGet || r.Method == http.MethodHead

	switch {
	case path == "/go" && get:
		h.goRedirect(w, r, requestID)

	case path == "/" && get:
		renderPage(w, http.StatusOK, "index.html", indexPage{
			Example:   "/go?from=https://your-site.example/page&to=https://partner.example/",
			MaxLength: extract.MaxURLLength,
		})

	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/pairs" && r.Method == http.MethodGet:
		h.getPair(w, r)

	default:
		writeText(w, http.StatusNotFound, msgNotFound)
	}
}

func (h *Handler) goRedirect(w http.ResponseWriter, r *http.Request, requestID string) {
	// Continue a caller's trace if one was propagated.
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	q := r.URL.Query()
	d := h.decider.Decide(ctx, engine.Request{
		From:    q.Get("from"),
		To:      q.Get("to"),
		Referer: r.Referer(),
	})

	switch d.Outcome {
	case domain.OutcomeRedirect:
		http.Redirect(w, r, d.URL, http.StatusFound)

	case domain.OutcomeInterstitial:
		renderPage(w, http.StatusOK, "interstitial.html", interstitialPage{BackURL: d.URL})

	default:
		if d.Reason == domain.ReasonInternal {
			log.Printf("api: request_id=%s go request failed", requestID)
		}
		writeText(w, d.Status(), d.Reason)
	}
}

func (h *Handler) getPair(w http.ResponseWriter, r *http.Request) {
	a, b, err := parsePairQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.pairs.Find(r.Context(), a, b)
	if errors.Is(err, domain.ErrPairNotFound) {
		p, err = h.pairs.Find(r.Context(), b, a)
	}
	if err != nil {
		if errors.Is(err, domain.ErrPairNotFound) {
			writeError(w, http.StatusNotFound, "pair not found")
			return
		}
		log.Printf("api: find pair a=%s b=%s error: %v", a, b, err)
		writeError(w, http.StatusInternalServerError, "failed to look up pair")
		return
	}

	writeJSON(w, http.StatusOK, PairResponse{
		Domain1: p.Domain1,
		Domain2: p.Domain2,
		One2Two: p.One2Two,
		Two2One: p.Two2One,
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	// Check if verbose mode requested via ?verbose=true
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || (h.db == nil && h.breaker == nil) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := h.db.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components["database"] = "unhealthy: " + err.Error()
		} else {
			resp.Components["database"] = "healthy"
		}
	}

	if h.breaker != nil {
		state := h.breaker.State(h.breakerKey)
		resp.Components["circuit_breaker"] = state
		if state == "open" {
			resp.Status = "degraded"
		}
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeText(w http.ResponseWriter, status int, msg string) {
	http.Error(w, msg, status)
}
