// Package api exposes the dataset as JSON. The handlers translate query
// parameters into the streaming database calls and keep a response cache
// plus a per-IP limiter in front of everything, so the map page stays
// responsive even when someone scripts against the API.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"population-map/pkg/database"
)

// Handler wires the database into HTTP routes.
type Handler struct {
	DB      *database.Database
	Cache   *ResponseCache
	Limiter *RateLimiter
	Logf    func(string, ...any)
}

// NewHandler constructs a Handler. Cache, Limiter and Logf may be nil.
func NewHandler(db *database.Database, cache *ResponseCache, limiter *RateLimiter, logf func(string, ...any)) *Handler {
	return &Handler{DB: db, Cache: cache, Limiter: limiter, Logf: logf}
}

// Register attaches the API routes. Kept tiny and declarative so the
// URL surface is readable in one glance.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api", h.handleOverview)
	mux.HandleFunc("/api/locations", h.handleLocations)
	mux.HandleFunc("/api/names", h.handleNames)
}

// locationRow is the wire form of a database row. Pointers distinguish
// "missing in the CSV" from zero.
type locationRow struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	Population *float64 `json:"population"`
}

func toRow(l database.Location) locationRow {
	return locationRow{
		ID:         l.ID,
		Name:       l.Name,
		Lat:        nullableFloat(l.Lat),
		Lon:        nullableFloat(l.Lon),
		Population: nullableFloat(l.Population),
	}
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// handleOverview publishes machine-readable docs so API users can
// discover the endpoints and pagination scheme without reading source.
func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	permit, err := h.acquire(ctx, r, RequestGeneral)
	if err != nil {
		h.limitError(w, err)
		return
	}
	defer permit.Release()

	total, err := h.DB.Count(ctx)
	if err != nil {
		h.serverError(w, "count locations", err)
		return
	}

	overview := struct {
		TotalLocations int64          `json:"totalLocations"`
		Endpoints      map[string]any `json:"endpoints"`
	}{
		TotalLocations: total,
		Endpoints: map[string]any{
			"listLocations": map[string]any{
				"method":      "GET",
				"path":        "/api/locations",
				"query":       []string{"min_pop", "keyword", "name", "startAfter", "limit"},
				"description": "Returns location rows ordered by id. Use nextStartAfter to continue pagination; filters match the map page.",
			},
			"listNames": map[string]any{
				"method":      "GET",
				"path":        "/api/names",
				"description": "Returns the sorted distinct location names feeding the dropdown.",
			},
		},
	}

	h.respondJSON(w, overview)
}

// handleLocations serves filtered, paginated rows.
func (h *Handler) handleLocations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	permit, err := h.acquire(ctx, r, RequestGeneral)
	if err != nil {
		h.limitError(w, err)
		return
	}
	defer permit.Release()

	q := r.URL.Query()
	filter := database.Filter{
		Keyword:    q.Get("keyword"),
		Name:       q.Get("name"),
		StartAfter: parseInt64Default(q.Get("startAfter"), 0),
		Limit:      clampInt(parseIntDefault(q.Get("limit"), 100), 1, 1000),
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(q.Get("min_pop")), 10, 64); err == nil {
		filter.MinPop = sql.NullInt64{Int64: n, Valid: true}
	}

	data, err := h.Cache.Fetch(ctx, locationsCacheKey(filter), func(ctx context.Context) ([]byte, error) {
		return h.loadLocations(ctx, filter)
	})
	if err != nil {
		h.serverError(w, "list locations", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// loadLocations drains the streaming query into the response document.
func (h *Handler) loadLocations(ctx context.Context, filter database.Filter) ([]byte, error) {
	rowsCh, errCh := h.DB.Stream(ctx, filter)

	rows := make([]locationRow, 0, filter.Limit)
	var lastID int64
	for loc := range rowsCh {
		rows = append(rows, toRow(loc))
		lastID = loc.ID
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	var next int64
	if len(rows) == filter.Limit {
		next = lastID
	}

	resp := struct {
		StartAfter     int64         `json:"startAfter"`
		Limit          int           `json:"limit"`
		Locations      []locationRow `json:"locations"`
		NextStartAfter int64         `json:"nextStartAfter,omitempty"`
	}{
		StartAfter:     filter.StartAfter,
		Limit:          filter.Limit,
		Locations:      rows,
		NextStartAfter: next,
	}
	return json.Marshal(resp)
}

// handleNames serves the dropdown vocabulary.
func (h *Handler) handleNames(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	permit, err := h.acquire(ctx, r, RequestGeneral)
	if err != nil {
		h.limitError(w, err)
		return
	}
	defer permit.Release()

	names, err := h.DB.DistinctNames(ctx)
	if err != nil {
		h.serverError(w, "distinct names", err)
		return
	}
	if names == nil {
		names = []string{}
	}

	h.respondJSON(w, struct {
		Names []string `json:"names"`
		Total int      `json:"total"`
	}{Names: names, Total: len(names)})
}

// =====================
// Utility helpers
// =====================

func (h *Handler) acquire(ctx context.Context, r *http.Request, kind RequestKind) (*Permit, error) {
	return h.Limiter.Acquire(ctx, clientIP(r), kind)
}

func (h *Handler) limitError(w http.ResponseWriter, err error) {
	if err == ErrBusy {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	http.Error(w, "request cancelled", http.StatusRequestTimeout)
}

func (h *Handler) serverError(w http.ResponseWriter, what string, err error) {
	http.Error(w, what, http.StatusInternalServerError)
	if h.Logf != nil {
		h.Logf("%s: %v", what, err)
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// locationsCacheKey canonicalizes a filter so equivalent requests share
// one cache slot regardless of query-parameter order.
func locationsCacheKey(f database.Filter) string {
	v := url.Values{}
	if f.MinPop.Valid {
		v.Set("min_pop", strconv.FormatInt(f.MinPop.Int64, 10))
	}
	if f.Keyword != "" {
		v.Set("keyword", strings.ToLower(f.Keyword))
	}
	if f.Name != "" {
		v.Set("name", strings.ToLower(f.Name))
	}
	v.Set("startAfter", strconv.FormatInt(f.StartAfter, 10))
	v.Set("limit", strconv.Itoa(f.Limit))
	return "locations?" + v.Encode()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseIntDefault(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func parseInt64Default(v string, def int64) int64 {
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
