// Package server exposes the update and latest stats operations over http and
// runs the scheduled updates.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"simstats-backend/internal/components/chrono"
	"simstats-backend/internal/components/telemetry"
	"simstats-backend/internal/notify"
	"simstats-backend/internal/simstats"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/time/rate"
)

const (
	report_http_write       = "http.write"
	report_http_rate_limit  = "http.rate-limit"
	report_notify           = "notify.failure"
	report_cron_result      = "cron.result"
	report_cron_register    = "cron.register"
	report_latest_cache_set = "latest.cache-set"
)

const latestCacheKey = "latest"

// Service is the part of simstats.Service the server depends on.
//
// note: fault injection point
type Service interface {
	Update(ctx context.Context, id string) simstats.Response
	Latest(ctx context.Context) simstats.Latest
	Providers() []simstats.ProviderConfig
}

type Options struct {
	// UpdateInterval is the minimum time between two on-demand updates of the
	// same provider, zero disables the limit.
	UpdateInterval time.Duration
	// LatestTTL is how long a latest stats payload is served from memory, zero
	// disables the cache.
	LatestTTL time.Duration
	Notifier  notify.Notifier
	Time      chrono.TimeAPI
}

// latestEntry is a cached latest stats payload, it is only served while no
// update has succeeded since the store was read.
type latestEntry struct {
	generation uint64
	body       []byte
}

type Server struct {
	service   Service
	limiters  map[string]*rate.Limiter
	cache     *ristretto.Cache[string, latestEntry]
	latestTTL time.Duration
	notifier  notify.Notifier
	time      chrono.TimeAPI
	tel       telemetry.API

	// generation is bumped by every successful update.
	generation atomic.Uint64
}

func New(service Service, opts Options, tel telemetry.API) (*Server, error) {
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Time == nil {
		opts.Time = chrono.StandardTime{}
	}

	s := &Server{
		service:   service,
		limiters:  map[string]*rate.Limiter{},
		latestTTL: opts.LatestTTL,
		notifier:  opts.Notifier,
		time:      opts.Time,
		tel:       telemetry.NewScopedAPI("server", tel),
	}

	for _, p := range service.Providers() {
		limit := rate.Inf
		if opts.UpdateInterval > 0 {
			limit = rate.Every(opts.UpdateInterval)
		}
		s.limiters[p.ID] = rate.NewLimiter(limit, 1)
	}

	if opts.LatestTTL > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config[string, latestEntry]{
			NumCounters: 1e3,
			MaxCost:     1 << 20,
			BufferItems: 64,
		})
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}

	return s, nil
}

func (s *Server) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /update/{provider}", s.handleUpdate)
	mux.HandleFunc("POST /update/{provider}", s.handleUpdate)
	mux.HandleFunc("GET /latest", s.handleLatest)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, value any) {
	body, err := json.Marshal(value)
	if err != nil {
		s.tel.ReportBroken(report_http_write, err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	s.writeBody(w, status, body)
}

func (s *Server) writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(body)
	if err != nil {
		s.tel.ReportWarning(report_http_write, err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "text/plain")
	w.Write([]byte("OK"))
}

// update runs a single update and notifies on failure, a successful update
// evicts the cached latest stats.
func (s *Server) update(ctx context.Context, id, trigger string) simstats.Response {
	res := s.service.Update(ctx, id)
	if res.Failed() {
		err := s.notifier.NotifyFailure(ctx, notify.Failure{
			Provider: id,
			Trigger:  trigger,
			Message:  res.Error,
			At:       s.time.Now(),
		})
		if err != nil {
			s.tel.ReportWarning(report_notify, err, id)
		}
		return res
	}
	s.generation.Add(1)
	if s.cache != nil {
		s.cache.Del(latestCacheKey)
	}
	return res
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("provider")
	limiter, ok := s.limiters[id]
	if !ok {
		s.writeJSON(w, http.StatusNotFound, simstats.Response{
			Error: fmt.Sprintf("%s: %q", simstats.ErrUnknownProvider, id),
		})
		return
	}
	if !limiter.Allow() {
		s.tel.ReportWarning(report_http_rate_limit, id)
		s.writeJSON(w, http.StatusTooManyRequests, simstats.Response{
			Error: fmt.Sprintf("%s was updated recently, try again later", id),
		})
		return
	}

	// a client that disconnects must not abort a scrape halfway through its writes
	ctx := context.WithoutCancel(r.Context())
	res := s.update(ctx, id, "http")

	status := http.StatusOK
	if res.Failed() {
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, res)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	generation := s.generation.Load()
	if s.cache != nil {
		entry, ok := s.cache.Get(latestCacheKey)
		if ok && entry.generation == generation {
			s.writeBody(w, http.StatusOK, entry.body)
			return
		}
	}

	body, err := json.Marshal(s.service.Latest(r.Context()))
	if err != nil {
		s.tel.ReportBroken(report_http_write, err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if s.cache != nil {
		entry := latestEntry{generation: generation, body: body}
		if !s.cache.SetWithTTL(latestCacheKey, entry, int64(len(body)), s.latestTTL) {
			s.tel.ReportWarning(report_latest_cache_set)
		}
		s.cache.Wait()
	}
	s.writeBody(w, http.StatusOK, body)
}
