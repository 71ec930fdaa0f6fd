// Package httpserver is the thin glue surface between the fronting gateway
// and the governance core. It parses the requester descriptor, runs every
// request through the admission controller, and renders decisions as JSON;
// it holds no governance state of its own.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kmalkov/searchgate/internal/admission"
	"github.com/kmalkov/searchgate/internal/clock"
	"github.com/kmalkov/searchgate/internal/contentfilter"
	"github.com/kmalkov/searchgate/internal/dataset"
	"github.com/kmalkov/searchgate/internal/errs"
	"github.com/kmalkov/searchgate/internal/governor"
	"github.com/kmalkov/searchgate/internal/hotsearch"
	"github.com/kmalkov/searchgate/internal/metrics"
	"github.com/kmalkov/searchgate/internal/model"
	"github.com/kmalkov/searchgate/internal/quota"
	"github.com/kmalkov/searchgate/internal/registry"
	"github.com/kmalkov/searchgate/internal/repository"
	"github.com/kmalkov/searchgate/internal/session"
)

// Server wires the core components behind the HTTP API.
type Server struct {
	admit     *admission.Controller
	sessions  *session.Store
	reg       *registry.Registry
	quotas    *quota.Tracker
	index     *dataset.Index
	trends    *hotsearch.Tracker
	usage     repository.UsageRepository
	gov       *governor.Governor
	filter    *contentfilter.Filter
	randomKey string
	clk       clock.Clock
	log       *zap.Logger
}

// New constructs a Server.
func New(
	admit *admission.Controller,
	sessions *session.Store,
	reg *registry.Registry,
	quotas *quota.Tracker,
	index *dataset.Index,
	trends *hotsearch.Tracker,
	usage repository.UsageRepository,
	gov *governor.Governor,
	filter *contentfilter.Filter,
	randomKey string,
	clk clock.Clock,
	log *zap.Logger,
) *Server {
	return &Server{
		admit:     admit,
		sessions:  sessions,
		reg:       reg,
		quotas:    quotas,
		index:     index,
		trends:    trends,
		usage:     usage,
		gov:       gov,
		filter:    filter,
		randomKey: randomKey,
		clk:       clk,
		log:       log,
	}
}

// Router builds the chi routing tree with logging and recovery middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(s.log))
	r.Use(Logging(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/random", s.handleRandom)
		r.Get("/sessions/{sessionID}/pages/{page}", s.handlePage)
		r.Get("/me", s.handleMe)
		r.Get("/trending", s.handleTrending)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Get("/bans", s.handleListBans)
			r.Post("/bans", s.handleBan)
			r.Delete("/bans/{identity}", s.handleUnban)
			r.Post("/vips", s.handleGrantVip)
			r.Delete("/vips/{identity}", s.handleRevokeVip)
			r.Get("/users/{identity}", s.handleUserInfo)
			r.Post("/limits/reset", s.handleResetLimits)
			r.Delete("/trending", s.handleClearTrending)
		})
	})

	return r
}

type searchRequest struct {
	Keyword string `json:"keyword"`
}

type pageResponse struct {
	SessionID  string              `json:"session_id"`
	Keyword    string              `json:"keyword"`
	Page       int                 `json:"page"`
	TotalPages int                 `json:"total_pages"`
	Capped     bool                `json:"capped,omitempty"`
	Flagged    bool                `json:"flagged,omitempty"`
	Record     model.DatasetRecord `json:"record"`
}

func pageOf(p model.SessionPage) pageResponse {
	return pageResponse{
		SessionID:  p.SessionID,
		Keyword:    p.Keyword,
		Page:       p.Page,
		TotalPages: p.TotalPages,
		Capped:     p.Capped,
		Flagged:    p.Flagged,
		Record:     p.Record,
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.requester(w, r)
	if !ok {
		return
	}
	var body searchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Keyword == "" {
		s.badRequest(w, "keyword is required")
		return
	}

	adm := s.admit.Admit(r.Context(), model.Request{
		Requester: req, Content: body.Keyword, Action: model.ActionSearch,
	})
	if !adm.Allowed {
		s.reject(w, adm)
		return
	}

	flagged := s.filter.Flagged(body.Keyword)
	if flagged {
		metrics.FlaggedSearches.Inc()
		s.log.Warn("advert content in search keyword",
			zap.Int64("identity", int64(req.ID)),
			zap.String("name", req.DisplayName),
			zap.String("keyword", body.Keyword))
	} else {
		s.trends.Bump(r.Context(), body.Keyword)
	}
	s.recordUsage(r.Context(), req.ID, model.ActionSearch, body.Keyword)

	results := s.index.Search(body.Keyword)
	if len(results) == 0 {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"allowed": true,
			"found":   false,
			"keyword": body.Keyword,
		})
		return
	}

	id, err := s.sessions.Create(req.ID, body.Keyword, results, flagged)
	if err != nil {
		s.log.Error("session create failed", zap.Error(err))
		http.Error(w, "internal", http.StatusInternalServerError)
		return
	}
	metrics.ActiveSessions.Set(float64(s.sessions.Len()))

	page, err := s.sessions.GetPage(r.Context(), id, 1)
	if err != nil {
		http.Error(w, "internal", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"allowed":         true,
		"found":           true,
		"quota_remaining": adm.Advisory.QuotaRemaining,
		"page":            pageOf(page),
	})
}

func (s *Server) handleRandom(w http.ResponseWriter, r *http.Request) {
	req, ok := s.requester(w, r)
	if !ok {
		return
	}

	adm := s.admit.Admit(r.Context(), model.Request{
		Requester: req, Content: s.randomKey, Action: model.ActionRandom,
	})
	if !adm.Allowed {
		s.reject(w, adm)
		return
	}

	rec, ok := s.index.Random()
	if !ok {
		http.Error(w, "dataset is empty", http.StatusServiceUnavailable)
		return
	}
	s.recordUsage(r.Context(), req.ID, model.ActionRandom, "")

	s.writeJSON(w, http.StatusOK, map[string]any{
		"allowed":         true,
		"quota_remaining": adm.Advisory.QuotaRemaining,
		"record":          rec,
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	req, ok := s.requester(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	pageNum, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		s.badRequest(w, "invalid page number")
		return
	}

	// Pagination still passes the governor (cooldown included) but spends
	// no daily quota.
	adm := s.admit.Admit(r.Context(), model.Request{
		Requester: req, Action: model.ActionPaginate,
	})
	if !adm.Allowed {
		s.reject(w, adm)
		return
	}

	page, err := s.sessions.GetPage(r.Context(), sessionID, pageNum)
	if err != nil {
		if errors.Is(err, errs.ErrSessionExpired) {
			s.writeJSON(w, http.StatusGone, map[string]any{
				"reason": "session_expired",
			})
			return
		}
		http.Error(w, "internal", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, pageOf(page))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	req, ok := s.requester(w, r)
	if !ok {
		return
	}
	now := s.clk.Now()
	vip := s.reg.IsVip(r.Context(), req.ID, now)
	rem := s.reg.VipRemaining(r.Context(), req.ID, now)

	searchLeft, err := s.quotas.Remaining(r.Context(), req.ID, model.ActionSearch, vip)
	if err != nil {
		s.storageUnavailable(w)
		return
	}
	randomLeft, err := s.quotas.Remaining(r.Context(), req.ID, model.ActionRandom, vip)
	if err != nil {
		s.storageUnavailable(w)
		return
	}

	resp := map[string]any{
		"identity":         int64(req.ID),
		"display_name":     req.DisplayName,
		"banned":           s.reg.IsBanned(r.Context(), req.ID),
		"vip":              vip,
		"search_remaining": searchLeft,
		"random_remaining": randomLeft,
	}
	switch {
	case rem.Unlimited:
		resp["vip_remaining"] = "unlimited"
	case rem.None():
		resp["vip_remaining"] = "none"
	default:
		resp["vip_remaining_seconds"] = int64(rem.Left.Seconds())
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	entries, err := s.trends.Top(r.Context(), hotsearch.DefaultTop)
	if err != nil {
		s.storageUnavailable(w)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type banRequest struct {
	Identity int64  `json:"identity"`
	Reason   string `json:"reason"`
}

func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	actor := adminFrom(r.Context())
	var body banRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Identity == 0 {
		s.badRequest(w, "identity is required")
		return
	}
	if err := s.reg.Ban(r.Context(), model.Identity(body.Identity), body.Reason, actor.ID); err != nil {
		s.storageUnavailable(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnban(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identityParam(w, r)
	if !ok {
		return
	}
	err := s.reg.Unban(r.Context(), id)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, errs.ErrNotBanned):
		s.writeJSON(w, http.StatusNotFound, map[string]any{"reason": "not_banned"})
	default:
		s.storageUnavailable(w)
	}
}

func (s *Server) handleListBans(w http.ResponseWriter, r *http.Request) {
	recs, err := s.reg.ListBans(r.Context())
	if err != nil {
		s.storageUnavailable(w)
		return
	}
	type banRow struct {
		Identity int64  `json:"identity"`
		Reason   string `json:"reason"`
		BannedAt string `json:"banned_at"`
		BannedBy int64  `json:"banned_by"`
	}
	rows := make([]banRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, banRow{
			Identity: int64(rec.Identity),
			Reason:   rec.Reason,
			BannedAt: rec.BannedAt.Format("2006-01-02 15:04:05"),
			BannedBy: int64(rec.BannedBy),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"bans": rows})
}

type vipRequest struct {
	Identity int64 `json:"identity"`
	Days     int   `json:"days"`
}

func (s *Server) handleGrantVip(w http.ResponseWriter, r *http.Request) {
	var body vipRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Identity == 0 {
		s.badRequest(w, "identity is required")
		return
	}
	if body.Days <= 0 {
		s.badRequest(w, "days must be positive")
		return
	}
	if err := s.reg.GrantVip(r.Context(), model.Identity(body.Identity), body.Days); err != nil {
		if errors.Is(err, errs.ErrStorage) {
			s.storageUnavailable(w)
			return
		}
		s.badRequest(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRevokeVip(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identityParam(w, r)
	if !ok {
		return
	}
	err := s.reg.RevokeVip(r.Context(), id)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, errs.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]any{"reason": "not_vip"})
	default:
		s.storageUnavailable(w)
	}
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identityParam(w, r)
	if !ok {
		return
	}
	now := s.clk.Now()

	usage, err := s.usage.Get(r.Context(), id)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		s.storageUnavailable(w)
		return
	}

	resp := map[string]any{
		"identity": int64(id),
		"banned":   s.reg.IsBanned(r.Context(), id),
		"vip":      s.reg.IsVip(r.Context(), id, now),
	}
	if usage != nil {
		keywords := make([]map[string]any, 0, len(usage.RecentKeywords))
		for _, ev := range usage.RecentKeywords {
			keywords = append(keywords, map[string]any{
				"keyword": ev.Keyword,
				"at":      ev.At.Format("2006-01-02 15:04:05"),
			})
		}
		resp["first_seen"] = usage.FirstSeen.Format("2006-01-02 15:04:05")
		resp["last_active"] = usage.LastActive.Format("2006-01-02 15:04:05")
		resp["total_searches"] = usage.TotalSearches
		resp["recent_keywords"] = keywords
	} else {
		resp["seen"] = false
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleResetLimits wipes daily counters and all throttle state.
func (s *Server) handleResetLimits(w http.ResponseWriter, r *http.Request) {
	if err := s.quotas.ResetAll(r.Context()); err != nil {
		s.storageUnavailable(w)
		return
	}
	s.gov.Reset()
	s.log.Info("all user limits reset", zap.Int64("by", int64(adminFrom(r.Context()).ID)))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearTrending(w http.ResponseWriter, r *http.Request) {
	if err := s.trends.Clear(r.Context()); err != nil {
		s.storageUnavailable(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ctxKey string

const adminKey ctxKey = "admin"

// adminOnly admits only identities from the static admin set.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := requesterFrom(r)
		if err != nil {
			s.badRequest(w, err.Error())
			return
		}
		if !s.reg.IsAdmin(req.ID) {
			s.writeJSON(w, http.StatusForbidden, map[string]any{"reason": "admin_only"})
			return
		}
		req.Admin = true
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey, req)))
	})
}

func adminFrom(ctx context.Context) model.Requester {
	req, _ := ctx.Value(adminKey).(model.Requester)
	return req
}

func (s *Server) requester(w http.ResponseWriter, r *http.Request) (model.Requester, bool) {
	req, err := requesterFrom(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return model.Requester{}, false
	}
	req.Admin = s.reg.IsAdmin(req.ID)
	return req, true
}

func (s *Server) identityParam(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	raw := chi.URLParam(r, "identity")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.badRequest(w, "invalid identity")
		return 0, false
	}
	return model.Identity(id), true
}

// recordUsage is best-effort bookkeeping; a storage hiccup never fails the request.
func (s *Server) recordUsage(ctx context.Context, id model.Identity, action model.ActionKind, keyword string) {
	if err := s.usage.Touch(ctx, id, action, keyword, s.clk.Now()); err != nil {
		metrics.StorageFailures.WithLabelValues("usage_touch").Inc()
		s.log.Warn("usage record failed", zap.Int64("identity", int64(id)), zap.Error(err))
	}
}

// reject renders a structured admission refusal.
func (s *Server) reject(w http.ResponseWriter, adm model.Admission) {
	status := http.StatusTooManyRequests
	switch adm.Reason {
	case model.ReasonBanned:
		status = http.StatusForbidden
	case model.ReasonStorage:
		status = http.StatusServiceUnavailable
	}
	if adm.Advisory.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(adm.Advisory.RetryAfter.Seconds())))
	}
	s.writeJSON(w, status, map[string]any{
		"allowed":             false,
		"reason":              string(adm.Reason),
		"retry_after_seconds": int64(adm.Advisory.RetryAfter.Seconds()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": msg})
}

func (s *Server) storageUnavailable(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "storage unavailable"})
}
