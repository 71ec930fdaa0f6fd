// Package session holds paginated search result sets addressable only by an
// opaque id, with bounded lifetime and a non-VIP page cap.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/kmalkov/searchgate/internal/clock"
	"github.com/kmalkov/searchgate/internal/errs"
	"github.com/kmalkov/searchgate/internal/model"
)

// VipChecker answers whether an identity currently has VIP status. The page
// cap is evaluated against the session owner, never the caller.
type VipChecker interface {
	IsVip(ctx context.Context, id model.Identity, now time.Time) bool
}

// Store owns all live search sessions. Sessions are never enumerable by
// owner; the id is the only handle.
type Store struct {
	ttl     time.Duration
	maxPage int
	clk     clock.Clock
	vip     VipChecker
	log     *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	mu        sync.Mutex
	owner     model.Identity
	keyword   string
	results   []model.DatasetRecord
	page      int
	createdAt time.Time
	flagged   bool
}

// New constructs a Store.
func New(ttl time.Duration, nonVipMaxPage int, vip VipChecker, clk clock.Clock, log *zap.Logger) *Store {
	return &Store{
		ttl:      ttl,
		maxPage:  nonVipMaxPage,
		clk:      clk,
		vip:      vip,
		log:      log,
		sessions: make(map[string]*session),
	}
}

// Create registers a result set and returns its opaque session id.
// Result order is the dataset scan order and stays stable for the
// session's lifetime; one record renders as one page.
func (s *Store) Create(owner model.Identity, keyword string, results []model.DatasetRecord, flagged bool) (string, error) {
	if len(results) == 0 {
		return "", fmt.Errorf("refusing to create a session with no results")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}

	sess := &session{
		owner:     owner,
		keyword:   keyword,
		results:   results,
		page:      1,
		createdAt: s.clk.Now(),
		flagged:   flagged,
	}

	s.mu.Lock()
	s.sessions[id.String()] = sess
	s.mu.Unlock()

	return id.String(), nil
}

// GetPage renders one page of a session. The requested page is first reduced
// to the non-VIP cap when the owner is not VIP (with a Capped advisory),
// then clamped into [1, totalPages]. Expiry is checked lazily on every
// access, so a stale session is unreachable even before the sweep runs.
func (s *Store) GetPage(ctx context.Context, sessionID string, page int) (model.SessionPage, error) {
	now := s.clk.Now()

	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return model.SessionPage{}, errs.ErrSessionExpired
	}
	if now.Sub(sess.createdAt) > s.ttl {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return model.SessionPage{}, errs.ErrSessionExpired
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	total := len(sess.results)
	capped := false
	if total > s.maxPage && page > s.maxPage && !s.vip.IsVip(ctx, sess.owner, now) {
		page = s.maxPage
		capped = true
	}
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}
	sess.page = page

	return model.SessionPage{
		SessionID:  sessionID,
		Keyword:    sess.keyword,
		Page:       page,
		TotalPages: total,
		Record:     sess.results[page-1],
		Flagged:    sess.flagged,
		Capped:     capped,
	}, nil
}

// Owner returns the owning identity of a live session.
func (s *Store) Owner(sessionID string) (model.Identity, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return 0, errs.ErrSessionExpired
	}
	return sess.owner, nil
}

// Invalidate removes a session explicitly.
func (s *Store) Invalidate(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Sweep removes sessions older than the TTL horizon and reports how many.
func (s *Store) Sweep() int {
	now := s.clk.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.createdAt) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.log.Info("expired search sessions removed", zap.Int("count", removed))
	}
	return removed
}

// Len reports the number of live sessions (metrics).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
