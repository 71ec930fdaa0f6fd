// Package model defines domain entities used by services and repositories.
package model

import (
	"time"
)

// Identity is the opaque numeric handle for a requester, supplied by the transport layer.
type Identity int64

// Requester describes the author of an inbound request as asserted by the gateway.
type Requester struct {
	ID          Identity
	DisplayName string
	Admin       bool
}

// ActionKind is a quota-bearing operation category.
type ActionKind string

const (
	ActionSearch ActionKind = "search"
	ActionRandom ActionKind = "random"
	// ActionPaginate is throttled but carries no daily quota.
	ActionPaginate ActionKind = "paginate"
)

// QuotaBearing reports whether the action consumes a daily quota.
func (k ActionKind) QuotaBearing() bool {
	return k == ActionSearch || k == ActionRandom
}

// Request is the normalized descriptor built once at the boundary and passed everywhere internally.
type Request struct {
	Requester Requester
	Content   string
	Action    ActionKind
}

// BanRecord is a durable ban entry. An identity appears at most once in the ban set.
type BanRecord struct {
	Identity Identity
	Reason   string
	BannedAt time.Time
	BannedBy Identity
}

// VipGrant is a time-bounded quota/page-cap override. A new grant replaces
// any prior grant for the identity; grants never stack or extend.
type VipGrant struct {
	Identity     Identity
	ExpiresAt    time.Time
	GrantedAt    time.Time
	DurationDays int
}

// Expired reports whether the grant has lapsed at the given instant.
func (g VipGrant) Expired(now time.Time) bool {
	return !g.ExpiresAt.After(now)
}

// RejectReason classifies why an admission was refused.
type RejectReason string

const (
	ReasonNone        RejectReason = ""
	ReasonBanned      RejectReason = "banned"
	ReasonInCooldown  RejectReason = "in_cooldown"
	ReasonSameContent RejectReason = "same_content"
	ReasonTooFrequent RejectReason = "too_frequent"
	ReasonQuota       RejectReason = "quota_exceeded"
	ReasonStorage     RejectReason = "storage_error"
)

// Advisory carries non-fatal hints the caller may render alongside the decision.
type Advisory struct {
	// QuotaRemaining is the number of same-day actions left; -1 means unlimited.
	QuotaRemaining int
	// RetryAfter is the advisory cooldown left on a rate-limited rejection.
	RetryAfter time.Duration
	// PageCapped is set when a requested page was forced down to the non-VIP cap.
	PageCapped bool
}

// Admission is the single decision value produced for every inbound request.
type Admission struct {
	Allowed  bool
	Reason   RejectReason
	Advisory Advisory
	// VIP is the requester's VIP status evaluated once for this request.
	VIP bool
}

// DatasetRecord is one entry of the static search corpus.
type DatasetRecord struct {
	Code        string `json:"code"`
	DecoderKind int    `json:"decoder_kind"`
	Description string `json:"description"`
}

// SessionPage is one rendered page of a server-held search session.
type SessionPage struct {
	SessionID  string
	Keyword    string
	Page       int
	TotalPages int
	Record     DatasetRecord
	Flagged    bool
	// Capped is set when the requested page was reduced to the non-VIP maximum.
	Capped bool
}

// UserUsage summarizes a requester's recorded activity.
type UserUsage struct {
	Identity      Identity
	FirstSeen     time.Time
	LastActive    time.Time
	TotalSearches int64
	// RecentKeywords holds the newest keywords first, bounded by the recorder.
	RecentKeywords []KeywordEvent
}

// KeywordEvent is one recorded search keyword.
type KeywordEvent struct {
	Keyword string
	At      time.Time
}

// TrendEntry is one row of the trending-keywords board.
type TrendEntry struct {
	Keyword string `json:"keyword"`
	Count   int64  `json:"count"`
}
