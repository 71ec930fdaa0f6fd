// Package admission is the single decision point for every inbound request:
// ban check, then frequency governor, then (for quota-bearing actions) the
// daily quota, short-circuiting on the first rejection.
package admission

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kmalkov/searchgate/internal/clock"
	"github.com/kmalkov/searchgate/internal/errs"
	"github.com/kmalkov/searchgate/internal/governor"
	"github.com/kmalkov/searchgate/internal/metrics"
	"github.com/kmalkov/searchgate/internal/model"
	"github.com/kmalkov/searchgate/internal/quota"
)

// AccessChecker answers ban and VIP questions (implemented by registry.Registry).
type AccessChecker interface {
	IsBanned(ctx context.Context, id model.Identity) bool
	IsVip(ctx context.Context, id model.Identity, now time.Time) bool
}

// Throttle runs the frequency rules (implemented by governor.Governor).
type Throttle interface {
	Check(id model.Identity, content string) governor.Verdict
}

// QuotaConsumer spends daily quota (implemented by quota.Tracker).
type QuotaConsumer interface {
	Consume(ctx context.Context, id model.Identity, kind model.ActionKind, vip bool) (quota.Result, error)
}

// Controller orchestrates the admission checks. It produces decisions only;
// rendering rejections into user messages is the transport layer's job.
type Controller struct {
	access AccessChecker
	thr    Throttle
	quotas QuotaConsumer
	clk    clock.Clock
	log    *zap.Logger
}

// New constructs a Controller.
func New(access AccessChecker, thr Throttle, quotas QuotaConsumer, clk clock.Clock, log *zap.Logger) *Controller {
	return &Controller{access: access, thr: thr, quotas: quotas, clk: clk, log: log}
}

// Admit decides whether a request may proceed. VIP status is evaluated once
// and threaded through every check so lazy grant expiry cannot flip within
// a single request.
func (c *Controller) Admit(ctx context.Context, req model.Request) model.Admission {
	adm := c.admit(ctx, req)
	metrics.AdmissionDecisions.WithLabelValues(string(req.Action), outcome(adm)).Inc()
	if !adm.Allowed {
		c.log.Info("request rejected",
			zap.Int64("identity", int64(req.Requester.ID)),
			zap.String("action", string(req.Action)),
			zap.String("reason", string(adm.Reason)))
	}
	return adm
}

func (c *Controller) admit(ctx context.Context, req model.Request) model.Admission {
	id := req.Requester.ID

	if c.access.IsBanned(ctx, id) {
		return model.Admission{Reason: model.ReasonBanned}
	}

	vip := c.access.IsVip(ctx, id, c.clk.Now())

	if v := c.thr.Check(id, req.Content); !v.Allowed {
		return model.Admission{
			Reason:   v.Reason,
			Advisory: model.Advisory{RetryAfter: v.RetryAfter},
			VIP:      vip,
		}
	}

	if !req.Action.QuotaBearing() {
		return model.Admission{Allowed: true, VIP: vip}
	}

	res, err := c.quotas.Consume(ctx, id, req.Action, vip)
	if err != nil {
		// Fail closed: an infrastructure refusal must not look like quota
		// exhaustion to the caller.
		if !errors.Is(err, errs.ErrStorage) {
			c.log.Error("quota consume failed", zap.Error(err))
		}
		metrics.StorageFailures.WithLabelValues("quota_consume").Inc()
		return model.Admission{Reason: model.ReasonStorage, VIP: vip}
	}
	if !res.Allowed {
		return model.Admission{
			Reason:   model.ReasonQuota,
			Advisory: model.Advisory{QuotaRemaining: 0},
			VIP:      vip,
		}
	}

	return model.Admission{
		Allowed:  true,
		Advisory: model.Advisory{QuotaRemaining: res.Remaining},
		VIP:      vip,
	}
}

func outcome(adm model.Admission) string {
	if adm.Allowed {
		return "allowed"
	}
	return string(adm.Reason)
}
