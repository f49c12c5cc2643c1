package scraper

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/use-agent/profilr/config"
)

// DelayKind names a pause in the load sequence.
type DelayKind int

const (
	DelayPreNav   DelayKind = iota // before opening the profile
	DelaySettle                    // after DOMContentLoaded
	DelayScroll                    // between scroll steps
	DelayLazyLoad                  // after the last scroll step
	DelayExpand                    // after clicking an expansion control
)

func (k DelayKind) String() string {
	switch k {
	case DelayPreNav:
		return "pre-nav"
	case DelaySettle:
		return "settle"
	case DelayScroll:
		return "scroll"
	case DelayLazyLoad:
		return "lazy-load"
	case DelayExpand:
		return "expand"
	default:
		return "unknown"
	}
}

// DelayPolicy decides how long each pause lasts and how the page is
// scrolled. Tests use NoDelays.
type DelayPolicy interface {
	Delay(kind DelayKind) time.Duration
	ScrollStep() int
	MaxScrolls() int
}

type randomDelays struct {
	cfg config.HumanizeConfig
}

// RandomDelays draws every pause and scroll step uniformly from the
// configured ranges.
func RandomDelays(cfg config.HumanizeConfig) DelayPolicy {
	return randomDelays{cfg: cfg}
}

func (r randomDelays) Delay(kind DelayKind) time.Duration {
	switch kind {
	case DelayPreNav:
		return between(r.cfg.PreNavMin, r.cfg.PreNavMax)
	case DelaySettle:
		return r.cfg.Settle
	case DelayScroll:
		return between(r.cfg.ScrollDelayMin, r.cfg.ScrollDelayMax)
	case DelayLazyLoad:
		return r.cfg.LazyLoadPause
	case DelayExpand:
		return r.cfg.ExpandPause
	default:
		return 0
	}
}

func (r randomDelays) ScrollStep() int {
	lo, hi := r.cfg.ScrollStepMin, r.cfg.ScrollStepMax
	if hi <= lo {
		return lo
	}
	return lo + rand.IntN(hi-lo)
}

func (r randomDelays) MaxScrolls() int { return r.cfg.MaxScrolls }

// between returns a duration in [lo, hi).
func between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

type noDelays struct{}

// NoDelays never pauses. It keeps the default scroll geometry so the scroll
// loop still terminates on a page that never reports its bottom.
func NoDelays() DelayPolicy { return noDelays{} }

func (noDelays) Delay(DelayKind) time.Duration { return 0 }
func (noDelays) ScrollStep() int               { return 300 }
func (noDelays) MaxScrolls() int               { return 10 }

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
