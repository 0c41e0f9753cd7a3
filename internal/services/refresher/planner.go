package refresher

import (
	"time"

	"github.com/BearBump/ParcelDesk/internal/freshness"
	"github.com/BearBump/ParcelDesk/internal/models"
)

type PlannerConfig struct {
	ActiveDelay time.Duration // default: the freshness TTL
	FinalDelay  time.Duration // default: 24 hours, for Delivered and Expired
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		ActiveDelay: freshness.DefaultTTL,
		FinalDelay:  24 * time.Hour,
	}
}

// Planner decides which packages get their details refreshed in the background.
type Planner struct {
	cfg PlannerConfig
}

func NewPlanner(cfg PlannerConfig) *Planner {
	def := DefaultPlannerConfig()
	if cfg.ActiveDelay <= 0 {
		cfg.ActiveDelay = def.ActiveDelay
	}
	if cfg.FinalDelay <= 0 {
		cfg.FinalDelay = def.FinalDelay
	}
	if cfg.FinalDelay < cfg.ActiveDelay {
		cfg.FinalDelay = cfg.ActiveDelay
	}
	return &Planner{cfg: cfg}
}

func (p *Planner) NextCheckDelay(status models.Status) time.Duration {
	switch status {
	case models.StatusDelivered, models.StatusExpired:
		return p.cfg.FinalDelay
	default:
		return p.cfg.ActiveDelay
	}
}

// Due reports whether details last written at checkedAt should be fetched again.
// Details never cached are always due.
func (p *Planner) Due(status models.Status, checkedAt, now time.Time) bool {
	if checkedAt.IsZero() {
		return true
	}
	return now.Sub(checkedAt) >= p.NextCheckDelay(status)
}
