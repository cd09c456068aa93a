package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/oparadev/personnelbase/internal/domain"
	"github.com/oparadev/personnelbase/internal/featureflags"
	"github.com/oparadev/personnelbase/internal/infrastructure/redis"
	"github.com/oparadev/personnelbase/internal/reliability/circuitbreaker"
	"github.com/oparadev/personnelbase/internal/security"
)

const (
	analyticsCacheFlag = "ANALYTICS_CACHE"
	analyticsCacheTTL  = 5 * time.Minute
)

// AnalyticsService aggregates counts for the dashboard and per-tenant views.
// Results can be cached in Redis; the cache sits behind a circuit breaker so
// a flapping Redis never slows the counts down.
type AnalyticsService struct {
	tenantRepo    domain.TenantRepository
	userRepo      domain.UserRepository
	personnelRepo domain.PersonnelRepository
	cache         *redis.Client
	breaker       *circuitbreaker.CircuitBreaker
	logger        *slog.Logger
	now           func() time.Time
}

// NewAnalyticsService creates a new analytics service. cache may be nil when
// Redis is not configured.
func NewAnalyticsService(
	tenantRepo domain.TenantRepository,
	userRepo domain.UserRepository,
	personnelRepo domain.PersonnelRepository,
	cache *redis.Client,
	logger *slog.Logger,
) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AnalyticsService{
		tenantRepo:    tenantRepo,
		userRepo:      userRepo,
		personnelRepo: personnelRepo,
		cache:         cache,
		breaker:       circuitbreaker.NewCircuitBreaker(3, 2, 30*time.Second),
		logger:        logger,
		now:           time.Now,
	}
}

// Metric is a total plus its month-over-month movement.
type Metric struct {
	Total     int     `json:"total"`
	ThisMonth int     `json:"this_month"`
	LastMonth int     `json:"last_month"`
	ChangePct float64 `json:"change_pct"`
}

// DashboardStats is the system-wide analytics view.
type DashboardStats struct {
	DBs        Metric    `json:"dbs"`
	Users      Metric    `json:"users"`
	Personnels Metric    `json:"personnels"`
	ComputedAt time.Time `json:"computed_at"`
}

// TenantStats is the analytics view for one tenant.
type TenantStats struct {
	TenantID   string         `json:"db_id"`
	Personnels Metric         `json:"personnels"`
	ByStatus   map[string]int `json:"by_status"`
	Deleted    int            `json:"deleted"`
	ComputedAt time.Time      `json:"computed_at"`
}

// Dashboard returns system-wide totals. Admin only.
func (s *AnalyticsService) Dashboard(ctx context.Context, claims security.SessionClaims) (*DashboardStats, error) {
	if err := security.RequireAdmin(claims); err != nil {
		return nil, err
	}

	stats := &DashboardStats{}
	if s.cacheGet(ctx, "analytics:dashboard", stats) {
		return stats, nil
	}

	thisStart, lastStart := s.monthBounds()

	var err error
	if stats.DBs, err = s.tenantMetric(ctx, thisStart, lastStart); err != nil {
		return nil, err
	}
	if stats.Users, err = s.userMetric(ctx, thisStart, lastStart); err != nil {
		return nil, err
	}
	if stats.Personnels, err = s.personnelMetric(ctx, "", thisStart, lastStart); err != nil {
		return nil, err
	}
	stats.ComputedAt = s.now()

	s.cacheSet(ctx, "analytics:dashboard", stats)
	return stats, nil
}

// ForTenant returns the analytics view for one tenant the caller may act on.
func (s *AnalyticsService) ForTenant(ctx context.Context, claims security.SessionClaims, tenantID string) (*TenantStats, error) {
	if err := security.AuthorizeTenant(claims, tenantID); err != nil {
		return nil, err
	}
	if _, err := s.tenantRepo.GetByID(ctx, tenantID); err != nil {
		return nil, err
	}

	stats := &TenantStats{}
	key := "analytics:db:" + tenantID
	if s.cacheGet(ctx, key, stats) {
		return stats, nil
	}

	thisStart, lastStart := s.monthBounds()
	metric, err := s.personnelMetric(ctx, tenantID, thisStart, lastStart)
	if err != nil {
		return nil, err
	}

	byStatus := map[string]int{}
	notDeleted := false
	for _, status := range []domain.PersonnelStatus{
		domain.StatusActive, domain.StatusInactive, domain.StatusAWOL,
		domain.StatusDeath, domain.StatusRTU, domain.StatusPosted, domain.StatusCSE,
	} {
		n, err := s.personnelRepo.Count(ctx, domain.PersonnelCountFilter{
			TenantID: tenantID,
			Status:   status,
			Deleted:  &notDeleted,
		})
		if err != nil {
			return nil, err
		}
		byStatus[string(status)] = n
	}

	deleted := true
	deletedCount, err := s.personnelRepo.Count(ctx, domain.PersonnelCountFilter{
		TenantID: tenantID,
		Deleted:  &deleted,
	})
	if err != nil {
		return nil, err
	}

	stats.TenantID = tenantID
	stats.Personnels = metric
	stats.ByStatus = byStatus
	stats.Deleted = deletedCount
	stats.ComputedAt = s.now()

	s.cacheSet(ctx, key, stats)
	return stats, nil
}

func (s *AnalyticsService) tenantMetric(ctx context.Context, thisStart, lastStart time.Time) (Metric, error) {
	total, err := s.tenantRepo.CountCreatedBetween(ctx, time.Time{}, time.Time{})
	if err != nil {
		return Metric{}, err
	}
	thisMonth, err := s.tenantRepo.CountCreatedBetween(ctx, thisStart, time.Time{})
	if err != nil {
		return Metric{}, err
	}
	lastMonth, err := s.tenantRepo.CountCreatedBetween(ctx, lastStart, thisStart)
	if err != nil {
		return Metric{}, err
	}
	return newMetric(total, thisMonth, lastMonth), nil
}

func (s *AnalyticsService) userMetric(ctx context.Context, thisStart, lastStart time.Time) (Metric, error) {
	total, err := s.userRepo.CountCreatedBetween(ctx, time.Time{}, time.Time{})
	if err != nil {
		return Metric{}, err
	}
	thisMonth, err := s.userRepo.CountCreatedBetween(ctx, thisStart, time.Time{})
	if err != nil {
		return Metric{}, err
	}
	lastMonth, err := s.userRepo.CountCreatedBetween(ctx, lastStart, thisStart)
	if err != nil {
		return Metric{}, err
	}
	return newMetric(total, thisMonth, lastMonth), nil
}

func (s *AnalyticsService) personnelMetric(ctx context.Context, tenantID string, thisStart, lastStart time.Time) (Metric, error) {
	notDeleted := false
	total, err := s.personnelRepo.Count(ctx, domain.PersonnelCountFilter{TenantID: tenantID, Deleted: &notDeleted})
	if err != nil {
		return Metric{}, err
	}
	thisMonth, err := s.personnelRepo.Count(ctx, domain.PersonnelCountFilter{TenantID: tenantID, Deleted: &notDeleted, CreatedFrom: thisStart})
	if err != nil {
		return Metric{}, err
	}
	lastMonth, err := s.personnelRepo.Count(ctx, domain.PersonnelCountFilter{TenantID: tenantID, Deleted: &notDeleted, CreatedFrom: lastStart, CreatedTo: thisStart})
	if err != nil {
		return Metric{}, err
	}
	return newMetric(total, thisMonth, lastMonth), nil
}

// monthBounds returns the start of the current month and of the previous one.
func (s *AnalyticsService) monthBounds() (time.Time, time.Time) {
	now := s.now()
	thisStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	lastStart := thisStart.AddDate(0, -1, 0)
	return thisStart, lastStart
}

// newMetric computes the month-over-month movement. A jump from zero reads
// as 100%.
func newMetric(total, thisMonth, lastMonth int) Metric {
	var pct float64
	switch {
	case lastMonth > 0:
		pct = float64(thisMonth-lastMonth) / float64(lastMonth) * 100
	case thisMonth > 0:
		pct = 100
	}
	return Metric{Total: total, ThisMonth: thisMonth, LastMonth: lastMonth, ChangePct: pct}
}

// cacheGet loads a cached analytics view. Any cache trouble is recorded on
// the breaker and treated as a miss.
func (s *AnalyticsService) cacheGet(ctx context.Context, key string, out any) bool {
	if s.cache == nil || !featureflags.Enabled(analyticsCacheFlag) || !s.breaker.AllowRequest() {
		return false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !redis.IsNil(err) {
			s.breaker.RecordFailure()
		}
		return false
	}
	s.breaker.RecordSuccess()
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false
	}
	return true
}

func (s *AnalyticsService) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil || !featureflags.Enabled(analyticsCacheFlag) || !s.breaker.AllowRequest() {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, analyticsCacheTTL); err != nil {
		s.breaker.RecordFailure()
		s.logger.Warn("analytics cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	s.breaker.RecordSuccess()
}
