package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/aRFialho/AvanTracking/internal/broker/messages"
	"github.com/aRFialho/AvanTracking/internal/cache"
	"github.com/aRFialho/AvanTracking/internal/models"
	"github.com/aRFialho/AvanTracking/internal/services/reconcile"
	"github.com/aRFialho/AvanTracking/internal/services/stats"
)

var ErrNotFound = errors.New("order not found")

type Repository interface {
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ListOrders(ctx context.Context) ([]*models.Order, error)
	ListOrderEvents(ctx context.Context, orderID uint64, limit, offset int) ([]*models.TrackingEvent, error)
}

type Reconciler interface {
	SyncOrder(ctx context.Context, orderNumber string) (reconcile.Outcome, error)
}

type Service struct {
	repo       Repository
	reconciler Reconciler
	cache      cache.BytesCache
	currentTTL time.Duration
	now        func() time.Time
}

func New(repo Repository, r Reconciler, c cache.BytesCache, currentTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		reconciler: r,
		cache:      c,
		currentTTL: currentTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// refresh recomputes the delay flag at read time. The stored flag goes stale
// between syncs the moment an estimate date passes.
func (s *Service) refresh(o *models.Order) *models.Order {
	o.IsDelayed = models.ComputeDelayed(o.Status, o.EstimatedDeliveryDate, s.now())
	return o
}

// GetOrder returns one order by business key, cache first. Cache is best
// effort: a miss or a broken entry falls through to storage.
func (s *Service) GetOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	if orderNumber == "" {
		return nil, errors.New("orderNumber is required")
	}

	if s.cache != nil && s.currentTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, currentKey(orderNumber)); err == nil && ok {
			var o models.Order
			if json.Unmarshal(b, &o) == nil {
				return s.refresh(&o), nil
			}
		}
	}

	o, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrNotFound
	}

	if s.cache != nil && s.currentTTL > 0 {
		if b, err := json.Marshal(o); err == nil {
			_ = s.cache.Set(ctx, currentKey(orderNumber), b, s.currentTTL)
		}
	}
	return s.refresh(o), nil
}

func (s *Service) ListOrders(ctx context.Context) ([]*models.Order, error) {
	list, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range list {
		s.refresh(o)
	}
	return list, nil
}

func (s *Service) ListOrderEvents(ctx context.Context, orderNumber string, limit, offset int) ([]*models.TrackingEvent, error) {
	o, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrNotFound
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListOrderEvents(ctx, o.ID, limit, offset)
}

const dashboardKey = "dashboard:current"

func (s *Service) Dashboard(ctx context.Context) (stats.Dashboard, error) {
	if s.cache != nil && s.currentTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, dashboardKey); err == nil && ok {
			var d stats.Dashboard
			if json.Unmarshal(b, &d) == nil {
				return d, nil
			}
		}
	}

	list, err := s.repo.ListOrders(ctx)
	if err != nil {
		return stats.Dashboard{}, err
	}
	d := stats.BuildDashboard(list, s.now())

	if s.cache != nil && s.currentTTL > 0 {
		if b, err := json.Marshal(d); err == nil {
			_ = s.cache.Set(ctx, dashboardKey, b, s.currentTTL)
		}
	}
	return d, nil
}

func (s *Service) Alerts(ctx context.Context) ([]stats.RiskOrder, error) {
	list, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range list {
		s.refresh(o)
	}
	return stats.RiskOrders(list, s.now()), nil
}

func (s *Service) CarrierRanking(ctx context.Context) ([]stats.CarrierStats, error) {
	list, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	return stats.CarrierRanking(list), nil
}

// SyncOne reconciles a single order on demand and drops its cache entries.
// A provider failure is not an HTTP-level error: the outcome says what
// happened and the caller decides how to present it.
func (s *Service) SyncOne(ctx context.Context, orderNumber string) (reconcile.Outcome, error) {
	if orderNumber == "" {
		return reconcile.Outcome{}, errors.New("orderNumber is required")
	}
	out, err := s.reconciler.SyncOrder(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, reconcile.ErrOrderNotFound) {
			return reconcile.Outcome{}, ErrNotFound
		}
		return reconcile.Outcome{}, err
	}
	s.invalidate(ctx, orderNumber)
	return out, nil
}

// ApplyOrderSynced handles one broker message from the sync worker. The
// cached entry is reloaded from storage so subsequent reads see the merge.
func (s *Service) ApplyOrderSynced(ctx context.Context, msg messages.OrderSynced) error {
	if msg.OrderNumber == "" {
		return errors.New("order_number is required")
	}
	s.invalidate(ctx, msg.OrderNumber)

	if s.cache != nil && s.currentTTL > 0 {
		o, err := s.repo.FindByOrderNumber(ctx, msg.OrderNumber)
		if err == nil && o != nil {
			if b, err := json.Marshal(o); err == nil {
				_ = s.cache.Set(ctx, currentKey(msg.OrderNumber), b, s.currentTTL)
			}
		}
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, orderNumber string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, currentKey(orderNumber), dashboardKey)
}

func currentKey(orderNumber string) string {
	return fmt.Sprintf("order:%s:current", orderNumber)
}
