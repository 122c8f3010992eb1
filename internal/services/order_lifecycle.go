package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/adaptifi/swapcore/internal/config"
	"github.com/adaptifi/swapcore/internal/models"
	"github.com/adaptifi/swapcore/internal/timeseries"
)

// OrderStore persists orders and their audit trail. Persistence is
// best-effort: failures are logged and never fail the operation.
type OrderStore interface {
	InsertOrder(ctx context.Context, order *models.Order) error
	UpdateOrder(ctx context.Context, order *models.Order) error
	AppendSlippageHistory(ctx context.Context, orderID string, entry models.SlippageHistoryEntry) error
}

// OrderLifecycleManager owns the order state machine. Every mutating
// operation serializes on the order's own lock; operations on different
// orders proceed in parallel.
type OrderLifecycleManager struct {
	cfg        config.OrdersConfig
	logger     *logrus.Logger
	calculator *SlippageCalculator
	aggregator *VolatilityAggregator
	optimizer  *SlippageOptimizer
	ledger     Ledger
	venue      MatchingVenue
	store      OrderStore

	now func() time.Time

	mu         sync.RWMutex
	orders     map[string]*orderEntry
	userOrders map[string][]string
	orderCount int64
}

type orderEntry struct {
	mu      sync.Mutex
	order   *models.Order
	history *timeseries.Ring[models.SlippageHistoryEntry]
}

func NewOrderLifecycleManager(
	cfg config.OrdersConfig,
	calculator *SlippageCalculator,
	aggregator *VolatilityAggregator,
	optimizer *SlippageOptimizer,
	ledger Ledger,
	venue MatchingVenue,
	store OrderStore,
	logger *logrus.Logger,
) *OrderLifecycleManager {
	return &OrderLifecycleManager{
		cfg:        cfg,
		logger:     logger,
		calculator: calculator,
		aggregator: aggregator,
		optimizer:  optimizer,
		ledger:     ledger,
		venue:      venue,
		store:      store,
		now:        time.Now,
		orders:     make(map[string]*orderEntry),
		userOrders: make(map[string][]string),
	}
}

// CreateOrder validates the request, computes initial slippage, locks the
// input amount and registers the order with the external venue. Venue
// registration is best-effort; a failed submission leaves the order active
// with no handle.
func (m *OrderLifecycleManager) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	if req.Owner == "" {
		return nil, ErrInvalidOwner
	}
	if req.AssetIn == "" || req.AssetOut == "" {
		return nil, ErrUnknownAsset
	}
	if req.AmountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.BasePrice.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}

	slippage, err := m.calculator.CalculateSlippage(ctx, req.AssetIn, req.AssetOut, req.AmountIn.IntPart())
	if err != nil {
		return nil, err
	}

	if err := m.ledger.Lock(ctx, req.Owner, req.AssetIn, req.AmountIn); err != nil {
		return nil, err
	}

	now := m.now()
	order := &models.Order{
		ID:                      uuid.New().String(),
		Owner:                   req.Owner,
		AssetIn:                 req.AssetIn,
		AssetOut:                req.AssetOut,
		AmountIn:                req.AmountIn,
		BasePrice:               req.BasePrice,
		CurrentSlippageBps:      slippage,
		MaxSlippageDeviationBps: req.MaxSlippageDeviationBps,
		TargetChainID:           req.TargetChainID,
		State:                   models.OrderStateActive,
		CreatedAt:               now,
		LastSlippageUpdateAt:    now,
	}

	if handle, err := m.venue.Submit(ctx, order); err != nil {
		m.logger.WithError(err).WithField("order_id", order.ID).Warn("Venue registration failed")
	} else {
		order.ExternalOrderHandle = handle
	}

	metrics := m.aggregator.GetVolatility(req.AssetIn, req.AssetOut)
	entry := &orderEntry{
		order:   order,
		history: timeseries.NewRing[models.SlippageHistoryEntry](m.cfg.HistoryCapacity),
	}
	entry.history.Append(models.SlippageHistoryEntry{
		Timestamp:       now,
		SlippageBps:     slippage,
		VolatilityScore: metrics.CompositeScore,
		BridgeDelaySec:  EstimateBridgeDelay(order.TargetChainID),
	})

	m.mu.Lock()
	m.orders[order.ID] = entry
	m.userOrders[order.Owner] = append(m.userOrders[order.Owner], order.ID)
	m.orderCount++
	m.mu.Unlock()

	m.persistInsert(ctx, order)

	m.logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"owner":        order.Owner,
		"asset_in":     order.AssetIn,
		"asset_out":    order.AssetOut,
		"slippage_bps": slippage,
	}).Info("Order created")
	return m.copyOrder(entry), nil
}

// UpdateOrderSlippage refreshes an active order's slippage. The refresh is
// rate-limited and the change, not just the value, is clamped to the order's
// per-refresh deviation budget.
func (m *OrderLifecycleManager) UpdateOrderSlippage(ctx context.Context, orderID string) (*models.Order, error) {
	entry, err := m.entry(orderID)
	if err != nil {
		return nil, err
	}

	// External reads complete before the order mutates.
	target, err := m.calculator.CalculateSlippage(ctx, entry.orderAssetIn(), entry.orderAssetOut(), entry.orderSize())
	if err != nil {
		return nil, err
	}
	metrics := m.aggregator.GetVolatility(entry.orderAssetIn(), entry.orderAssetOut())

	entry.mu.Lock()
	defer entry.mu.Unlock()
	order := entry.order

	if order.State.Terminal() {
		return nil, ErrOrderTerminal
	}
	if order.State != models.OrderStateActive {
		return nil, ErrOrderNotActive
	}
	now := m.now()
	if now.Sub(order.LastSlippageUpdateAt) < time.Duration(m.cfg.RefreshIntervalSec)*time.Second {
		return nil, ErrRefreshTooSoon
	}

	old := order.CurrentSlippageBps
	order.CurrentSlippageBps = clampDelta(old, target, order.MaxSlippageDeviationBps)
	order.LastSlippageUpdateAt = now

	historyEntry := models.SlippageHistoryEntry{
		Timestamp:       now,
		SlippageBps:     order.CurrentSlippageBps,
		VolatilityScore: metrics.CompositeScore,
		BridgeDelaySec:  EstimateBridgeDelay(order.TargetChainID),
	}
	entry.history.Append(historyEntry)

	m.persistUpdate(ctx, order)
	m.persistHistory(ctx, order.ID, historyEntry)

	m.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"old_bps":  old,
		"new_bps":  order.CurrentSlippageBps,
		"target":   target,
	}).Info("Order slippage refreshed")
	return copyOf(order), nil
}

// RetryFailedOrder escalates slippage after a failed fill. Only the owner or
// an administrator may retry; the step grows with the attempt count and is
// deliberately exempt from the per-refresh deviation clamp.
func (m *OrderLifecycleManager) RetryFailedOrder(ctx context.Context, orderID, caller string, isAdmin bool) (*models.Order, error) {
	entry, err := m.entry(orderID)
	if err != nil {
		return nil, err
	}
	metrics := m.aggregator.GetVolatility(entry.orderAssetIn(), entry.orderAssetOut())

	entry.mu.Lock()
	defer entry.mu.Unlock()
	order := entry.order

	if order.Owner != caller && !isAdmin {
		return nil, ErrNotAuthorized
	}
	if order.State.Terminal() {
		return nil, ErrOrderTerminal
	}
	if order.FillAttempts >= m.cfg.FillAttemptLimit {
		return nil, ErrAttemptLimit
	}

	failedSlippage := order.CurrentSlippageBps
	order.FillAttempts++
	order.State = models.OrderStateRetrying

	retrySlippage := order.CurrentSlippageBps + order.FillAttempts*m.cfg.RetryStepBps
	if retrySlippage > m.cfg.SafetyCeilingBps {
		retrySlippage = m.cfg.SafetyCeilingBps
	}
	order.CurrentSlippageBps = retrySlippage
	order.State = models.OrderStateActive

	now := m.now()
	entry.history.Append(models.SlippageHistoryEntry{
		Timestamp:       now,
		SlippageBps:     retrySlippage,
		VolatilityScore: metrics.CompositeScore,
		BridgeDelaySec:  EstimateBridgeDelay(order.TargetChainID),
	})

	// A retry is a failure outcome for the slippage that was in force.
	m.optimizer.RecordPerformance(ctx, order.AssetIn, order.AssetOut, failedSlippage, failedSlippage, false, metrics.CompositeScore, order.AmountIn.IntPart())

	m.persistUpdate(ctx, order)

	m.logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"attempts":     order.FillAttempts,
		"slippage_bps": retrySlippage,
	}).Info("Order retry with escalated slippage")
	return copyOf(order), nil
}

// CancelOrder refunds the locked input amount and best-effort cancels the
// venue registration. Owner only, non-terminal states only.
func (m *OrderLifecycleManager) CancelOrder(ctx context.Context, orderID, caller string) error {
	entry, err := m.entry(orderID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	order := entry.order

	if order.Owner != caller {
		return ErrNotAuthorized
	}
	if order.State.Terminal() {
		return ErrOrderTerminal
	}

	if order.ExternalOrderHandle != "" {
		if err := m.venue.Cancel(ctx, order.ExternalOrderHandle); err != nil {
			m.logger.WithError(err).WithField("order_id", order.ID).Warn("Venue cancellation failed")
		}
	}
	if err := m.ledger.Refund(ctx, order.Owner, order.AssetIn, order.AmountIn); err != nil {
		return err
	}

	order.State = models.OrderStateCancelled
	m.persistUpdate(ctx, order)
	m.logger.WithField("order_id", order.ID).Info("Order cancelled")
	return nil
}

// ExpireOrder moves an order past its maximum age into the expired state and
// refunds the locked input amount. Any caller may trigger it; the age check
// makes it safe.
func (m *OrderLifecycleManager) ExpireOrder(ctx context.Context, orderID string) error {
	entry, err := m.entry(orderID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	order := entry.order

	if order.State.Terminal() {
		return ErrOrderTerminal
	}
	if m.now().Sub(order.CreatedAt) <= time.Duration(m.cfg.MaxOrderAgeSec)*time.Second {
		return ErrOrderNotExpired
	}

	if order.ExternalOrderHandle != "" {
		if err := m.venue.Cancel(ctx, order.ExternalOrderHandle); err != nil {
			m.logger.WithError(err).WithField("order_id", order.ID).Warn("Venue cancellation failed")
		}
	}
	if err := m.ledger.Refund(ctx, order.Owner, order.AssetIn, order.AmountIn); err != nil {
		return err
	}

	order.State = models.OrderStateExpired
	m.persistUpdate(ctx, order)
	m.logger.WithField("order_id", order.ID).Info("Order expired")
	return nil
}

// MarkOrderFilled records a successful fill reported by the venue or relay
// and feeds the outcome back into the optimizer.
func (m *OrderLifecycleManager) MarkOrderFilled(ctx context.Context, orderID string, actualSlippageBps int64) error {
	entry, err := m.entry(orderID)
	if err != nil {
		return err
	}
	metrics := m.aggregator.GetVolatility(entry.orderAssetIn(), entry.orderAssetOut())

	entry.mu.Lock()
	defer entry.mu.Unlock()
	order := entry.order

	if order.State.Terminal() {
		return ErrOrderTerminal
	}

	m.optimizer.RecordPerformance(ctx, order.AssetIn, order.AssetOut, order.CurrentSlippageBps, actualSlippageBps, true, metrics.CompositeScore, order.AmountIn.IntPart())

	order.State = models.OrderStateFilled
	m.persistUpdate(ctx, order)
	m.logger.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"actual_bps": actualSlippageBps,
	}).Info("Order filled")
	return nil
}

// IsOrderFillable is a pure read over the stored order fields.
func (m *OrderLifecycleManager) IsOrderFillable(orderID string) (bool, error) {
	entry, err := m.entry(orderID)
	if err != nil {
		return false, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	order := entry.order
	now := m.now()

	fillable := order.State == models.OrderStateActive &&
		order.FillAttempts < m.cfg.FillAttemptLimit &&
		order.CurrentSlippageBps <= m.cfg.SafetyCeilingBps &&
		now.Sub(order.CreatedAt) <= time.Duration(m.cfg.MaxOrderAgeSec)*time.Second &&
		now.Sub(order.LastSlippageUpdateAt) <= time.Duration(m.cfg.SlippageStaleSec)*time.Second
	return fillable, nil
}

// MinAcceptableOut computes the single value exposed to the matching venue:
// expectedOut minus the slippage allowance. It recomputes identically on
// every call from the stored fields.
func (m *OrderLifecycleManager) MinAcceptableOut(orderID string) (decimal.Decimal, error) {
	entry, err := m.entry(orderID)
	if err != nil {
		return decimal.Zero, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	order := entry.order

	expectedOut := order.AmountIn.Mul(order.BasePrice)
	allowance := expectedOut.Mul(decimal.NewFromInt(order.CurrentSlippageBps)).Div(decimal.NewFromInt(10000))
	return expectedOut.Sub(allowance), nil
}

// GetOrder returns a copy of the order.
func (m *OrderLifecycleManager) GetOrder(orderID string) (*models.Order, error) {
	entry, err := m.entry(orderID)
	if err != nil {
		return nil, err
	}
	return m.copyOrder(entry), nil
}

// GetUserOrders returns the ids of every order the user ever created.
func (m *OrderLifecycleManager) GetUserOrders(owner string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.userOrders[owner]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// SlippageHistory returns the order's slippage change log, oldest first.
func (m *OrderLifecycleManager) SlippageHistory(orderID string) ([]models.SlippageHistoryEntry, error) {
	entry, err := m.entry(orderID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.history.Snapshot(), nil
}

// OrderCount returns the number of orders ever created.
func (m *OrderLifecycleManager) OrderCount() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orderCount
}

func (m *OrderLifecycleManager) entry(orderID string) (*orderEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return entry, nil
}

func (m *OrderLifecycleManager) copyOrder(entry *orderEntry) *models.Order {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return copyOf(entry.order)
}

func copyOf(order *models.Order) *models.Order {
	clone := *order
	return &clone
}

func (e *orderEntry) orderAssetIn() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order.AssetIn
}

func (e *orderEntry) orderAssetOut() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order.AssetOut
}

func (e *orderEntry) orderSize() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order.AmountIn.IntPart()
}

func (m *OrderLifecycleManager) persistInsert(ctx context.Context, order *models.Order) {
	if m.store == nil {
		return
	}
	if err := m.store.InsertOrder(ctx, order); err != nil {
		m.logger.WithError(err).WithField("order_id", order.ID).Warn("Order persistence failed")
	}
}

func (m *OrderLifecycleManager) persistUpdate(ctx context.Context, order *models.Order) {
	if m.store == nil {
		return
	}
	if err := m.store.UpdateOrder(ctx, order); err != nil {
		m.logger.WithError(err).WithField("order_id", order.ID).Warn("Order persistence failed")
	}
}

func (m *OrderLifecycleManager) persistHistory(ctx context.Context, orderID string, entry models.SlippageHistoryEntry) {
	if m.store == nil {
		return
	}
	if err := m.store.AppendSlippageHistory(ctx, orderID, entry); err != nil {
		m.logger.WithError(err).WithField("order_id", orderID).Warn("Slippage history persistence failed")
	}
}

// clampDelta moves current toward target by at most maxDelta per step. A
// zero budget freezes the slippage in place.
func clampDelta(current, target, maxDelta int64) int64 {
	if maxDelta < 0 {
		maxDelta = 0
	}
	delta := target - current
	if delta > maxDelta {
		return current + maxDelta
	}
	if delta < -maxDelta {
		return current - maxDelta
	}
	return target
}
