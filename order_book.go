package orderbook

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/0x5487/orderbook/structure"
	"github.com/rs/xid"
)

type DepthItem struct {
	Price Price    `json:"price"`
	Size  Quantity `json:"size"`
	Count int64    `json:"count"`
}

// Depth represents the state of the order book depth, best price first on both sides.
type Depth struct {
	UpdateID uint64       `json:"update_id"`
	Asks     []*DepthItem `json:"asks"`
	Bids     []*DepthItem `json:"bids"`
}

// BookStats contains statistics about both sides of the book.
type BookStats struct {
	AskDepthCount int64 `json:"ask_depth_count"`
	AskOrderCount int64 `json:"ask_order_count"`
	BidDepthCount int64 `json:"bid_depth_count"`
	BidOrderCount int64 `json:"bid_order_count"`
}

// Option customizes an OrderBook.
type Option func(*OrderBook)

// WithMetrics reports book activity to m.
func WithMetrics(m *Metrics) Option {
	return func(book *OrderBook) {
		book.metrics = m
	}
}

// bookSide is one side of the book: a price tree and a price index over the same levels.
type bookSide struct {
	side   Side
	tree   *structure.PriceTree[*PriceLevel]
	levels map[Price]*PriceLevel
	best   *PriceLevel
	orders int64
}

func newBookSide(side Side, capacity int32) *bookSide {
	// Bids are replaced by their predecessor, asks by their successor.
	replacement := structure.Successor
	if side == Buy {
		replacement = structure.Predecessor
	}
	return &bookSide{
		side:   side,
		tree:   structure.NewPriceTree[*PriceLevel](capacity, replacement),
		levels: make(map[Price]*PriceLevel),
	}
}

// extremum returns the inside level: the highest bid or the lowest ask.
func (s *bookSide) extremum() *PriceLevel {
	var h int32
	if s.side == Buy {
		h = s.tree.Max()
	} else {
		h = s.tree.Min()
	}
	if h == structure.NullIndex {
		return nil
	}
	return s.tree.Value(h)
}

// better reports whether price improves on the cached inside level.
func (s *bookSide) better(price Price) bool {
	if s.best == nil {
		return true
	}
	if s.side == Buy {
		return price > s.best.price
	}
	return price < s.best.price
}

// walk visits levels best price first until fn returns false.
func (s *bookSide) walk(fn func(level *PriceLevel) bool) {
	visit := func(h int32) bool {
		return fn(s.tree.Value(h))
	}
	if s.side == Buy {
		s.tree.Descend(visit)
	} else {
		s.tree.Ascend(visit)
	}
}

// OrderBook indexes the resting orders of a single instrument.
//
// A readers-writer lock guards the trees and indices; every PriceLevel also has
// its own mutex for its queue and aggregates. Locks are always taken book first,
// level second, and never on two levels at once.
type OrderBook struct {
	mu sync.RWMutex

	marketID   string
	priceScale int32
	seqID      atomic.Uint64 // Sequence ID of the last published BookLog

	bids   *bookSide
	asks   *bookSide
	orders map[OrderID]*Order

	publisher PublishLog
	metrics   *Metrics
}

// NewOrderBook creates a new order book instance.
// A nil cfg uses DefaultConfig and a nil publisher discards logs.
// cfg is validated with Config.Validate.
func NewOrderBook(cfg *Config, publisher PublishLog, opts ...Option) (*OrderBook, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if publisher == nil {
		publisher = NewDiscardPublishLog()
	}

	marketID := cfg.MarketID
	if len(marketID) == 0 {
		marketID = xid.New().String()
	}

	capacity := cfg.LevelCapacity

	book := &OrderBook{
		marketID:   marketID,
		priceScale: cfg.PriceScale,
		bids:       newBookSide(Buy, capacity),
		asks:       newBookSide(Sell, capacity),
		orders:     make(map[OrderID]*Order),
		publisher:  publisher,
	}
	for _, opt := range opts {
		opt(book)
	}
	return book, nil
}

// MarketID returns the market this book belongs to.
func (book *OrderBook) MarketID() string {
	return book.marketID
}

// SeqID returns the sequence ID of the last published BookLog.
func (book *OrderBook) SeqID() uint64 {
	return book.seqID.Load()
}

func (book *OrderBook) sideOf(side Side) *bookSide {
	if side == Buy {
		return book.bids
	}
	return book.asks
}

// AddOrder rests order in the book. The book takes ownership of order;
// the caller must not modify it afterwards.
func (book *OrderBook) AddOrder(order *Order) error {
	if order == nil {
		book.metrics.orderRejected(book.marketID, rejectInvalidParam)
		return fmt.Errorf("%w: nil order", ErrInvalidParam)
	}
	if !order.Side.Valid() {
		book.metrics.orderRejected(book.marketID, rejectInvalidParam)
		return fmt.Errorf("%w: order %d has invalid side %d", ErrInvalidParam, order.ID, order.Side)
	}
	if order.level != nil {
		book.metrics.orderRejected(book.marketID, rejectInvalidParam)
		return fmt.Errorf("%w: order %d is already resting", ErrInvalidParam, order.ID)
	}

	book.mu.Lock()
	defer book.mu.Unlock()

	if _, exists := book.orders[order.ID]; exists {
		logger.Warn("duplicate order id rejected", "market_id", book.marketID, "order_id", order.ID)
		book.metrics.orderRejected(book.marketID, rejectDuplicateID)
		return fmt.Errorf("%w: %d", ErrDuplicateID, order.ID)
	}

	book.insertOrder(order)

	log := newOpenLog(book.seqID.Add(1), book.marketID, order)
	book.publish(log)
	book.metrics.orderAdded(book.marketID)
	return nil
}

// insertOrder links order into its level and the id index. The caller holds the write lock.
func (book *OrderBook) insertOrder(order *Order) {
	side := book.sideOf(order.Side)

	level := book.getOrCreateLevel(side, order.Price)
	if err := level.Append(order); err != nil {
		invariantViolation("append to level failed", "order_id", order.ID, "error", err)
	}
	book.orders[order.ID] = order
	side.orders++

	// A new level can only become the inside if it improves on the cached one.
	if side.better(order.Price) {
		side.best = level
	}
	book.metrics.setSide(book.marketID, side.side, side.orders, side.tree.Count())
}

func (book *OrderBook) getOrCreateLevel(side *bookSide, price Price) *PriceLevel {
	if level, ok := side.levels[price]; ok {
		return level
	}

	level := newPriceLevel(side.side, price)
	h, inserted := side.tree.Insert(int64(price), level)
	if !inserted {
		invariantViolation("price present in tree but missing from index", "side", side.side.String(), "price", price)
	}
	level.node = h
	side.levels[price] = level

	logger.Debug("price level created", "market_id", book.marketID, "side", side.side.String(), "price", price)
	return level
}

// CancelOrder removes the order from the book.
func (book *OrderBook) CancelOrder(id OrderID) error {
	book.mu.Lock()
	defer book.mu.Unlock()

	order, ok := book.orders[id]
	if !ok {
		book.metrics.orderRejected(book.marketID, rejectNotFound)
		return fmt.Errorf("%w: order %d", ErrNotFound, id)
	}

	removed := order.quantity
	book.removeOrder(order)

	log := newCancelLog(book.seqID.Add(1), book.marketID, order, removed)
	book.publish(log)
	book.metrics.orderCanceled(book.marketID)
	return nil
}

// ExecuteOrder applies an execution of quantity against a resting order.
// A quantity at or above the remaining size removes the order, exactly like a
// cancellation; a smaller quantity shrinks it in place and keeps its queue position.
func (book *OrderBook) ExecuteOrder(id OrderID, quantity Quantity) error {
	book.mu.Lock()
	defer book.mu.Unlock()

	order, ok := book.orders[id]
	if !ok {
		book.metrics.orderRejected(book.marketID, rejectNotFound)
		return fmt.Errorf("%w: order %d", ErrNotFound, id)
	}

	var executed Quantity
	fill := fillPartial

	if quantity >= order.quantity {
		executed = order.quantity
		book.removeOrder(order)
		order.quantity = 0
		fill = fillFull
	} else {
		var err error
		executed, err = order.level.ApplyPartialReduction(order, quantity)
		if err != nil {
			invariantViolation("partial execution on foreign level", "order_id", id, "error", err)
		}
	}

	log := newExecuteLog(book.seqID.Add(1), book.marketID, order, executed, book.priceScale)
	book.publish(log)
	book.metrics.orderExecuted(book.marketID, fill)
	return nil
}

// removeOrder unlinks order from its level and the id index, collapsing the level
// if it becomes empty. The caller holds the write lock; this never locks the book.
func (book *OrderBook) removeOrder(order *Order) {
	level := order.level
	if level == nil {
		invariantViolation("indexed order has no level", "order_id", order.ID)
	}
	side := book.sideOf(order.Side)

	if err := level.Detach(order); err != nil {
		invariantViolation("detach from level failed", "order_id", order.ID, "error", err)
	}
	delete(book.orders, order.ID)
	side.orders--

	if level.OrderCount() == 0 {
		book.removeLevel(side, level)
	}
	book.metrics.setSide(book.marketID, side.side, side.orders, side.tree.Count())
}

// removeLevel deletes an empty level from the price index and the tree and
// refreshes the inside cache.
func (book *OrderBook) removeLevel(side *bookSide, level *PriceLevel) {
	if level.node == structure.NullIndex {
		invariantViolation("level is not linked into the tree", "side", side.side.String(), "price", level.price)
	}

	delete(side.levels, level.price)
	side.tree.Delete(level.node)
	level.node = structure.NullIndex

	if side.best == level {
		side.best = side.extremum()
	}

	logger.Debug("price level removed", "market_id", book.marketID, "side", side.side.String(), "price", level.price)
}

func (book *OrderBook) publish(log *BookLog) {
	book.publisher.Publish(log)
	releaseBookLog(log)
}

// BestBid returns the highest resting buy price.
func (book *OrderBook) BestBid() (Price, bool) {
	book.mu.RLock()
	defer book.mu.RUnlock()

	if book.bids.best == nil {
		return 0, false
	}
	return book.bids.best.price, true
}

// BestAsk returns the lowest resting sell price.
func (book *OrderBook) BestAsk() (Price, bool) {
	book.mu.RLock()
	defer book.mu.RUnlock()

	if book.asks.best == nil {
		return 0, false
	}
	return book.asks.best.price, true
}

// BidVolume returns the total volume resting at the best bid.
func (book *OrderBook) BidVolume() (Quantity, bool) {
	book.mu.RLock()
	defer book.mu.RUnlock()

	if book.bids.best == nil {
		return 0, false
	}
	return book.bids.best.TotalVolume(), true
}

// AskVolume returns the total volume resting at the best ask.
func (book *OrderBook) AskVolume() (Quantity, bool) {
	book.mu.RLock()
	defer book.mu.RUnlock()

	if book.asks.best == nil {
		return 0, false
	}
	return book.asks.best.TotalVolume(), true
}

// VolumeAtLevel returns the total volume resting at price on side.
func (book *OrderBook) VolumeAtLevel(price Price, side Side) (Quantity, bool) {
	if !side.Valid() {
		return 0, false
	}

	book.mu.RLock()
	defer book.mu.RUnlock()

	level, ok := book.sideOf(side).levels[price]
	if !ok {
		return 0, false
	}
	return level.TotalVolume(), true
}

// FindOrder returns a copy of the resting order with the given id.
func (book *OrderBook) FindOrder(id OrderID) (Order, bool) {
	book.mu.RLock()
	defer book.mu.RUnlock()

	order, ok := book.orders[id]
	if !ok {
		return Order{}, false
	}
	return order.clone(), true
}

// Orders returns copies of the orders resting at price on side, in time priority.
// It returns nil if no such level exists.
func (book *OrderBook) Orders(side Side, price Price) []Order {
	if !side.Valid() {
		return nil
	}

	book.mu.RLock()
	defer book.mu.RUnlock()

	level, ok := book.sideOf(side).levels[price]
	if !ok {
		return nil
	}
	return level.orders()
}

// IsEmpty reports whether no order rests in the book.
func (book *OrderBook) IsEmpty() bool {
	book.mu.RLock()
	defer book.mu.RUnlock()
	return len(book.orders) == 0
}

// OrderCount returns the number of resting orders on both sides.
func (book *OrderBook) OrderCount() int {
	book.mu.RLock()
	defer book.mu.RUnlock()
	return len(book.orders)
}

// Depth returns the current depth of the order book up to the specified limit.
func (book *OrderBook) Depth(limit uint32) (*Depth, error) {
	if limit == 0 {
		return nil, ErrInvalidParam
	}

	book.mu.RLock()
	defer book.mu.RUnlock()

	return &Depth{
		UpdateID: book.seqID.Load(),
		Asks:     book.asks.depth(limit),
		Bids:     book.bids.depth(limit),
	}, nil
}

func (s *bookSide) depth(limit uint32) []*DepthItem {
	result := make([]*DepthItem, 0, min(limit, uint32(s.tree.Count())))
	s.walk(func(level *PriceLevel) bool {
		result = append(result, level.depthItem())
		return uint32(len(result)) < limit
	})
	return result
}

// Stats returns usage statistics for the order book.
func (book *OrderBook) Stats() BookStats {
	book.mu.RLock()
	defer book.mu.RUnlock()

	return BookStats{
		AskDepthCount: int64(book.asks.tree.Count()),
		AskOrderCount: book.asks.orders,
		BidDepthCount: int64(book.bids.tree.Count()),
		BidOrderCount: book.bids.orders,
	}
}
