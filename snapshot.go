package orderbook

import "fmt"

// OrderState is the serializable state of a resting order.
type OrderState struct {
	ID        OrderID   `json:"id"`
	Side      Side      `json:"side"`
	Price     Price     `json:"price"`
	Quantity  Quantity  `json:"quantity"` // Remaining quantity
	EntryTime Timestamp `json:"entry_time"`
	EventTime Timestamp `json:"event_time"`
}

// OrderBookSnapshot contains the full state of a single OrderBook.
type OrderBookSnapshot struct {
	SchemaVersion int           `json:"schema_version"`
	Version       string        `json:"version"` // Library version that wrote the snapshot
	MarketID      string        `json:"market_id"`
	SeqID         uint64        `json:"seq_id"` // Sequence ID of the last BookLog included
	Bids          []*OrderState `json:"bids"`   // Best price first, time priority within a price
	Asks          []*OrderState `json:"asks"`   // Best price first, time priority within a price
}

// Snapshot copies every resting order in priority order.
func (book *OrderBook) Snapshot() *OrderBookSnapshot {
	book.mu.RLock()
	defer book.mu.RUnlock()

	return &OrderBookSnapshot{
		SchemaVersion: SnapshotSchemaVersion,
		Version:       Version,
		MarketID:      book.marketID,
		SeqID:         book.seqID.Load(),
		Bids:          book.bids.snapshot(),
		Asks:          book.asks.snapshot(),
	}
}

func (s *bookSide) snapshot() []*OrderState {
	states := make([]*OrderState, 0, s.orders)
	s.walk(func(level *PriceLevel) bool {
		for _, o := range level.orders() {
			states = append(states, &OrderState{
				ID:        o.ID,
				Side:      o.Side,
				Price:     o.Price,
				Quantity:  o.quantity,
				EntryTime: o.EntryTime,
				EventTime: o.EventTime,
			})
		}
		return true
	})
	return states
}

// Restore loads snap into an empty book without publishing logs.
// A snapshot that names a different market is rejected; an empty MarketID is accepted.
// The sequence ID continues from snap.SeqID.
func (book *OrderBook) Restore(snap *OrderBookSnapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidParam)
	}
	if snap.SchemaVersion != SnapshotSchemaVersion {
		return fmt.Errorf("%w: snapshot schema %d, want %d", ErrInvalidParam, snap.SchemaVersion, SnapshotSchemaVersion)
	}

	if snap.MarketID != "" && snap.MarketID != book.marketID {
		return fmt.Errorf("%w: snapshot of market %s cannot restore into %s", ErrInvalidParam, snap.MarketID, book.marketID)
	}

	book.mu.Lock()
	defer book.mu.Unlock()

	if len(book.orders) > 0 {
		return fmt.Errorf("%w: restore into a non-empty book", ErrInvalidParam)
	}

	for _, states := range [][]*OrderState{snap.Bids, snap.Asks} {
		for _, st := range states {
			if !st.Side.Valid() {
				book.reset()
				return fmt.Errorf("%w: order %d has invalid side %d", ErrInvalidParam, st.ID, st.Side)
			}
			if _, exists := book.orders[st.ID]; exists {
				book.reset()
				return fmt.Errorf("%w: %d", ErrDuplicateID, st.ID)
			}
			book.insertOrder(NewOrder(st.ID, st.Side, st.Quantity, st.Price, st.EntryTime, st.EventTime))
		}
	}

	book.seqID.Store(snap.SeqID)
	logger.Info("order book restored", "market_id", book.marketID, "seq_id", snap.SeqID, "orders", len(book.orders))
	return nil
}

// reset drops every order and level. The caller holds the write lock.
func (book *OrderBook) reset() {
	book.bids = newBookSide(Buy, book.bids.tree.Capacity())
	book.asks = newBookSide(Sell, book.asks.tree.Capacity())
	book.orders = make(map[OrderID]*Order)
	book.metrics.setSide(book.marketID, Buy, 0, 0)
	book.metrics.setSide(book.marketID, Sell, 0, 0)
}
