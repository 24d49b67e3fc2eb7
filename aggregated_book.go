package orderbook

import (
	"fmt"

	"github.com/igrmk/treemap/v2"
)

type aggregatedLevel struct {
	size  Quantity
	count int64
}

// AggregatedBook maintains a simplified view of the order book,
// tracking only price levels, their aggregated sizes and order counts.
// It is designed for downstream services that need to rebuild
// order book state from BookLog events.
//
// AggregatedBook is not safe for concurrent use.
type AggregatedBook struct {
	seqID uint64 // Last processed SequenceID for gap detection and deduplication
	ask   *treemap.TreeMap[Price, aggregatedLevel]
	bid   *treemap.TreeMap[Price, aggregatedLevel]
}

// NewAggregatedBook creates a new AggregatedBook instance with empty ask and bid sides.
func NewAggregatedBook() *AggregatedBook {
	return &AggregatedBook{
		ask: treemap.New[Price, aggregatedLevel](),
		bid: treemap.New[Price, aggregatedLevel](),
	}
}

// SequenceID returns the last processed sequence ID.
func (ab *AggregatedBook) SequenceID() uint64 {
	return ab.seqID
}

func (ab *AggregatedBook) sideOf(side Side) *treemap.TreeMap[Price, aggregatedLevel] {
	if side == Buy {
		return ab.bid
	}
	return ab.ask
}

// Replay applies a BookLog event to update the aggregated book state.
// Already applied events are skipped; a missing sequence returns ErrSequenceGap
// and leaves the state untouched.
func (ab *AggregatedBook) Replay(log *BookLog) error {
	if log.SequenceID <= ab.seqID {
		return nil
	}
	if log.SequenceID != ab.seqID+1 {
		return fmt.Errorf("%w: expected %d, got %d", ErrSequenceGap, ab.seqID+1, log.SequenceID)
	}

	change := CalculateDepthChange(log)
	if change.Side.Valid() {
		ab.apply(change)
	}
	ab.seqID = log.SequenceID
	return nil
}

func (ab *AggregatedBook) apply(change DepthChange) {
	tree := ab.sideOf(change.Side)
	level, _ := tree.Get(change.Price)

	size := int64(level.size) + change.SizeDiff
	level.count += change.CountDiff

	if level.count <= 0 {
		tree.Del(change.Price)
		return
	}
	level.size = Quantity(max(size, 0))
	tree.Set(change.Price, level)
}

// OnRebuild resets the aggregated book from a snapshot.
// This should be called before replaying events that follow the snapshot.
// A nil snapshot resets to an empty book at sequence zero.
func (ab *AggregatedBook) OnRebuild(snap *OrderBookSnapshot) error {
	ab.ask = treemap.New[Price, aggregatedLevel]()
	ab.bid = treemap.New[Price, aggregatedLevel]()
	ab.seqID = 0

	if snap == nil {
		return nil
	}

	for _, states := range [][]*OrderState{snap.Bids, snap.Asks} {
		for _, st := range states {
			if !st.Side.Valid() {
				return fmt.Errorf("%w: order %d has invalid side %d", ErrInvalidParam, st.ID, st.Side)
			}
			tree := ab.sideOf(st.Side)
			level, _ := tree.Get(st.Price)
			level.size += st.Quantity
			level.count++
			tree.Set(st.Price, level)
		}
	}
	ab.seqID = snap.SeqID
	return nil
}

// Depth returns the aggregated size at a specific price level for the given side.
func (ab *AggregatedBook) Depth(side Side, price Price) (Quantity, bool) {
	level, ok := ab.sideOf(side).Get(price)
	if !ok {
		return 0, false
	}
	return level.size, true
}

// BestBid returns the highest aggregated bid price.
func (ab *AggregatedBook) BestBid() (Price, bool) {
	it := ab.bid.Reverse()
	if !it.Valid() {
		return 0, false
	}
	return it.Key(), true
}

// BestAsk returns the lowest aggregated ask price.
func (ab *AggregatedBook) BestAsk() (Price, bool) {
	it := ab.ask.Iterator()
	if !it.Valid() {
		return 0, false
	}
	return it.Key(), true
}

// Levels returns up to limit levels of side, best price first.
func (ab *AggregatedBook) Levels(side Side, limit int) []*DepthItem {
	result := make([]*DepthItem, 0, limit)

	if side == Buy {
		for it := ab.bid.Reverse(); it.Valid() && len(result) < limit; it.Next() {
			result = append(result, &DepthItem{Price: it.Key(), Size: it.Value().size, Count: it.Value().count})
		}
		return result
	}

	for it := ab.ask.Iterator(); it.Valid() && len(result) < limit; it.Next() {
		result = append(result, &DepthItem{Price: it.Key(), Size: it.Value().size, Count: it.Value().count})
	}
	return result
}
