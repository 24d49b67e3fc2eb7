package orderbook

import (
	"fmt"
)

// Validate checks every structural invariant of the book: tree shape, agreement
// between each price tree and its index, level aggregates against their queues,
// the id index, and the inside cache. It is meant for tests and diagnostics.
func (book *OrderBook) Validate() error {
	book.mu.RLock()
	defer book.mu.RUnlock()

	var total int
	for _, side := range []*bookSide{book.bids, book.asks} {
		n, err := book.validateSide(side)
		if err != nil {
			return err
		}
		total += n
	}

	if total != len(book.orders) {
		return fmt.Errorf("%w: %d orders queued, %d indexed", ErrInvariant, total, len(book.orders))
	}
	return nil
}

func (book *OrderBook) validateSide(side *bookSide) (int, error) {
	if err := side.tree.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %s tree: %v", ErrInvariant, side.side, err)
	}
	if int(side.tree.Count()) != len(side.levels) {
		return 0, fmt.Errorf("%w: %s tree has %d levels, index has %d", ErrInvariant, side.side, side.tree.Count(), len(side.levels))
	}

	var queued int
	var err error
	side.tree.Ascend(func(h int32) bool {
		level := side.tree.Value(h)
		if indexed := side.levels[level.price]; indexed != level {
			err = fmt.Errorf("%w: %s level %d is in the tree but not the index", ErrInvariant, side.side, level.price)
			return false
		}
		if level.node != h || Price(side.tree.Price(h)) != level.price {
			err = fmt.Errorf("%w: %s level %d has a stale tree handle", ErrInvariant, side.side, level.price)
			return false
		}

		var n int64
		err = book.validateLevel(side, level, &n)
		queued += int(n)
		return err == nil
	})
	if err != nil {
		return 0, err
	}

	if int64(queued) != side.orders {
		return 0, fmt.Errorf("%w: %s side counts %d orders, queues hold %d", ErrInvariant, side.side, side.orders, queued)
	}
	if best := side.extremum(); best != side.best {
		return 0, fmt.Errorf("%w: %s inside cache is stale", ErrInvariant, side.side)
	}
	return queued, nil
}

func (book *OrderBook) validateLevel(side *bookSide, level *PriceLevel, count *int64) error {
	level.mu.Lock()
	defer level.mu.Unlock()

	if level.orderCount == 0 {
		return fmt.Errorf("%w: %s level %d is empty but indexed", ErrInvariant, side.side, level.price)
	}

	var volume Quantity
	var prev *Order
	for o := level.head; o != nil; o = o.next {
		if o.level != level || o.prev != prev {
			return fmt.Errorf("%w: order %d has broken links", ErrInvariant, o.ID)
		}
		if o.Price != level.price || o.Side != side.side {
			return fmt.Errorf("%w: order %d rests at the wrong level", ErrInvariant, o.ID)
		}
		if book.orders[o.ID] != o {
			return fmt.Errorf("%w: order %d is queued but not indexed", ErrInvariant, o.ID)
		}
		volume += o.quantity
		*count++
		prev = o
	}

	if level.tail != prev {
		return fmt.Errorf("%w: %s level %d has a stale tail", ErrInvariant, side.side, level.price)
	}
	if *count != level.orderCount {
		return fmt.Errorf("%w: %s level %d counts %d orders, queue holds %d", ErrInvariant, side.side, level.price, level.orderCount, *count)
	}
	if volume != level.totalVolume {
		return fmt.Errorf("%w: %s level %d volume %d, queue sums to %d", ErrInvariant, side.side, level.price, level.totalVolume, volume)
	}
	return nil
}
