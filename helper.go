package orderbook

// DepthChange represents a change in the order book depth.
type DepthChange struct {
	Side      Side
	Price     Price
	SizeDiff  int64
	CountDiff int64
}

// CalculateDepthChange calculates the depth change based on the book log.
// It returns a DepthChange struct indicating which side and price level should be updated.
func CalculateDepthChange(log *BookLog) DepthChange {
	switch log.Type {
	case LogTypeOpen:
		return DepthChange{
			Side:      log.Side,
			Price:     log.Price,
			SizeDiff:  int64(log.Size),
			CountDiff: 1,
		}
	case LogTypeCancel:
		return DepthChange{
			Side:      log.Side,
			Price:     log.Price,
			SizeDiff:  -int64(log.Size),
			CountDiff: -1,
		}
	case LogTypeExecute:
		// Executions always consume the resting order's own side.
		change := DepthChange{
			Side:     log.Side,
			Price:    log.Price,
			SizeDiff: -int64(log.Size),
		}
		if log.Remaining == 0 {
			change.CountDiff = -1
		}
		return change
	}

	return DepthChange{}
}
