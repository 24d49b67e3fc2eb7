package orderbook

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateID  = errors.New("the order id already exists")
	ErrInvalidParam = errors.New("the param is invalid")
	ErrInvariant    = errors.New("order book invariant violated")
	ErrTimeout      = errors.New("timeout")
	ErrSequenceGap  = errors.New("sequence gap detected")
)
