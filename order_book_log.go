package orderbook

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type LogType string

const (
	LogTypeOpen    LogType = "open"
	LogTypeCancel  LogType = "cancel"
	LogTypeExecute LogType = "execute"
)

// BookLog represents an event in the order book.
// SequenceID increases by one for every successful mutation, so downstream
// consumers can detect gaps and rebuild state in order.
type BookLog struct {
	SequenceID uint64          `json:"seq_id"`
	Type       LogType         `json:"type"`
	MarketID   string          `json:"market_id"`
	OrderID    OrderID         `json:"order_id"`
	Side       Side            `json:"side"`
	Price      Price           `json:"price"`
	Size       Quantity        `json:"size"`                 // open: resting size, cancel: removed size, execute: executed size
	Remaining  Quantity        `json:"remaining"`            // Remaining size after the event
	Amount     decimal.Decimal `json:"amount,omitempty"`     // Price * Size, only set for Execute events
	EventTime  Timestamp       `json:"event_time,omitempty"` // Caller supplied order event time
	CreatedAt  time.Time       `json:"created_at"`
}

var bookLogPool = sync.Pool{
	New: func() any {
		return new(BookLog)
	},
}

func acquireBookLog() *BookLog {
	return bookLogPool.Get().(*BookLog)
}

func releaseBookLog(log *BookLog) {
	// Reset structure to zero values.
	// For decimal.Decimal, the zero value (nil internal pointer) represents 0, which is valid.
	*log = BookLog{}
	bookLogPool.Put(log)
}

// Clone returns a heap copy that is not tied to the pool.
func (log *BookLog) Clone() *BookLog {
	cpy := new(BookLog)
	*cpy = *log
	return cpy
}

func newOpenLog(seqID uint64, marketID string, order *Order) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeOpen
	log.MarketID = marketID
	log.OrderID = order.ID
	log.Side = order.Side
	log.Price = order.Price
	log.Size = order.quantity
	log.Remaining = order.quantity
	log.EventTime = order.EventTime
	log.CreatedAt = time.Now().UTC()
	return log
}

func newCancelLog(seqID uint64, marketID string, order *Order, removed Quantity) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeCancel
	log.MarketID = marketID
	log.OrderID = order.ID
	log.Side = order.Side
	log.Price = order.Price
	log.Size = removed
	log.EventTime = order.EventTime
	log.CreatedAt = time.Now().UTC()
	return log
}

func newExecuteLog(seqID uint64, marketID string, order *Order, executed Quantity, scale int32) *BookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeExecute
	log.MarketID = marketID
	log.OrderID = order.ID
	log.Side = order.Side
	log.Price = order.Price
	log.Size = executed
	log.Remaining = order.quantity
	log.Amount = order.Price.Decimal(scale).Mul(executed.Decimal())
	log.EventTime = order.EventTime
	log.CreatedAt = time.Now().UTC()
	return log
}
