package orderbook

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// OrderID uniquely identifies an order for the lifetime of a book.
type OrderID uint64

// Price is a fixed-point integer price. The scale is a caller convention,
// see Config.PriceScale.
type Price int64

// Quantity is a number of shares or contracts.
type Quantity uint64

// Timestamp is either a monotonic counter or a wall-clock value supplied by the caller.
type Timestamp uint64

// Side represents the order side (Buy/Sell).
type Side int8

const (
	Buy  Side = 1
	Sell Side = 2
)

// Valid reports whether s is Buy or Sell.
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "unknown"
}

// Decimal converts the fixed-point price to a decimal with scale fractional digits.
func (p Price) Decimal(scale int32) decimal.Decimal {
	return decimal.New(int64(p), -scale)
}

// Decimal converts the quantity to a decimal.
func (q Quantity) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(q)), 0)
}
