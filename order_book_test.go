package orderbook

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func createTestOrderBook(t *testing.T) (*OrderBook, *MemoryPublishLog) {
	t.Helper()

	publisher := NewMemoryPublishLog()
	cfg := DefaultConfig()
	cfg.MarketID = "BTC-USDT"
	cfg.LevelCapacity = 8
	book, err := NewOrderBook(cfg, publisher)
	require.NoError(t, err)
	return book, publisher
}

func mustAdd(t *testing.T, book *OrderBook, id OrderID, side Side, qty Quantity, price Price) *Order {
	t.Helper()

	order := NewOrder(id, side, qty, price, Timestamp(id), Timestamp(id))
	require.NoError(t, book.AddOrder(order))
	require.NoError(t, book.Validate())
	return order
}

func orderIDs(orders []Order) []OrderID {
	ids := make([]OrderID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return ids
}

// OrderBookTestSuite walks one book through a sequence of adds, cancels and executions.
type OrderBookTestSuite struct {
	suite.Suite
	book      *OrderBook
	publisher *MemoryPublishLog
}

func TestOrderBookTestSuite(t *testing.T) {
	suite.Run(t, new(OrderBookTestSuite))
}

func (suite *OrderBookTestSuite) SetupTest() {
	suite.book, suite.publisher = createTestOrderBook(suite.T())

	mustAdd(suite.T(), suite.book, 1, Buy, 100, 9950)
	mustAdd(suite.T(), suite.book, 2, Buy, 200, 9945)
	mustAdd(suite.T(), suite.book, 3, Sell, 150, 10050)
	mustAdd(suite.T(), suite.book, 4, Sell, 300, 10055)
}

func (suite *OrderBookTestSuite) TestInitialState() {
	bid, ok := suite.book.BestBid()
	suite.True(ok)
	suite.Equal(Price(9950), bid)

	ask, ok := suite.book.BestAsk()
	suite.True(ok)
	suite.Equal(Price(10050), ask)

	suite.Equal(4, suite.book.OrderCount())
	suite.False(suite.book.IsEmpty())
	suite.Equal(uint64(4), suite.book.SeqID())
	suite.Equal(4, suite.publisher.Count())
}

func (suite *OrderBookTestSuite) TestCancelBestBid() {
	suite.Require().NoError(suite.book.CancelOrder(1))
	suite.Require().NoError(suite.book.Validate())

	bid, ok := suite.book.BestBid()
	suite.True(ok)
	suite.Equal(Price(9945), bid)

	suite.Equal(3, suite.book.OrderCount())
	_, ok = suite.book.VolumeAtLevel(9950, Buy)
	suite.False(ok, "emptied level must be gone")

	_, ok = suite.book.FindOrder(1)
	suite.False(ok)
}

func (suite *OrderBookTestSuite) TestOverExecutionRemovesLevel() {
	suite.Require().NoError(suite.book.ExecuteOrder(2, 250))
	suite.Require().NoError(suite.book.Validate())

	_, ok := suite.book.FindOrder(2)
	suite.False(ok)
	_, ok = suite.book.VolumeAtLevel(9945, Buy)
	suite.False(ok)
	suite.Equal(3, suite.book.OrderCount())

	last := suite.publisher.Get(suite.publisher.Count() - 1)
	suite.Equal(Quantity(200), last.Size)
}

func (suite *OrderBookTestSuite) TestPartialExecutionReducesLevelVolume() {
	suite.Require().NoError(suite.book.ExecuteOrder(2, 50))
	suite.Require().NoError(suite.book.Validate())

	order, ok := suite.book.FindOrder(2)
	suite.True(ok)
	suite.Equal(Quantity(150), order.Quantity())

	volume, ok := suite.book.VolumeAtLevel(9945, Buy)
	suite.True(ok)
	suite.Equal(Quantity(150), volume)
	suite.Equal(4, suite.book.OrderCount())
}

func (suite *OrderBookTestSuite) TestFullExecutionOfBestAsk() {
	suite.Require().NoError(suite.book.CancelOrder(1))
	suite.Require().NoError(suite.book.ExecuteOrder(3, 150))
	suite.Require().NoError(suite.book.Validate())

	ask, ok := suite.book.BestAsk()
	suite.True(ok)
	suite.Equal(Price(10055), ask)
	suite.Equal(2, suite.book.OrderCount())

	last := suite.publisher.Get(suite.publisher.Count() - 1)
	suite.Equal(LogTypeExecute, last.Type)
	suite.Equal(OrderID(3), last.OrderID)
	suite.Equal(Quantity(150), last.Size)
	suite.Equal(Quantity(0), last.Remaining)
	suite.Equal("15075", last.Amount.String())
}

func (suite *OrderBookTestSuite) TestPartialExecutionKeepsPriority() {
	mustAdd(suite.T(), suite.book, 5, Sell, 50, 10055)

	suite.Require().NoError(suite.book.ExecuteOrder(4, 100))
	suite.Require().NoError(suite.book.Validate())

	order, ok := suite.book.FindOrder(4)
	suite.True(ok)
	suite.Equal(Quantity(200), order.Quantity())

	volume, ok := suite.book.VolumeAtLevel(10055, Sell)
	suite.True(ok)
	suite.Equal(Quantity(250), volume)

	suite.Equal([]OrderID{4, 5}, orderIDs(suite.book.Orders(Sell, 10055)))

	last := suite.publisher.Get(suite.publisher.Count() - 1)
	suite.Equal(Quantity(100), last.Size)
	suite.Equal(Quantity(200), last.Remaining)
}

func (suite *OrderBookTestSuite) TestDrainBook() {
	for _, id := range []OrderID{1, 2, 3} {
		suite.Require().NoError(suite.book.CancelOrder(id))
	}
	suite.Require().NoError(suite.book.ExecuteOrder(4, 300))
	suite.Require().NoError(suite.book.Validate())

	suite.True(suite.book.IsEmpty())
	suite.Equal(0, suite.book.OrderCount())

	_, ok := suite.book.BestBid()
	suite.False(ok)
	_, ok = suite.book.BestAsk()
	suite.False(ok)
	_, ok = suite.book.BidVolume()
	suite.False(ok)
	_, ok = suite.book.AskVolume()
	suite.False(ok)

	stats := suite.book.Stats()
	suite.Equal(BookStats{}, stats)
}

func (suite *OrderBookTestSuite) TestInsideVolumes() {
	mustAdd(suite.T(), suite.book, 5, Buy, 25, 9950)

	bidVol, ok := suite.book.BidVolume()
	suite.True(ok)
	suite.Equal(Quantity(125), bidVol)

	askVol, ok := suite.book.AskVolume()
	suite.True(ok)
	suite.Equal(Quantity(150), askVol)
}

func (suite *OrderBookTestSuite) TestSequenceIDsAreContiguous() {
	suite.Require().NoError(suite.book.CancelOrder(2))
	suite.Require().NoError(suite.book.ExecuteOrder(4, 10))
	suite.Require().Error(suite.book.CancelOrder(2))

	logs := suite.publisher.All()
	suite.Require().Len(logs, 6)
	for i, log := range logs {
		suite.Equal(uint64(i+1), log.SequenceID)
		suite.Equal("BTC-USDT", log.MarketID)
	}
	suite.Equal(LogTypeCancel, logs[4].Type)
	suite.Equal(Quantity(200), logs[4].Size)
	suite.Equal(uint64(6), suite.book.SeqID())
}

func TestOrderBook_AddOrder(t *testing.T) {
	t.Run("duplicate id is rejected", func(t *testing.T) {
		book, publisher := createTestOrderBook(t)
		mustAdd(t, book, 1, Buy, 100, 9950)

		err := book.AddOrder(NewOrder(1, Sell, 5, 10100, 2, 2))
		assert.ErrorIs(t, err, ErrDuplicateID)
		assert.Equal(t, 1, book.OrderCount())
		assert.Equal(t, 1, publisher.Count())

		_, ok := book.BestAsk()
		assert.False(t, ok)
		require.NoError(t, book.Validate())
	})

	t.Run("invalid arguments", func(t *testing.T) {
		book, _ := createTestOrderBook(t)

		assert.ErrorIs(t, book.AddOrder(nil), ErrInvalidParam)
		assert.ErrorIs(t, book.AddOrder(NewOrder(1, Side(0), 1, 1, 0, 0)), ErrInvalidParam)

		order := mustAdd(t, book, 2, Buy, 1, 1)
		assert.ErrorIs(t, book.AddOrder(order), ErrInvalidParam)
		assert.Equal(t, 1, book.OrderCount())
	})

	t.Run("same price keeps arrival order", func(t *testing.T) {
		book, _ := createTestOrderBook(t)
		for id := OrderID(1); id <= 5; id++ {
			mustAdd(t, book, id, Buy, Quantity(id*10), 9950)
		}

		assert.Equal(t, []OrderID{1, 2, 3, 4, 5}, orderIDs(book.Orders(Buy, 9950)))
		volume, ok := book.VolumeAtLevel(9950, Buy)
		assert.True(t, ok)
		assert.Equal(t, Quantity(150), volume)
		assert.Equal(t, int64(1), book.Stats().BidDepthCount)
	})

	t.Run("zero quantity order rests", func(t *testing.T) {
		book, _ := createTestOrderBook(t)
		mustAdd(t, book, 1, Sell, 0, 10000)

		ask, ok := book.BestAsk()
		assert.True(t, ok)
		assert.Equal(t, Price(10000), ask)
		vol, _ := book.AskVolume()
		assert.Equal(t, Quantity(0), vol)
	})

	t.Run("negative prices are ordered", func(t *testing.T) {
		book, _ := createTestOrderBook(t)
		mustAdd(t, book, 1, Buy, 1, -50)
		mustAdd(t, book, 2, Buy, 1, -10)
		mustAdd(t, book, 3, Sell, 1, -5)
		mustAdd(t, book, 4, Sell, 1, 5)

		bid, _ := book.BestBid()
		ask, _ := book.BestAsk()
		assert.Equal(t, Price(-10), bid)
		assert.Equal(t, Price(-5), ask)
	})

	t.Run("crossed prices are accepted", func(t *testing.T) {
		book, _ := createTestOrderBook(t)
		mustAdd(t, book, 1, Buy, 1, 10100)
		mustAdd(t, book, 2, Sell, 1, 9900)

		bid, _ := book.BestBid()
		ask, _ := book.BestAsk()
		assert.Equal(t, Price(10100), bid)
		assert.Equal(t, Price(9900), ask)
	})
}

func TestOrderBook_CancelOrder(t *testing.T) {
	t.Run("unknown id", func(t *testing.T) {
		book, publisher := createTestOrderBook(t)
		assert.ErrorIs(t, book.CancelOrder(42), ErrNotFound)
		assert.Equal(t, 0, publisher.Count())
		assert.True(t, book.IsEmpty())
	})

	t.Run("second cancel fails", func(t *testing.T) {
		book, _ := createTestOrderBook(t)
		mustAdd(t, book, 1, Sell, 10, 10000)
		require.NoError(t, book.CancelOrder(1))
		assert.ErrorIs(t, book.CancelOrder(1), ErrNotFound)
		assert.True(t, book.IsEmpty())
	})

	t.Run("middle of queue", func(t *testing.T) {
		book, _ := createTestOrderBook(t)
		for id := OrderID(1); id <= 3; id++ {
			mustAdd(t, book, id, Sell, 10, 10000)
		}
		require.NoError(t, book.CancelOrder(2))
		require.NoError(t, book.Validate())

		assert.Equal(t, []OrderID{1, 3}, orderIDs(book.Orders(Sell, 10000)))
		vol, _ := book.VolumeAtLevel(10000, Sell)
		assert.Equal(t, Quantity(20), vol)
	})

	t.Run("non-inside level leaves best untouched", func(t *testing.T) {
		book, _ := createTestOrderBook(t)
		mustAdd(t, book, 1, Buy, 10, 100)
		mustAdd(t, book, 2, Buy, 10, 90)
		mustAdd(t, book, 3, Buy, 10, 95)

		require.NoError(t, book.CancelOrder(3))
		require.NoError(t, book.Validate())
		bid, _ := book.BestBid()
		assert.Equal(t, Price(100), bid)
	})

	t.Run("id can be reused after removal", func(t *testing.T) {
		book, _ := createTestOrderBook(t)
		mustAdd(t, book, 1, Buy, 10, 100)
		require.NoError(t, book.CancelOrder(1))
		mustAdd(t, book, 1, Sell, 20, 200)

		order, ok := book.FindOrder(1)
		require.True(t, ok)
		assert.Equal(t, Sell, order.Side)
	})
}

func TestOrderBook_ExecuteOrder(t *testing.T) {
	t.Run("unknown id", func(t *testing.T) {
		book, _ := createTestOrderBook(t)
		assert.ErrorIs(t, book.ExecuteOrder(7, 1), ErrNotFound)
	})

	t.Run("over-execution removes the order", func(t *testing.T) {
		book, publisher := createTestOrderBook(t)
		order := mustAdd(t, book, 1, Buy, 10, 100)

		require.NoError(t, book.ExecuteOrder(1, 25))
		require.NoError(t, book.Validate())

		assert.True(t, book.IsEmpty())
		assert.Equal(t, Quantity(0), order.Quantity())

		last := publisher.Get(publisher.Count() - 1)
		assert.Equal(t, Quantity(10), last.Size)
		assert.Equal(t, Quantity(0), last.Remaining)
	})

	t.Run("repeated partial executions", func(t *testing.T) {
		book, _ := createTestOrderBook(t)
		mustAdd(t, book, 1, Sell, 100, 100)
		mustAdd(t, book, 2, Sell, 100, 100)

		for i := 0; i < 9; i++ {
			require.NoError(t, book.ExecuteOrder(1, 10))
		}
		require.NoError(t, book.Validate())

		vol, _ := book.AskVolume()
		assert.Equal(t, Quantity(110), vol)
		assert.Equal(t, []OrderID{1, 2}, orderIDs(book.Orders(Sell, 100)))

		require.NoError(t, book.ExecuteOrder(1, 10))
		assert.Equal(t, []OrderID{2}, orderIDs(book.Orders(Sell, 100)))
		require.NoError(t, book.Validate())
	})

	t.Run("full execution of inside level moves best", func(t *testing.T) {
		book, _ := createTestOrderBook(t)
		mustAdd(t, book, 1, Buy, 10, 100)
		mustAdd(t, book, 2, Buy, 10, 99)
		mustAdd(t, book, 3, Buy, 10, 101)

		require.NoError(t, book.ExecuteOrder(3, 10))
		bid, _ := book.BestBid()
		assert.Equal(t, Price(100), bid)

		require.NoError(t, book.ExecuteOrder(1, 10))
		bid, _ = book.BestBid()
		assert.Equal(t, Price(99), bid)
		require.NoError(t, book.Validate())
	})
}

func TestOrderBook_RoundTrip(t *testing.T) {
	book, _ := createTestOrderBook(t)
	before := book.Stats()

	mustAdd(t, book, 1, Sell, 10, 10000)
	require.NoError(t, book.CancelOrder(1))

	assert.Equal(t, before, book.Stats())
	assert.True(t, book.IsEmpty())
	assert.Nil(t, book.Orders(Sell, 10000))
	require.NoError(t, book.Validate())
}

func TestOrderBook_FindOrderReturnsCopy(t *testing.T) {
	book, _ := createTestOrderBook(t)
	mustAdd(t, book, 1, Buy, 10, 100)

	order, ok := book.FindOrder(1)
	require.True(t, ok)
	order.ReduceQuantity(10)

	vol, _ := book.BidVolume()
	assert.Equal(t, Quantity(10), vol)
	again, _ := book.FindOrder(1)
	assert.Equal(t, Quantity(10), again.Quantity())
}

func TestOrderBook_InvalidSideQueries(t *testing.T) {
	book, _ := createTestOrderBook(t)
	mustAdd(t, book, 1, Buy, 10, 100)

	_, ok := book.VolumeAtLevel(100, Side(9))
	assert.False(t, ok)
	assert.Nil(t, book.Orders(Side(9), 100))
}

func TestOrderBook_Depth(t *testing.T) {
	book, _ := createTestOrderBook(t)

	_, err := book.Depth(0)
	assert.ErrorIs(t, err, ErrInvalidParam)

	mustAdd(t, book, 1, Buy, 10, 100)
	mustAdd(t, book, 2, Buy, 20, 100)
	mustAdd(t, book, 3, Buy, 5, 98)
	mustAdd(t, book, 4, Buy, 5, 99)
	mustAdd(t, book, 5, Sell, 7, 105)
	mustAdd(t, book, 6, Sell, 8, 103)

	depth, err := book.Depth(2)
	require.NoError(t, err)

	assert.Equal(t, uint64(6), depth.UpdateID)
	require.Len(t, depth.Bids, 2)
	assert.Equal(t, DepthItem{Price: 100, Size: 30, Count: 2}, *depth.Bids[0])
	assert.Equal(t, DepthItem{Price: 99, Size: 5, Count: 1}, *depth.Bids[1])
	require.Len(t, depth.Asks, 2)
	assert.Equal(t, Price(103), depth.Asks[0].Price)
	assert.Equal(t, Price(105), depth.Asks[1].Price)

	depth, err = book.Depth(100)
	require.NoError(t, err)
	assert.Len(t, depth.Bids, 3)
	assert.Len(t, depth.Asks, 2)
}

func TestOrderBook_Stats(t *testing.T) {
	book, _ := createTestOrderBook(t)
	mustAdd(t, book, 1, Buy, 10, 100)
	mustAdd(t, book, 2, Buy, 10, 100)
	mustAdd(t, book, 3, Buy, 10, 99)
	mustAdd(t, book, 4, Sell, 10, 101)

	assert.Equal(t, BookStats{
		AskDepthCount: 1,
		AskOrderCount: 1,
		BidDepthCount: 2,
		BidOrderCount: 3,
	}, book.Stats())
}

func TestOrderBook_Defaults(t *testing.T) {
	book, err := NewOrderBook(nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, book.MarketID())

	require.NoError(t, book.AddOrder(NewOrder(1, Buy, 1, 1, 0, 0)))
	require.NoError(t, book.CancelOrder(1))
	assert.Equal(t, uint64(2), book.SeqID())
}

func TestNewOrderBook_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"negative price scale", &Config{PriceScale: -3, LevelCapacity: 8, PublishBufferSize: 16}},
		{"zero level capacity", &Config{PriceScale: 2, PublishBufferSize: 16}},
		{"buffer not power of two", &Config{PriceScale: 2, LevelCapacity: 8, PublishBufferSize: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book, err := NewOrderBook(tt.cfg, nil)
			assert.ErrorIs(t, err, ErrInvalidParam)
			assert.Nil(t, book)
		})
	}
}

func TestOrderBook_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	cfg := DefaultConfig()
	cfg.MarketID = "ETH-USDT"
	book, err := NewOrderBook(cfg, nil, WithMetrics(metrics))
	require.NoError(t, err)

	require.NoError(t, book.AddOrder(NewOrder(1, Buy, 10, 100, 0, 0)))
	require.NoError(t, book.AddOrder(NewOrder(2, Buy, 10, 99, 0, 0)))
	require.NoError(t, book.AddOrder(NewOrder(3, Sell, 10, 101, 0, 0)))
	require.ErrorIs(t, book.AddOrder(NewOrder(3, Sell, 10, 101, 0, 0)), ErrDuplicateID)
	require.ErrorIs(t, book.CancelOrder(99), ErrNotFound)
	require.NoError(t, book.ExecuteOrder(1, 5))
	require.NoError(t, book.ExecuteOrder(1, 5))
	require.NoError(t, book.CancelOrder(3))

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.ordersAdded.WithLabelValues("ETH-USDT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ordersCanceled.WithLabelValues("ETH-USDT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ordersExecuted.WithLabelValues("ETH-USDT", fillFull)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ordersExecuted.WithLabelValues("ETH-USDT", fillPartial)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ordersRejected.WithLabelValues("ETH-USDT", rejectDuplicateID)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ordersRejected.WithLabelValues("ETH-USDT", rejectNotFound)))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.restingOrders.WithLabelValues("ETH-USDT", "buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.priceLevels.WithLabelValues("ETH-USDT", "buy")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.restingOrders.WithLabelValues("ETH-USDT", "sell")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.priceLevels.WithLabelValues("ETH-USDT", "sell")))
}
