package auction

import (
	"math/big"
	"testing"
	"time"

	"github.com/MintBay/market-engine/internal/access"
	"github.com/MintBay/market-engine/internal/entity"
	"github.com/MintBay/market-engine/internal/escrow"
	"github.com/MintBay/market-engine/internal/fees"
	"github.com/MintBay/market-engine/internal/registry"
	"github.com/MintBay/market-engine/internal/staking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	engine      Engine
	assets      *registry.MemoryAssetRegistry
	memberships *registry.MemoryMembershipRegistry
	ledger      escrow.Ledger
	payer       *escrow.MemoryPayer
	fees        fees.Engine
	access      access.Control
	now         time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		assets:      registry.NewMemoryAssetRegistry(),
		memberships: registry.NewMemoryMembershipRegistry(),
		payer:       escrow.NewMemoryPayer(),
		access:      access.New("admin"),
		now:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	h.ledger = escrow.NewLedger(h.payer)

	clock := func() time.Time { return h.now }
	staker := staking.NewAccumulatorPool(h.access, h.memberships, h.payer, big.NewInt(1000000000000), clock)
	h.fees = fees.NewEngine(h.access, h.memberships, h.assets, h.ledger, fees.Config{HighBps: 500, MidBps: 300, LowBps: 150}, "platform", clock)
	require.NoError(t, h.fees.SetStaker("admin", staker))

	h.engine = NewEngine(h.assets, h.fees, h.payer, h.access, 10*time.Minute, 24*time.Hour, clock)

	h.assets.RegisterCollection("punks", entity.SingleOwner)
	h.assets.RegisterCollection("packs", entity.MultiBalance)
	h.assets.Mint("punks", 1, "seller", 1)
	h.assets.Mint("punks", 2, "seller", 1)
	h.assets.Mint("packs", 9, "seller", 10)

	return h
}

func (h *harness) createAuction(t *testing.T, startingBid int64) entity.Auction {
	t.Helper()

	created, err := h.engine.CreateAuction("seller", "punks", 1, 1, big.NewInt(startingBid), nil, h.now.Add(48*time.Hour))
	require.NoError(t, err)

	return created
}

func TestEngine_CreateAuction(t *testing.T) {
	h := newHarness(t)

	created := h.createAuction(t, 100)
	assert.Equal(t, entity.CreateAuctionKey("seller", "punks", 1, 1), created.Key)
	assert.Equal(t, 0, created.Index)
	assert.Equal(t, "100", created.StartingBid)

	owner, err := h.assets.OwnerOf("punks", 1)
	require.NoError(t, err)
	assert.Equal(t, CustodyAccount, owner)
}

func TestEngine_CreateAuctionValidation(t *testing.T) {
	h := newHarness(t)
	end := h.now.Add(48 * time.Hour)

	_, err := h.engine.CreateAuction("seller", "punks", 1, 1, big.NewInt(0), nil, end)
	assert.Equal(t, ErrInvalidPrice, err)

	_, err = h.engine.CreateAuction("seller", "punks", 1, 1, big.NewInt(100), big.NewInt(50), end)
	assert.Equal(t, ErrInvalidPrice, err)

	_, err = h.engine.CreateAuction("seller", "punks", 1, 1, big.NewInt(100), nil, h.now)
	assert.Equal(t, ErrTimePassed, err)

	_, err = h.engine.CreateAuction("mallory", "punks", 1, 1, big.NewInt(100), nil, end)
	assert.Equal(t, ErrNotOwner, err)

	_, err = h.engine.CreateAuction("mallory", "packs", 9, 2, big.NewInt(100), nil, end)
	assert.Equal(t, ErrInsufficientBalance, err)
}

func TestEngine_MinimumBidBrackets(t *testing.T) {
	h := newHarness(t)
	end := h.now.Add(48 * time.Hour)

	cases := []struct {
		highest int64
		next    int64
	}{
		{11, 21},
		{15, 25},
		{60, 70},
		{101, 151},
		{1001, 1101},
		{5000, 5100},
		{5100, 5350},
		{10001, 10501},
	}

	for i, tc := range cases {
		created, err := h.engine.CreateAuction("seller", "packs", 9, 1, big.NewInt(1), nil, end)
		require.NoError(t, err)
		assert.Equal(t, i, created.Index)

		min, err := h.engine.MinimumBid(created.Key, created.Index)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(1), min)

		_, err = h.engine.Bid("bidder", created.Key, created.Index, big.NewInt(tc.highest))
		require.NoError(t, err)

		min, err = h.engine.MinimumBid(created.Key, created.Index)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(tc.next), min, "highest %d", tc.highest)
	}
}

func TestEngine_BidsAreAdditive(t *testing.T) {
	h := newHarness(t)
	created := h.createAuction(t, 100)

	got, err := h.engine.Bid("alice", created.Key, created.Index, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, "alice", got.HighestBidder)
	assert.Equal(t, "100", got.HighestBid)

	got, err = h.engine.Bid("bob", created.Key, created.Index, big.NewInt(200))
	require.NoError(t, err)
	assert.Equal(t, "bob", got.HighestBidder)

	// 200 leads, so alice needs 250 in total; 160 is not enough.
	_, err = h.engine.Bid("alice", created.Key, created.Index, big.NewInt(60))
	assert.Equal(t, ErrNotMinimumBid, err)

	got, err = h.engine.Bid("alice", created.Key, created.Index, big.NewInt(150))
	require.NoError(t, err)
	assert.Equal(t, "alice", got.HighestBidder)
	assert.Equal(t, "250", got.HighestBid)
	assert.Equal(t, big.NewInt(250), h.engine.BidderBalance(created.Key, created.Index, "alice"))
	assert.Equal(t, big.NewInt(200), h.engine.BidderBalance(created.Key, created.Index, "bob"))
}

func TestEngine_BidGuards(t *testing.T) {
	h := newHarness(t)
	created := h.createAuction(t, 100)

	_, err := h.engine.Bid("seller", created.Key, created.Index, big.NewInt(100))
	assert.Equal(t, ErrSellerBid, err)

	_, err = h.engine.Bid("alice", created.Key, created.Index, big.NewInt(50))
	assert.Equal(t, ErrNotMinimumBid, err)

	_, err = h.engine.Bid("alice", "missing", 0, big.NewInt(100))
	assert.Equal(t, ErrNotAvailable, err)

	h.now = created.EndTime.Add(time.Second)
	_, err = h.engine.Bid("alice", created.Key, created.Index, big.NewInt(100))
	assert.Equal(t, ErrEnded, err)
}

func TestEngine_RejectedBidLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	created := h.createAuction(t, 100)

	before, err := h.engine.Get(created.Key, created.Index)
	require.NoError(t, err)

	_, err = h.engine.Bid("alice", created.Key, created.Index, big.NewInt(50))
	require.Equal(t, ErrNotMinimumBid, err)

	after, err := h.engine.Get(created.Key, created.Index)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, big.NewInt(0), h.engine.BidderBalance(created.Key, created.Index, "alice"))

	require.NoError(t, h.engine.ReturnBids("admin", created.Key, created.Index, nil))
	assert.Equal(t, big.NewInt(0), h.payer.Paid("alice"))
}

func TestEngine_AntiSnipeExtendsEndTime(t *testing.T) {
	h := newHarness(t)
	created := h.createAuction(t, 100)

	h.now = created.EndTime.Add(-5 * time.Minute)
	got, err := h.engine.Bid("alice", created.Key, created.Index, big.NewInt(100))
	require.NoError(t, err)

	assert.Equal(t, h.now.Add(10*time.Minute), got.EndTime)
}

func TestEngine_AcceptSettlesOnWinner(t *testing.T) {
	h := newHarness(t)
	h.memberships.Issue("winner", entity.FounderTier, 1)
	created := h.createAuction(t, 100)

	_, err := h.engine.Bid("loser", created.Key, created.Index, big.NewInt(5000))
	require.NoError(t, err)
	_, err = h.engine.Bid("winner", created.Key, created.Index, big.NewInt(10000))
	require.NoError(t, err)

	assert.Equal(t, ErrTimePassed, h.engine.Accept("seller", created.Key, created.Index))

	h.now = created.EndTime.Add(time.Second)
	assert.Equal(t, ErrNotSeller, h.engine.Accept("mallory", created.Key, created.Index))

	require.NoError(t, h.engine.Accept("seller", created.Key, created.Index))

	// 300bp founder fee on the winning bid, half staked.
	assert.Equal(t, big.NewInt(9700), h.ledger.BalanceOf("seller"))
	assert.Equal(t, big.NewInt(150), h.ledger.BalanceOf("platform"))

	owner, err := h.assets.OwnerOf("punks", 1)
	require.NoError(t, err)
	assert.Equal(t, "winner", owner)

	assert.Equal(t, big.NewInt(0), h.engine.BidderBalance(created.Key, created.Index, "winner"))

	amount, err := h.engine.Withdraw("loser", created.Key, created.Index)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5000), amount)

	// Settled auctions report Ended, not unavailable.
	assert.Equal(t, ErrEnded, h.engine.Accept("seller", created.Key, created.Index))
	_, err = h.engine.Bid("late", created.Key, created.Index, big.NewInt(20000))
	assert.Equal(t, ErrEnded, err)
}

func TestEngine_AcceptByAdmin(t *testing.T) {
	h := newHarness(t)
	created := h.createAuction(t, 100)

	h.now = created.EndTime.Add(time.Second)
	assert.Equal(t, ErrNoBidder, h.engine.Accept("admin", created.Key, created.Index))

	h.now = created.CreatedAt
	_, err := h.engine.Bid("alice", created.Key, created.Index, big.NewInt(100))
	require.NoError(t, err)

	h.now = created.EndTime.Add(time.Second)
	require.NoError(t, h.engine.Accept("admin", created.Key, created.Index))
}

func TestEngine_WithdrawLocksHighestBidder(t *testing.T) {
	h := newHarness(t)
	created := h.createAuction(t, 100)

	_, err := h.engine.Bid("alice", created.Key, created.Index, big.NewInt(100))
	require.NoError(t, err)
	_, err = h.engine.Bid("bob", created.Key, created.Index, big.NewInt(200))
	require.NoError(t, err)

	_, err = h.engine.Withdraw("bob", created.Key, created.Index)
	assert.Equal(t, ErrHighestBidder, err)

	amount, err := h.engine.Withdraw("alice", created.Key, created.Index)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), amount)
	assert.Equal(t, big.NewInt(100), h.payer.Paid("alice"))

	_, err = h.engine.Withdraw("alice", created.Key, created.Index)
	assert.Equal(t, escrow.ErrNoFunds, err)
}

func TestEngine_Cancel(t *testing.T) {
	h := newHarness(t)
	created := h.createAuction(t, 100)

	_, err := h.engine.Bid("alice", created.Key, created.Index, big.NewInt(100))
	require.NoError(t, err)

	assert.Equal(t, ErrNotSeller, h.engine.Cancel("mallory", created.Key, created.Index))

	// Inside the closing window the auction must run to its end.
	h.now = created.EndTime.Add(-23 * time.Hour)
	assert.Equal(t, ErrTimePassed, h.engine.Cancel("seller", created.Key, created.Index))

	h.now = created.CreatedAt
	require.NoError(t, h.engine.Cancel("seller", created.Key, created.Index))

	owner, err := h.assets.OwnerOf("punks", 1)
	require.NoError(t, err)
	assert.Equal(t, "seller", owner)

	// Cancellation releases the highest bidder's lock.
	amount, err := h.engine.Withdraw("alice", created.Key, created.Index)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), amount)

	assert.Equal(t, ErrNotAvailable, h.engine.Cancel("seller", created.Key, created.Index))
}

func TestEngine_BuyNow(t *testing.T) {
	h := newHarness(t)

	created, err := h.engine.CreateAuction("seller", "punks", 1, 1, big.NewInt(100), big.NewInt(10000), h.now.Add(48*time.Hour))
	require.NoError(t, err)

	_, err = h.engine.Bid("alice", created.Key, created.Index, big.NewInt(100))
	require.NoError(t, err)

	assert.Equal(t, ErrInvalidPrice, h.engine.BuyNow("buyer", created.Key, created.Index, big.NewInt(9999)))
	assert.Equal(t, ErrSellerBid, h.engine.BuyNow("seller", created.Key, created.Index, big.NewInt(10000)))

	require.NoError(t, h.engine.BuyNow("buyer", created.Key, created.Index, big.NewInt(10000)))

	// 500bp default tier on the buyer.
	assert.Equal(t, big.NewInt(9500), h.ledger.BalanceOf("seller"))

	owner, err := h.assets.OwnerOf("punks", 1)
	require.NoError(t, err)
	assert.Equal(t, "buyer", owner)

	// The outrun highest bid becomes withdrawable.
	amount, err := h.engine.Withdraw("alice", created.Key, created.Index)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), amount)

	assert.Equal(t, ErrEnded, h.engine.BuyNow("buyer", created.Key, created.Index, big.NewInt(10000)))
}

func TestEngine_BuyNowUnavailableWithoutPrice(t *testing.T) {
	h := newHarness(t)
	created := h.createAuction(t, 100)

	assert.Equal(t, ErrNoBuyNow, h.engine.BuyNow("buyer", created.Key, created.Index, big.NewInt(10000)))
}

func TestEngine_ReturnBids(t *testing.T) {
	h := newHarness(t)
	created := h.createAuction(t, 100)

	_, err := h.engine.Bid("alice", created.Key, created.Index, big.NewInt(100))
	require.NoError(t, err)
	_, err = h.engine.Bid("bob", created.Key, created.Index, big.NewInt(200))
	require.NoError(t, err)
	_, err = h.engine.Bid("carol", created.Key, created.Index, big.NewInt(300))
	require.NoError(t, err)

	assert.Equal(t, ErrNotAdmin, h.engine.ReturnBids("mallory", created.Key, created.Index, nil))

	require.NoError(t, h.engine.ReturnBids("admin", created.Key, created.Index, nil))

	assert.Equal(t, big.NewInt(100), h.payer.Paid("alice"))
	assert.Equal(t, big.NewInt(200), h.payer.Paid("bob"))
	// The leading bid stays locked while the auction can still settle.
	assert.Equal(t, big.NewInt(0), h.payer.Paid("carol"))
	assert.Equal(t, big.NewInt(300), h.engine.BidderBalance(created.Key, created.Index, "carol"))

	// Running the sweep again moves nothing.
	require.NoError(t, h.engine.ReturnBids("admin", created.Key, created.Index, nil))
	assert.Equal(t, big.NewInt(100), h.payer.Paid("alice"))
}

func TestEngine_ReturnBidsForNamedIdentities(t *testing.T) {
	h := newHarness(t)
	created := h.createAuction(t, 100)

	_, err := h.engine.Bid("alice", created.Key, created.Index, big.NewInt(100))
	require.NoError(t, err)
	_, err = h.engine.Bid("bob", created.Key, created.Index, big.NewInt(200))
	require.NoError(t, err)

	// Unknown identities are skipped silently.
	require.NoError(t, h.engine.ReturnBids("admin", created.Key, created.Index, []string{"alice", "stranger"}))

	assert.Equal(t, big.NewInt(100), h.payer.Paid("alice"))
	assert.Equal(t, big.NewInt(0), h.payer.Paid("bob"))
}

func TestEngine_ByKey(t *testing.T) {
	h := newHarness(t)
	end := h.now.Add(48 * time.Hour)

	_, err := h.engine.CreateAuction("seller", "packs", 9, 1, big.NewInt(100), nil, end)
	require.NoError(t, err)
	second, err := h.engine.CreateAuction("seller", "packs", 9, 1, big.NewInt(200), nil, end)
	require.NoError(t, err)

	views := h.engine.ByKey(second.Key)
	require.Len(t, views, 2)
	assert.Equal(t, "100", views[0].StartingBid)
	assert.Equal(t, "200", views[1].StartingBid)
}
