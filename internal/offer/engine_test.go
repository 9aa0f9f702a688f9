package offer

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

	h.engine = NewEngine(h.assets, h.fees, h.payer, h.access, clock)

	h.assets.RegisterCollection("punks", entity.SingleOwner)
	h.assets.RegisterCollection("packs", entity.MultiBalance)
	h.assets.Mint("punks", 1, "owner", 1)
	h.assets.Mint("punks", 2, "owner", 1)
	h.assets.Mint("packs", 9, "holder", 5)

	return h
}

func TestEngine_MakeOffer(t *testing.T) {
	h := newHarness(t)

	made, err := h.engine.MakeOffer("buyer", "punks", 1, big.NewInt(20))
	require.NoError(t, err)

	assert.Equal(t, entity.CreateOfferKey("punks", 1), made.Key)
	assert.Equal(t, 0, made.Index)
	assert.Equal(t, "20", made.Amount)
	assert.Equal(t, entity.OfferOpen, made.Status)
	assert.False(t, made.CollectionOffer)

	_, err = h.engine.MakeOffer("buyer", "unknown", 1, big.NewInt(20))
	assert.Equal(t, ErrUnsupportedType, err)

	_, err = h.engine.MakeOffer("buyer", "punks", 1, big.NewInt(0))
	assert.Equal(t, ErrInvalidAmount, err)
}

func TestEngine_RepeatOfferRotatesOpenEntry(t *testing.T) {
	h := newHarness(t)

	first, err := h.engine.MakeOffer("buyer", "punks", 1, big.NewInt(20))
	require.NoError(t, err)

	second, err := h.engine.MakeOffer("buyer", "punks", 1, big.NewInt(30))
	require.NoError(t, err)

	// The old entry is retired in place and the new one carries the sum.
	assert.Equal(t, 1, second.Index)
	assert.Equal(t, "50", second.Amount)
	assert.Equal(t, entity.OfferOpen, second.Status)

	old, err := h.engine.Get(first.Key, first.Index)
	require.NoError(t, err)
	assert.Equal(t, entity.OfferUpdated, old.Status)
	assert.Equal(t, "20", old.Amount)

	open, ok := h.engine.OpenOffer(first.Key, "buyer")
	require.True(t, ok)
	assert.Equal(t, 1, open.Index)
}

func TestEngine_UpdateOffer(t *testing.T) {
	h := newHarness(t)

	made, err := h.engine.MakeOffer("buyer", "punks", 1, big.NewInt(20))
	require.NoError(t, err)

	_, err = h.engine.UpdateOffer("mallory", made.Key, made.Index, big.NewInt(30))
	assert.Equal(t, ErrNotOfferOwner, err)

	_, err = h.engine.UpdateOffer("buyer", made.Key, made.Index, big.NewInt(0))
	assert.Equal(t, ErrInvalidAmount, err)

	updated, err := h.engine.UpdateOffer("buyer", made.Key, made.Index, big.NewInt(30))
	require.NoError(t, err)
	assert.Equal(t, "50", updated.Amount)

	_, err = h.engine.UpdateOffer("buyer", made.Key, made.Index, big.NewInt(5))
	assert.Equal(t, ErrOfferNotOpen, err)

	_, err = h.engine.UpdateOffer("buyer", made.Key, 99, big.NewInt(5))
	assert.Equal(t, ErrOfferNotFound, err)
}

func TestEngine_CancelOfferRefundsBuyer(t *testing.T) {
	h := newHarness(t)

	made, err := h.engine.MakeOffer("buyer", "punks", 1, big.NewInt(500))
	require.NoError(t, err)

	assert.Equal(t, ErrIncorrectBuyer, h.engine.CancelOffer("mallory", made.Key, made.Index))

	require.NoError(t, h.engine.CancelOffer("buyer", made.Key, made.Index))
	assert.Equal(t, big.NewInt(500), h.payer.Paid("buyer"))

	assert.Equal(t, ErrOfferNotOpen, h.engine.CancelOffer("buyer", made.Key, made.Index))

	got, err := h.engine.Get(made.Key, made.Index)
	require.NoError(t, err)
	assert.Equal(t, entity.OfferCancelled, got.Status)
}

func TestEngine_StaffCanCancelOffer(t *testing.T) {
	h := newHarness(t)

	made, err := h.engine.MakeOffer("buyer", "punks", 1, big.NewInt(500))
	require.NoError(t, err)

	require.NoError(t, h.access.Grant("admin", "staff", entity.StaffRole))
	require.NoError(t, h.engine.CancelOffer("staff", made.Key, made.Index))
	assert.Equal(t, big.NewInt(500), h.payer.Paid("buyer"))
}

func TestEngine_RejectOfferRefundsBuyer(t *testing.T) {
	h := newHarness(t)

	made, err := h.engine.MakeOffer("buyer", "punks", 1, big.NewInt(500))
	require.NoError(t, err)

	require.NoError(t, h.engine.RejectOffer("owner", made.Key, made.Index))
	assert.Equal(t, big.NewInt(500), h.payer.Paid("buyer"))

	assert.Equal(t, ErrOfferNotOpen, h.engine.RejectOffer("owner", made.Key, made.Index))
}

func TestEngine_AcceptOfferSettlesAndTransfers(t *testing.T) {
	h := newHarness(t)
	h.memberships.Issue("owner", entity.FounderTier, 1)
	require.NoError(t, h.fees.RegisterRoyalty("admin", "punks", "creator", 500))

	made, err := h.engine.MakeOffer("buyer", "punks", 1, big.NewInt(20000))
	require.NoError(t, err)

	assert.Equal(t, ErrNotTokenOwner, h.engine.AcceptOffer("mallory", made.Key, made.Index))

	require.NoError(t, h.engine.AcceptOffer("owner", made.Key, made.Index))

	// 300bp founder fee and 500bp royalty, both on the gross amount.
	assert.Equal(t, big.NewInt(18400), h.ledger.BalanceOf("owner"))
	assert.Equal(t, big.NewInt(1000), h.ledger.BalanceOf("creator"))
	assert.Equal(t, big.NewInt(300), h.ledger.BalanceOf("platform"))

	tokenOwner, err := h.assets.OwnerOf("punks", 1)
	require.NoError(t, err)
	assert.Equal(t, "buyer", tokenOwner)

	got, err := h.engine.Get(made.Key, made.Index)
	require.NoError(t, err)
	assert.Equal(t, entity.OfferAccepted, got.Status)

	assert.Equal(t, ErrOfferNotOpen, h.engine.AcceptOffer("owner", made.Key, made.Index))
}

func TestEngine_CollectionOffer(t *testing.T) {
	h := newHarness(t)

	made, err := h.engine.MakeCollectionOffer("buyer", "punks", big.NewInt(10000))
	require.NoError(t, err)
	assert.Equal(t, entity.CreateCollectionOfferKey("punks"), made.Key)
	assert.True(t, made.CollectionOffer)

	assert.Equal(t, ErrNotHolder, h.engine.AcceptCollectionOffer("mallory", "punks", made.Index, 2))

	require.NoError(t, h.engine.AcceptCollectionOffer("owner", "punks", made.Index, 2))

	tokenOwner, err := h.assets.OwnerOf("punks", 2)
	require.NoError(t, err)
	assert.Equal(t, "buyer", tokenOwner)

	got, err := h.engine.Get(made.Key, made.Index)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.TokenId)
}

func TestEngine_AcceptMultiBalanceOffer(t *testing.T) {
	h := newHarness(t)

	made, err := h.engine.MakeOffer("buyer", "packs", 9, big.NewInt(1000))
	require.NoError(t, err)

	assert.Equal(t, ErrNotEnoughBalance, h.engine.AcceptOffer("mallory", made.Key, made.Index))

	require.NoError(t, h.engine.AcceptOffer("holder", made.Key, made.Index))
	assert.Equal(t, uint64(1), h.assets.BalanceOf("packs", 9, "buyer"))
	assert.Equal(t, uint64(4), h.assets.BalanceOf("packs", 9, "holder"))
}

func TestEngine_History(t *testing.T) {
	h := newHarness(t)

	made, err := h.engine.MakeOffer("alice", "punks", 1, big.NewInt(20))
	require.NoError(t, err)
	_, err = h.engine.MakeOffer("bob", "punks", 1, big.NewInt(40))
	require.NoError(t, err)
	_, err = h.engine.MakeOffer("alice", "punks", 1, big.NewInt(30))
	require.NoError(t, err)

	history := h.engine.History(made.Key)
	require.Len(t, history, 3)
	assert.Equal(t, entity.OfferUpdated, history[0].Status)
	assert.Equal(t, entity.OfferOpen, history[1].Status)
	assert.Equal(t, "50", history[2].Amount)

	_, err = h.engine.Get("missing", 0)
	assert.Equal(t, ErrOfferNotFound, err)
}
