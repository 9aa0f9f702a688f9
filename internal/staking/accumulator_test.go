package staking

import (
	"math/big"
	"testing"
	"time"

	"github.com/MintBay/market-engine/internal/access"
	"github.com/MintBay/market-engine/internal/entity"
	"github.com/MintBay/market-engine/internal/escrow"
	"github.com/MintBay/market-engine/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scale = big.NewInt(1000000000000)

type accHarness struct {
	pool        AccumulatorPool
	payer       *escrow.MemoryPayer
	memberships *registry.MemoryMembershipRegistry
}

func newAccHarness(t *testing.T) *accHarness {
	t.Helper()

	h := &accHarness{
		payer:       escrow.NewMemoryPayer(),
		memberships: registry.NewMemoryMembershipRegistry(),
	}
	h.memberships.Issue("alice", entity.VipTier, 10)
	h.memberships.Issue("bob", entity.VipTier, 10)
	h.memberships.Issue("carol", entity.VipTier, 10)

	h.pool = NewAccumulatorPool(access.New("admin"), h.memberships, h.payer, scale, time.Now)

	return h
}

func TestAccumulatorPool_ProportionalRewards(t *testing.T) {
	h := newAccHarness(t)
	require.NoError(t, h.pool.EndInitPeriod("admin"))

	require.NoError(t, h.pool.Stake("alice", 1))
	require.NoError(t, h.pool.Stake("bob", 1))
	require.NoError(t, h.pool.Stake("carol", 3))

	require.NoError(t, h.pool.Deposit(big.NewInt(5000)))
	require.NoError(t, h.pool.Deposit(big.NewInt(5000)))

	// alice holds 1 of 5 staked units across 10000 deposited.
	assert.Equal(t, big.NewInt(2000), h.pool.Reward("alice"))
	assert.Equal(t, big.NewInt(6000), h.pool.Reward("carol"))

	paid, err := h.pool.Harvest("alice")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2000), paid)
	assert.Equal(t, big.NewInt(2000), h.payer.Paid("alice"))
	assert.Zero(t, big.NewInt(0).Cmp(h.pool.Reward("alice")))
	assert.Equal(t, big.NewInt(2000), h.pool.ReleasedReward("alice"))
}

func TestAccumulatorPool_StakeSettlesAndPays(t *testing.T) {
	h := newAccHarness(t)
	require.NoError(t, h.pool.EndInitPeriod("admin"))

	require.NoError(t, h.pool.Stake("alice", 1))
	require.NoError(t, h.pool.Stake("bob", 1))
	require.NoError(t, h.pool.Stake("carol", 3))

	require.NoError(t, h.pool.Deposit(big.NewInt(5000)))
	require.NoError(t, h.pool.Deposit(big.NewInt(5000)))

	// Adding stake pays the pending 2000 on the spot.
	require.NoError(t, h.pool.Stake("alice", 3))
	assert.Equal(t, big.NewInt(2000), h.payer.Paid("alice"))
	assert.Zero(t, big.NewInt(0).Cmp(h.pool.Reward("alice")))

	// Alice now holds 4 of 8 units.
	require.NoError(t, h.pool.Deposit(big.NewInt(3000)))
	assert.Equal(t, big.NewInt(1500), h.pool.Reward("alice"))
}

func TestAccumulatorPool_InitPeriodGatesPayout(t *testing.T) {
	h := newAccHarness(t)

	require.NoError(t, h.pool.Stake("alice", 1))
	require.NoError(t, h.pool.Deposit(big.NewInt(100)))

	_, err := h.pool.Harvest("alice")
	assert.Equal(t, ErrInitPeriod, err)

	// Accrual continued through the init period.
	assert.Equal(t, big.NewInt(100), h.pool.Reward("alice"))

	require.NoError(t, h.pool.EndInitPeriod("admin"))
	paid, err := h.pool.Harvest("alice")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), paid)
}

func TestAccumulatorPool_AccrualSurvivesInitStake(t *testing.T) {
	h := newAccHarness(t)

	require.NoError(t, h.pool.Stake("alice", 1))
	require.NoError(t, h.pool.Deposit(big.NewInt(100)))

	// Settling during init carries the pending balance instead of paying.
	require.NoError(t, h.pool.Stake("alice", 1))
	assert.Equal(t, big.NewInt(0), h.payer.Paid("alice"))
	assert.Equal(t, big.NewInt(100), h.pool.Reward("alice"))

	require.NoError(t, h.pool.EndInitPeriod("admin"))
	paid, err := h.pool.Harvest("alice")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), paid)
}

func TestAccumulatorPool_DepositWithNoStakeIsParked(t *testing.T) {
	h := newAccHarness(t)
	require.NoError(t, h.pool.EndInitPeriod("admin"))

	require.NoError(t, h.pool.Deposit(big.NewInt(500)))

	require.NoError(t, h.pool.Stake("alice", 1))
	assert.Equal(t, big.NewInt(0), h.pool.Reward("alice"))

	// The parked deposit distributes with the next one.
	require.NoError(t, h.pool.Deposit(big.NewInt(100)))
	assert.Equal(t, big.NewInt(600), h.pool.Reward("alice"))
}

func TestAccumulatorPool_UnstakeValidation(t *testing.T) {
	h := newAccHarness(t)

	require.NoError(t, h.pool.Stake("alice", 2))
	assert.Equal(t, ErrInvalidAmount, h.pool.Unstake("alice", 3))
	require.NoError(t, h.pool.Unstake("alice", 2))
	assert.Equal(t, uint64(10), h.memberships.BalanceOf("alice", entity.VipTier))
}

func TestAccumulatorPool_RewardConservation(t *testing.T) {
	h := newAccHarness(t)
	require.NoError(t, h.pool.EndInitPeriod("admin"))

	require.NoError(t, h.pool.Stake("alice", 1))
	require.NoError(t, h.pool.Stake("bob", 2))

	require.NoError(t, h.pool.Deposit(big.NewInt(1000)))

	alicePaid, err := h.pool.Harvest("alice")
	require.NoError(t, err)
	bobPaid, err := h.pool.Harvest("bob")
	require.NoError(t, err)

	total := new(big.Int).Add(alicePaid, bobPaid)
	assert.True(t, total.Cmp(big.NewInt(1000)) <= 0)
}
