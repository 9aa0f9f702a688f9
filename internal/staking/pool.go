package staking

import (
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/MintBay/market-engine/internal/access"
	"github.com/MintBay/market-engine/internal/entity"
	"github.com/MintBay/market-engine/internal/escrow"
	"github.com/MintBay/market-engine/internal/event"
	"github.com/MintBay/market-engine/internal/factory"
	"github.com/MintBay/market-engine/internal/registry"
	"go.uber.org/zap"
)

// EpochPool distributes deposits in 30-day buckets. A pool's payees are
// snapshotted when it opens; whatever the payees of a completed pool never
// harvested is swept forward when the next pool opens.
type EpochPool interface {
	Pool
	UpdatePool()
	CurrentPool() entity.RewardPool
	CompletedPool() (entity.RewardPool, bool)
}

type rewardPool struct {
	id          int
	balance     *big.Int
	remaining   *big.Int
	opened      time.Time
	shares      map[string]uint64
	totalShares uint64
	released    map[string]bool
}

type epochPool struct {
	mu          sync.Mutex
	access      access.Control
	memberships registry.MembershipRegistry
	payer       escrow.Payer
	clock       Clock
	epoch       time.Duration

	positions   map[string]uint64
	totalStaked uint64
	initEnded   bool
	current     *rewardPool
	completed   *rewardPool
}

func NewEpochPool(ac access.Control, memberships registry.MembershipRegistry, payer escrow.Payer, epoch time.Duration, clock Clock) EpochPool {
	p := &epochPool{
		access:      ac,
		memberships: memberships,
		payer:       payer,
		clock:       clock,
		epoch:       epoch,
		positions:   make(map[string]uint64),
	}
	p.current = p.newRewardPool(0)

	return p
}

func (p *epochPool) newRewardPool(id int) *rewardPool {
	shares := make(map[string]uint64)
	var total uint64
	for staker, amount := range p.positions {
		if amount == 0 {
			continue
		}
		shares[staker] = amount
		total += amount
	}

	return &rewardPool{
		id:          id,
		balance:     big.NewInt(0),
		remaining:   big.NewInt(0),
		opened:      p.clock(),
		shares:      shares,
		totalShares: total,
		released:    make(map[string]bool),
	}
}

func (p *epochPool) Stake(staker string, quantity uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if quantity == 0 {
		return ErrInvalidAmount
	}

	p.rollover()

	if err := p.memberships.Transfer(staker, CustodyAccount, entity.VipTier, quantity); err != nil {
		return err
	}

	p.positions[staker] += quantity
	p.totalStaked += quantity

	// Stakes made before the init period closes still join the first pool.
	if !p.initEnded {
		p.current.shares[staker] = p.positions[staker]
		p.current.totalShares += quantity
	}

	zap.L().With(zap.String("staker", staker), zap.Uint64("total", p.positions[staker])).Info("Staking: Membership staked")
	event.EmitEvent(event.MembershipStakedEvent, factory.CreateStakeAction(entity.StakedAction, staker, p.positions[staker], p.clock()))

	return nil
}

func (p *epochPool) Unstake(staker string, quantity uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if quantity == 0 || quantity > p.positions[staker] {
		return ErrInvalidAmount
	}

	p.rollover()

	if err := p.memberships.Transfer(CustodyAccount, staker, entity.VipTier, quantity); err != nil {
		return err
	}

	p.positions[staker] -= quantity
	p.totalStaked -= quantity

	if !p.initEnded {
		p.current.shares[staker] = p.positions[staker]
		p.current.totalShares -= quantity
	}

	event.EmitEvent(event.MembershipUnstakedEvent, factory.CreateStakeAction(entity.UnstakedAction, staker, p.positions[staker], p.clock()))

	return nil
}

func (p *epochPool) Deposit(amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	p.rollover()
	p.current.balance.Add(p.current.balance, amount)

	return nil
}

func (p *epochPool) Harvest(identity string) (*big.Int, error) {
	p.mu.Lock()

	p.rollover()

	if p.completed == nil {
		p.mu.Unlock()
		return big.NewInt(0), nil
	}

	share := p.completed.shares[identity]
	if share == 0 {
		p.mu.Unlock()
		return nil, ErrNoShares
	}
	if p.completed.released[identity] {
		p.mu.Unlock()
		return nil, ErrNothingDue
	}

	owed := new(big.Int).Mul(p.completed.balance, new(big.Int).SetUint64(share))
	owed.Div(owed, new(big.Int).SetUint64(p.completed.totalShares))

	p.completed.released[identity] = true
	p.completed.remaining.Sub(p.completed.remaining, owed)
	p.mu.Unlock()

	if err := p.payer.Pay(identity, owed); err != nil {
		return nil, err
	}

	zap.L().With(zap.String("identity", identity), zap.String("amount", owed.String())).Info("Staking: Harvest")

	return owed, nil
}

func (p *epochPool) EndInitPeriod(caller string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.access.Has(caller, entity.AdminRole) {
		return ErrNotAdmin
	}
	if p.initEnded {
		return ErrInitEnded
	}

	p.initEnded = true
	p.current.opened = p.clock()

	return nil
}

// UpdatePool forces an epoch check outside a deposit, for the admin CLI.
func (p *epochPool) UpdatePool() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rollover()
}

// rollover finalizes the current pool once its epoch has elapsed. The
// previously completed pool's unclaimed remainder seeds the fresh pool.
func (p *epochPool) rollover() {
	if !p.initEnded {
		return
	}
	if p.clock().Sub(p.current.opened) < p.epoch {
		return
	}

	fresh := p.newRewardPool(p.current.id + 1)
	if p.completed != nil && p.completed.remaining.Sign() > 0 {
		fresh.balance.Add(fresh.balance, p.completed.remaining)
	}

	p.current.remaining = new(big.Int).Set(p.current.balance)
	p.completed = p.current
	p.current = fresh

	zap.L().With(
		zap.Int("completed", p.completed.id),
		zap.Int("current", p.current.id),
		zap.String("balance", p.completed.balance.String()),
	).Info("Staking: Pool rolled over")
}

func (p *epochPool) StakedBy(identity string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.positions[identity]
}

func (p *epochPool) TotalStaked() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.totalStaked
}

func (p *epochPool) CurrentStaked() ([]string, []uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stakers := make([]string, 0)
	for staker, amount := range p.positions {
		if amount > 0 {
			stakers = append(stakers, staker)
		}
	}
	sort.Strings(stakers)

	amounts := make([]uint64, len(stakers))
	for i, staker := range stakers {
		amounts[i] = p.positions[staker]
	}

	return stakers, amounts
}

func (p *epochPool) CurrentPool() entity.RewardPool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return entity.RewardPool{
		Id:       p.current.id,
		Balance:  p.current.balance.String(),
		OpenedAt: p.current.opened,
	}
}

func (p *epochPool) CompletedPool() (entity.RewardPool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.completed == nil {
		return entity.RewardPool{}, false
	}

	return entity.RewardPool{
		Id:        p.completed.id,
		Balance:   p.completed.balance.String(),
		Remaining: p.completed.remaining.String(),
		OpenedAt:  p.completed.opened,
		Finalized: true,
	}, true
}
