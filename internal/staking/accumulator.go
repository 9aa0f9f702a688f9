package staking

import (
	"math/big"
	"sort"
	"sync"

	"github.com/MintBay/market-engine/internal/access"
	"github.com/MintBay/market-engine/internal/entity"
	"github.com/MintBay/market-engine/internal/escrow"
	"github.com/MintBay/market-engine/internal/event"
	"github.com/MintBay/market-engine/internal/factory"
	"github.com/MintBay/market-engine/internal/registry"
	"go.uber.org/zap"
)

// AccumulatorPool replaces the epoch sweep with a scaled reward-per-share
// value bumped on every deposit. Rewards accrue from the first deposit but
// nothing is paid out until the init period ends.
type AccumulatorPool interface {
	Pool
	Reward(identity string) *big.Int
	ReleasedReward(identity string) *big.Int
}

type position struct {
	amount   uint64
	debt     *big.Int
	carried  *big.Int
	released *big.Int
}

type accumulatorPool struct {
	mu          sync.Mutex
	access      access.Control
	memberships registry.MembershipRegistry
	payer       escrow.Payer
	clock       Clock
	scale       *big.Int

	positions   map[string]*position
	totalStaked uint64
	acc         *big.Int
	dust        *big.Int
	initEnded   bool
}

func NewAccumulatorPool(ac access.Control, memberships registry.MembershipRegistry, payer escrow.Payer, scale *big.Int, clock Clock) AccumulatorPool {
	return &accumulatorPool{
		access:      ac,
		memberships: memberships,
		payer:       payer,
		clock:       clock,
		scale:       new(big.Int).Set(scale),
		positions:   make(map[string]*position),
		acc:         big.NewInt(0),
		dust:        big.NewInt(0),
	}
}

func (p *accumulatorPool) position(identity string) *position {
	pos, ok := p.positions[identity]
	if !ok {
		pos = &position{debt: big.NewInt(0), carried: big.NewInt(0), released: big.NewInt(0)}
		p.positions[identity] = pos
	}

	return pos
}

// pending is the unsettled reward for a position at the current accumulator.
func (p *accumulatorPool) pending(pos *position) *big.Int {
	earned := new(big.Int).Mul(new(big.Int).SetUint64(pos.amount), p.acc)
	earned.Div(earned, p.scale)
	earned.Sub(earned, pos.debt)
	earned.Add(earned, pos.carried)

	return earned
}

func (p *accumulatorPool) settleDebt(pos *position) {
	pos.debt = new(big.Int).Mul(new(big.Int).SetUint64(pos.amount), p.acc)
	pos.debt.Div(pos.debt, p.scale)
}

func (p *accumulatorPool) Stake(staker string, quantity uint64) error {
	p.mu.Lock()

	if quantity == 0 {
		p.mu.Unlock()
		return ErrInvalidAmount
	}

	if err := p.memberships.Transfer(staker, CustodyAccount, entity.VipTier, quantity); err != nil {
		p.mu.Unlock()
		return err
	}

	payout := p.settle(staker)

	pos := p.position(staker)
	pos.amount += quantity
	p.totalStaked += quantity
	p.settleDebt(pos)

	newTotal := pos.amount
	at := p.clock()
	p.mu.Unlock()

	if payout != nil && payout.Sign() > 0 {
		if err := p.payer.Pay(staker, payout); err != nil {
			return err
		}
	}

	event.EmitEvent(event.MembershipStakedEvent, factory.CreateStakeAction(entity.StakedAction, staker, newTotal, at))

	return nil
}

func (p *accumulatorPool) Unstake(staker string, quantity uint64) error {
	p.mu.Lock()

	pos := p.position(staker)
	if quantity == 0 || quantity > pos.amount {
		p.mu.Unlock()
		return ErrInvalidAmount
	}

	if err := p.memberships.Transfer(CustodyAccount, staker, entity.VipTier, quantity); err != nil {
		p.mu.Unlock()
		return err
	}

	payout := p.settle(staker)

	pos.amount -= quantity
	p.totalStaked -= quantity
	p.settleDebt(pos)

	newTotal := pos.amount
	at := p.clock()
	p.mu.Unlock()

	if payout != nil && payout.Sign() > 0 {
		if err := p.payer.Pay(staker, payout); err != nil {
			return err
		}
	}

	event.EmitEvent(event.MembershipUnstakedEvent, factory.CreateStakeAction(entity.UnstakedAction, staker, newTotal, at))

	return nil
}

// settle folds pending rewards either into an immediate payout (after init)
// or into the position's carried balance (during init). Caller holds the lock.
func (p *accumulatorPool) settle(identity string) *big.Int {
	pos := p.position(identity)
	pend := p.pending(pos)

	if !p.initEnded {
		pos.carried = pend
		p.settleDebt(pos)
		return nil
	}

	pos.carried = big.NewInt(0)
	pos.released.Add(pos.released, pend)
	p.settleDebt(pos)

	return pend
}

func (p *accumulatorPool) Deposit(amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	incoming := new(big.Int).Add(amount, p.dust)
	if p.totalStaked == 0 {
		p.dust = incoming
		return nil
	}

	total := new(big.Int).SetUint64(p.totalStaked)
	delta := new(big.Int).Mul(incoming, p.scale)
	delta.Div(delta, total)
	p.acc.Add(p.acc, delta)

	// Sub-scale residue carries into the next deposit so nothing is burned.
	distributed := new(big.Int).Mul(delta, total)
	distributed.Div(distributed, p.scale)
	p.dust = new(big.Int).Sub(incoming, distributed)

	zap.L().With(
		zap.String("amount", amount.String()),
		zap.String("accumulator", p.acc.String()),
	).Debug("Staking: Deposit")

	return nil
}

func (p *accumulatorPool) Harvest(identity string) (*big.Int, error) {
	p.mu.Lock()

	if !p.initEnded {
		p.mu.Unlock()
		return nil, ErrInitPeriod
	}

	payout := p.settle(identity)
	p.mu.Unlock()

	if payout.Sign() == 0 {
		return big.NewInt(0), nil
	}

	if err := p.payer.Pay(identity, payout); err != nil {
		return nil, err
	}

	return payout, nil
}

func (p *accumulatorPool) EndInitPeriod(caller string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.access.Has(caller, entity.AdminRole) {
		return ErrNotAdmin
	}
	if p.initEnded {
		return ErrInitEnded
	}

	p.initEnded = true

	return nil
}

func (p *accumulatorPool) Reward(identity string) *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.pending(p.position(identity))
}

func (p *accumulatorPool) ReleasedReward(identity string) *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return new(big.Int).Set(p.position(identity).released)
}

func (p *accumulatorPool) StakedBy(identity string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.position(identity).amount
}

func (p *accumulatorPool) TotalStaked() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.totalStaked
}

func (p *accumulatorPool) CurrentStaked() ([]string, []uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stakers := make([]string, 0)
	for staker, pos := range p.positions {
		if pos.amount > 0 {
			stakers = append(stakers, staker)
		}
	}
	sort.Strings(stakers)

	amounts := make([]uint64, len(stakers))
	for i, staker := range stakers {
		amounts[i] = p.positions[staker].amount
	}

	return stakers, amounts
}
