package staking

import (
	"errors"
	"math/big"
	"time"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrNoShares      = errors.New("account has no shares")
	ErrNothingDue    = errors.New("account is not due payment")
	ErrInitPeriod    = errors.New("init period not ended")
	ErrInitEnded     = errors.New("init period already ended")
	ErrNotAdmin      = errors.New("caller is not the admin")
)

// CustodyAccount holds escrowed membership units while they are staked.
const CustodyAccount = "staking.custody"

// Pool is the surface the fee engine and the service shell share. Deposits
// arrive from sale settlements; stake weight feeds back into fee tiers.
type Pool interface {
	Stake(staker string, quantity uint64) error
	Unstake(staker string, quantity uint64) error
	Deposit(amount *big.Int) error
	Harvest(identity string) (*big.Int, error)
	EndInitPeriod(caller string) error
	StakedBy(identity string) uint64
	TotalStaked() uint64
	CurrentStaked() ([]string, []uint64)
}

type Clock func() time.Time
