package escrow

import (
	"errors"
	"math/big"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrNoFunds = errors.New("no funds")
)

// Payer is the outward settlement boundary. Everything inside the engines is
// bookkeeping; the Payer is the only place value actually leaves the system.
type Payer interface {
	Pay(identity string, amount *big.Int) error
}

// Ledger is the pull-payment account map shared by every engine. Credits
// accumulate; a withdrawal zeroes the balance before the Payer is invoked so
// a re-entrant call observes an empty account.
type Ledger interface {
	Credit(identity string, amount *big.Int)
	BalanceOf(identity string) *big.Int
	Withdraw(identity string) (*big.Int, error)
	WithdrawTo(identity, recipient string) (*big.Int, error)
	TotalHeld() *big.Int
	TotalCredited() *big.Int
	TotalWithdrawn() *big.Int
}

type ledger struct {
	mu        sync.Mutex
	payer     Payer
	balances  map[string]*big.Int
	credited  *big.Int
	withdrawn *big.Int
}

func NewLedger(payer Payer) Ledger {
	return &ledger{
		payer:     payer,
		balances:  make(map[string]*big.Int),
		credited:  big.NewInt(0),
		withdrawn: big.NewInt(0),
	}
}

func (l *ledger) Credit(identity string, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[identity]
	if !ok {
		balance = big.NewInt(0)
		l.balances[identity] = balance
	}
	balance.Add(balance, amount)
	l.credited.Add(l.credited, amount)

	zap.L().With(
		zap.String("identity", identity),
		zap.String("amount", amount.String()),
	).Debug("Ledger: Credit")
}

func (l *ledger) BalanceOf(identity string) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[identity]
	if !ok {
		return big.NewInt(0)
	}

	return new(big.Int).Set(balance)
}

func (l *ledger) Withdraw(identity string) (*big.Int, error) {
	return l.WithdrawTo(identity, identity)
}

func (l *ledger) WithdrawTo(identity, recipient string) (*big.Int, error) {
	l.mu.Lock()

	balance, ok := l.balances[identity]
	if !ok || balance.Sign() == 0 {
		l.mu.Unlock()
		return nil, ErrNoFunds
	}

	amount := new(big.Int).Set(balance)
	balance.SetInt64(0)
	l.withdrawn.Add(l.withdrawn, amount)
	l.mu.Unlock()

	if err := l.payer.Pay(recipient, amount); err != nil {
		// Restore the balance so a failed transfer never burns funds.
		l.mu.Lock()
		l.balances[identity].Add(l.balances[identity], amount)
		l.withdrawn.Sub(l.withdrawn, amount)
		l.mu.Unlock()
		return nil, err
	}

	zap.L().With(
		zap.String("identity", identity),
		zap.String("recipient", recipient),
		zap.String("amount", amount.String()),
	).Debug("Ledger: Withdraw")

	return amount, nil
}

func (l *ledger) TotalHeld() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	held := big.NewInt(0)
	for _, balance := range l.balances {
		held.Add(held, balance)
	}

	return held
}

func (l *ledger) TotalCredited() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return new(big.Int).Set(l.credited)
}

func (l *ledger) TotalWithdrawn() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return new(big.Int).Set(l.withdrawn)
}
