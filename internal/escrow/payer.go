package escrow

import (
	"math/big"
	"sync"
)

// MemoryPayer records outbound payments. Used as the settlement sink when the
// engine runs without an external payment rail, and by the test suites.
type MemoryPayer struct {
	mu   sync.Mutex
	paid map[string]*big.Int
}

func NewMemoryPayer() *MemoryPayer {
	return &MemoryPayer{paid: make(map[string]*big.Int)}
}

func (p *MemoryPayer) Pay(identity string, amount *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	total, ok := p.paid[identity]
	if !ok {
		total = big.NewInt(0)
		p.paid[identity] = total
	}
	total.Add(total, amount)

	return nil
}

func (p *MemoryPayer) Paid(identity string) *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()

	total, ok := p.paid[identity]
	if !ok {
		return big.NewInt(0)
	}

	return new(big.Int).Set(total)
}
