package entity

import "math/big"

// Amounts cross the wire as decimal strings. Zero and nil both render "0".
func FormatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}

	return amount.String()
}

func ParseAmount(value string) *big.Int {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return big.NewInt(0)
	}

	return amount
}
