package entity

import "time"

type StakePosition struct {
	Staker string `json:"staker"`
	Amount uint64 `json:"amount"`
}

type RewardPool struct {
	Id        int       `json:"id"`
	Balance   string    `json:"balance"`
	Remaining string    `json:"remaining"`
	OpenedAt  time.Time `json:"openedAt"`
	Finalized bool      `json:"finalized"`
}
