package entity

type Royalty struct {
	Collection string `json:"collection"`
	Recipient  string `json:"recipient"`
	Bps        uint64 `json:"bps"`
}
