package entity

import (
	"crypto/md5"
	"fmt"
	"time"
)

// Auctions sharing one key are independent entries ordered by Index.
type Auction struct {
	Key           string    `json:"key"`
	Index         int       `json:"index"`
	Collection    string    `json:"collection"`
	TokenId       uint64    `json:"tokenId"`
	Quantity      uint64    `json:"quantity"`
	Seller        string    `json:"seller"`
	StartingBid   string    `json:"startingBid"`
	BuyNowPrice   string    `json:"buyNowPrice,omitempty"`
	EndTime       time.Time `json:"endTime"`
	HighestBid    string    `json:"highestBid"`
	HighestBidder string    `json:"highestBidder"`
	Accepted      bool      `json:"accepted"`
	Cancelled     bool      `json:"cancelled"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (a Auction) Slug() string {
	data := []byte(fmt.Sprintf("auction-%s-%d", a.Key, a.Index))
	return fmt.Sprintf("%x", md5.Sum(data))
}

func CreateAuctionKey(seller, collection string, tokenId, quantity uint64) string {
	data := []byte(fmt.Sprintf("auction-%s-%s-%d-%d", seller, collection, tokenId, quantity))
	return fmt.Sprintf("%x", md5.Sum(data))
}
