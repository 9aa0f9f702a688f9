package entity

import (
	"fmt"
	"github.com/gosimple/slug"
	"time"
)

type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingSold      ListingStatus = "sold"
	ListingCancelled ListingStatus = "cancelled"
)

type Listing struct {
	Id         uint64        `json:"id"`
	Collection string        `json:"collection"`
	TokenId    uint64        `json:"tokenId"`
	Quantity   uint64        `json:"quantity"`
	Price      string        `json:"price"`
	Lister     string        `json:"lister"`
	Status     ListingStatus `json:"status"`
	ListedAt   time.Time     `json:"listedAt"`
	ClosedAt   *time.Time    `json:"closedAt,omitempty"`
}

func (l Listing) Slug() string {
	return CreateListingSlug(l.Id)
}

func CreateListingSlug(id uint64) string {
	return slug.Make(fmt.Sprintf("listing-%d", id))
}
