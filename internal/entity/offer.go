package entity

import (
	"crypto/md5"
	"fmt"
	"time"
)

type OfferStatus string

const (
	OfferOpen      OfferStatus = "open"
	OfferRejected  OfferStatus = "rejected"
	OfferCancelled OfferStatus = "cancelled"
	OfferAccepted  OfferStatus = "accepted"
	OfferUpdated   OfferStatus = "updated"
)

// Offers against one key form an append-only list; Index is the position
// within that list and never changes once assigned.
type Offer struct {
	Key             string      `json:"key"`
	Index           int         `json:"index"`
	Collection      string      `json:"collection"`
	TokenId         uint64      `json:"tokenId"`
	Buyer           string      `json:"buyer"`
	Amount          string      `json:"amount"`
	Status          OfferStatus `json:"status"`
	CollectionOffer bool        `json:"collectionOffer"`
	CreatedAt       time.Time   `json:"createdAt"`
}

func (o Offer) Slug() string {
	data := []byte(fmt.Sprintf("offer-%s-%d", o.Key, o.Index))
	return fmt.Sprintf("%x", md5.Sum(data))
}

func CreateOfferKey(collection string, tokenId uint64) string {
	data := []byte(fmt.Sprintf("offer-%s-%d", collection, tokenId))
	return fmt.Sprintf("%x", md5.Sum(data))
}

func CreateCollectionOfferKey(collection string) string {
	data := []byte(fmt.Sprintf("collectionoffer-%s", collection))
	return fmt.Sprintf("%x", md5.Sum(data))
}
