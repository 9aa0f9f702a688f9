package repository

import (
	"encoding/json"
	"errors"

	"github.com/MintBay/market-engine/internal/elastic_search"
	"github.com/MintBay/market-engine/internal/entity"
	"github.com/olivere/elastic/v7"
)

var (
	ErrListingNotFound = errors.New("listing not found")
)

type ListingRepository interface {
	GetListing(listingId uint64) (entity.Listing, error)
	GetActiveListings(page, size int) ([]entity.Listing, int64, error)
	GetListingsByCollection(collection string, page, size int) ([]entity.Listing, int64, error)
	CountByStatus(status entity.ListingStatus) (int64, error)
}

type listingRepository struct {
	elastic elastic_search.Index
}

func NewListingRepository(elastic elastic_search.Index) ListingRepository {
	return listingRepository{elastic}
}

func (r listingRepository) GetListing(listingId uint64) (entity.Listing, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("id", listingId),
	)

	result, err := search(r.elastic.GetClient().
		Search(elastic_search.ListingIndex.Get()).
		Query(query).
		Size(1))

	return r.findOne(result, err)
}

func (r listingRepository) GetActiveListings(page, size int) ([]entity.Listing, int64, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("status.keyword", string(entity.ListingActive)),
	)

	result, err := search(r.elastic.GetClient().
		Search(elastic_search.ListingIndex.Get()).
		Query(query).
		Sort("listedAt", true).
		From((page - 1) * size).
		Size(size))

	return r.findMany(result, err)
}

func (r listingRepository) GetListingsByCollection(collection string, page, size int) ([]entity.Listing, int64, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("collection.keyword", collection),
	)

	result, err := search(r.elastic.GetClient().
		Search(elastic_search.ListingIndex.Get()).
		Query(query).
		Sort("listedAt", true).
		From((page - 1) * size).
		Size(size))

	return r.findMany(result, err)
}

func (r listingRepository) CountByStatus(status entity.ListingStatus) (int64, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("status.keyword", string(status)),
	)

	return count(r.elastic.GetClient().
		Count(elastic_search.ListingIndex.Get()).
		Query(query))
}

func (r listingRepository) findOne(results *elastic.SearchResult, err error) (entity.Listing, error) {
	if err != nil {
		return entity.Listing{}, err
	}

	if len(results.Hits.Hits) == 0 {
		return entity.Listing{}, ErrListingNotFound
	}

	var listing entity.Listing
	hit := results.Hits.Hits[0]
	err = json.Unmarshal(hit.Source, &listing)

	return listing, err
}

func (r listingRepository) findMany(results *elastic.SearchResult, err error) ([]entity.Listing, int64, error) {
	listings := make([]entity.Listing, 0)

	if err != nil {
		return listings, 0, err
	}

	for _, hit := range results.Hits.Hits {
		var listing entity.Listing
		if err := json.Unmarshal(hit.Source, &listing); err == nil {
			listings = append(listings, listing)
		}
	}

	return listings, results.TotalHits(), nil
}
