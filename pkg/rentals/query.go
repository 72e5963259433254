package rentals

import (
	"net/url"
	"strconv"
)

// VehicleQuery expresses search and pagination options for listings.
type VehicleQuery struct {
	Page     int
	Limit    int
	Search   string
	City     string
	Category string
	MinPrice float64
	MaxPrice float64
	SortBy   string
	Order    string
}

// NewVehicleQuery creates an empty query.
func NewVehicleQuery() *VehicleQuery {
	return &VehicleQuery{}
}

// WithPage sets the page number.
func (q *VehicleQuery) WithPage(page int) *VehicleQuery {
	q.Page = page

	return q
}

// WithLimit sets the page size.
func (q *VehicleQuery) WithLimit(limit int) *VehicleQuery {
	q.Limit = limit

	return q
}

// WithSearch sets free-text search.
func (q *VehicleQuery) WithSearch(search string) *VehicleQuery {
	q.Search = search

	return q
}

// WithCity filters by city.
func (q *VehicleQuery) WithCity(city string) *VehicleQuery {
	q.City = city

	return q
}

// WithCategory filters by category.
func (q *VehicleQuery) WithCategory(category string) *VehicleQuery {
	q.Category = category

	return q
}

// WithPriceRange filters by daily price; zero bounds are ignored.
func (q *VehicleQuery) WithPriceRange(minPrice, maxPrice float64) *VehicleQuery {
	q.MinPrice = minPrice
	q.MaxPrice = maxPrice

	return q
}

// WithSort orders results by field, "asc" or "desc".
func (q *VehicleQuery) WithSort(field, order string) *VehicleQuery {
	q.SortBy = field
	q.Order = order

	return q
}

// ToValues converts the query to URL values.
func (q *VehicleQuery) ToValues() url.Values {
	values := url.Values{}
	if q == nil {
		return values
	}

	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}

	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}

	setIfNotEmpty(values, "search", q.Search)
	setIfNotEmpty(values, "city", q.City)
	setIfNotEmpty(values, "category", q.Category)
	setIfNotEmpty(values, "sortBy", q.SortBy)
	setIfNotEmpty(values, "order", q.Order)

	if q.MinPrice > 0 {
		values.Set("minPrice", strconv.FormatFloat(q.MinPrice, 'f', -1, 64))
	}

	if q.MaxPrice > 0 {
		values.Set("maxPrice", strconv.FormatFloat(q.MaxPrice, 'f', -1, 64))
	}

	return values
}

// Encode renders the query with keys in sorted order, so equal queries
// produce equal strings.
func (q *VehicleQuery) Encode() string {
	return q.ToValues().Encode()
}

func setIfNotEmpty(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}
