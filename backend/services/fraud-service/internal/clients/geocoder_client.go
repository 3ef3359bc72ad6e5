package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"chargeguard/backend/services/fraud-service/internal/models"
)

// ErrIncompleteAddress means the address lacks a street, zip, city or country.
var ErrIncompleteAddress = errors.New("geocoder: incomplete address")

// GeocoderClient resolves charge point addresses through a Nominatim compatible search API.
type GeocoderClient struct {
	base    *BaseClient
	limiter *rate.Limiter
}

// NewGeocoderClient builds the client. interval is the minimum spacing between
// requests; public Nominatim allows one per second.
func NewGeocoderClient(baseURL, userAgent string, interval time.Duration, httpClient HTTPDoer) *GeocoderClient {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &GeocoderClient{
		base:    NewBaseClient(baseURL, httpClient, map[string]string{"User-Agent": userAgent}),
		limiter: rate.NewLimiter(limit, 1),
	}
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode returns the coordinates of addr. found is false when the service has no match.
func (c *GeocoderClient) Geocode(ctx context.Context, addr models.ChargePointAddress) (lat, lng float64, found bool, err error) {
	query, err := FormatAddress(addr)
	if err != nil {
		return 0, 0, false, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, 0, false, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	status, body, err := c.base.Get(ctx, "/search", params)
	if err != nil {
		return 0, 0, false, fmt.Errorf("geocoder: request: %w", err)
	}
	if status != http.StatusOK {
		return 0, 0, false, fmt.Errorf("geocoder: unexpected status %d", status)
	}

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return 0, 0, false, fmt.Errorf("geocoder: decode: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, false, nil
	}
	lat, err = strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("geocoder: latitude: %w", err)
	}
	lng, err = strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("geocoder: longitude: %w", err)
	}
	return lat, lng, true, nil
}

var (
	repeatedCommas = regexp.MustCompile(`\s*,[\s,]*`)
	repeatedSpaces = regexp.MustCompile(`\s{2,}`)
)

// FormatAddress builds the search query. Zip and city repeated inside the street
// field are removed; Dutch addresses use the "street, zip city, Netherlands" form.
func FormatAddress(addr models.ChargePointAddress) (string, error) {
	street := strings.TrimSpace(addr.Address)
	zip := strings.TrimSpace(addr.ZIP)
	city := strings.TrimSpace(addr.City)
	country := strings.TrimSpace(addr.Country)
	if street == "" || zip == "" || city == "" || country == "" {
		return "", ErrIncompleteAddress
	}

	for _, token := range []string{zip, strings.ReplaceAll(zip, " ", ""), city} {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(token) + `\b`)
		street = re.ReplaceAllString(street, "")
	}
	street = repeatedCommas.ReplaceAllString(street, ", ")
	street = repeatedSpaces.ReplaceAllString(street, " ")
	street = strings.Trim(street, " ,")
	if street == "" {
		return "", ErrIncompleteAddress
	}

	if strings.EqualFold(country, "NLD") {
		return fmt.Sprintf("%s, %s %s, Netherlands", street, zip, city), nil
	}
	return fmt.Sprintf("%s, %s, %s, %s", street, zip, city, country), nil
}
