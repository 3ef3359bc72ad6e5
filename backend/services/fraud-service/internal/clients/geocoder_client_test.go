package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chargeguard/backend/services/fraud-service/internal/models"
)

func TestFormatAddress(t *testing.T) {
	got, err := FormatAddress(models.ChargePointAddress{
		Address: "Teststraat 1, 1234AB Den Haag",
		ZIP:     "1234 AB",
		City:    "Den Haag",
		Country: "NLD",
	})
	require.NoError(t, err)
	assert.Equal(t, "Teststraat 1, 1234 AB Den Haag, Netherlands", got)

	got, err = FormatAddress(models.ChargePointAddress{Address: "Rue 5", ZIP: "75001", City: "Paris", Country: "FRA"})
	require.NoError(t, err)
	assert.Equal(t, "Rue 5, 75001, Paris, FRA", got)

	_, err = FormatAddress(models.ChargePointAddress{Address: "   ", ZIP: "1234AB", City: "Den Haag", Country: "NLD"})
	assert.ErrorIs(t, err, ErrIncompleteAddress)
	_, err = FormatAddress(models.ChargePointAddress{Address: "Teststraat 1", ZIP: "1234AB", City: "Den Haag"})
	assert.ErrorIs(t, err, ErrIncompleteAddress)
}

func TestGeocode(t *testing.T) {
	var gotQuery, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		if gotQuery == "Nowhere 1, 0000ZZ Void, Netherlands" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"lat":"52.0705","lon":"4.3007"}]`))
	}))
	defer srv.Close()

	client := NewGeocoderClient(srv.URL, "chargeguard-test", 0, srv.Client())
	ctx := context.Background()

	lat, lng, found, err := client.Geocode(ctx, models.ChargePointAddress{Address: "Teststraat 1", ZIP: "1234AB", City: "Den Haag", Country: "NLD"})
	require.NoError(t, err)
	assert.True(t, found)
	assert.InDelta(t, 52.0705, lat, 1e-9)
	assert.InDelta(t, 4.3007, lng, 1e-9)
	assert.Equal(t, "Teststraat 1, 1234AB Den Haag, Netherlands", gotQuery)
	assert.Equal(t, "chargeguard-test", gotAgent)

	_, _, found, err = client.Geocode(ctx, models.ChargePointAddress{Address: "Nowhere 1", ZIP: "0000ZZ", City: "Void", Country: "NLD"})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGeocodeRespectsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewGeocoderClient(srv.URL, "test", time.Hour, srv.Client())
	addr := models.ChargePointAddress{Address: "A 1", ZIP: "1000AA", City: "X", Country: "NLD"}

	_, _, _, err := client.Geocode(context.Background(), addr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, _, err = client.Geocode(ctx, addr)
	assert.Error(t, err)
}

func TestGeocodeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewGeocoderClient(srv.URL, "test", 0, srv.Client())
	_, _, _, err := client.Geocode(context.Background(), models.ChargePointAddress{Address: "A 1", ZIP: "1000AA", City: "X", Country: "NLD"})
	assert.Error(t, err)
}
