package addressvalidator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lcbregistry/internal/regerr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestHTTPValidator_Standardize_ReturnsMatchedAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(apiResponse{
			Matched: true, AddressLine1: "123 MAIN ST", City: "OLYMPIA", State: "WA", ZipCode: "98501",
		})
	}))
	defer server.Close()

	v := NewHTTPValidator(server.URL, "test-key", time.Second, time.Millisecond)
	std, err := v.Standardize(context.Background(), "123 Main St, Olympia, WA")
	require.NoError(t, err)
	require.NotNil(t, std)
	require.Equal(t, "OLYMPIA", std.City)
}

func TestHTTPValidator_Standardize_NoMatchReturnsNilWithoutError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{Matched: false})
	}))
	defer server.Close()

	v := NewHTTPValidator(server.URL, "test-key", time.Second, time.Millisecond)
	std, err := v.Standardize(context.Background(), "not a real address")
	require.NoError(t, err)
	require.Nil(t, std)
}

func TestHTTPValidator_Standardize_EmptyAPIKeyIsUnavailable(t *testing.T) {
	v := NewHTTPValidator("http://unused.invalid", "", time.Second, time.Millisecond)
	_, err := v.Standardize(context.Background(), "123 Main St")
	require.ErrorIs(t, err, regerr.ErrValidatorUnavailable)
}

func TestHTTPValidator_Standardize_ThrottlesSequentialRequests(t *testing.T) {
	var callCount int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		json.NewEncoder(w).Encode(apiResponse{Matched: true})
	}))
	defer server.Close()

	throttle := 20 * time.Millisecond
	v := NewHTTPValidator(server.URL, "test-key", time.Second, throttle)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := v.Standardize(context.Background(), "addr")
		require.NoError(t, err)
	}
	elapsed := time.Since(start)
	require.GreaterOrEqual(t, elapsed, 2*throttle, "three throttled calls should take at least two intervals")
}
