package rates

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMedianRateSource asserts URL generation and response parsing against
// a stub pricing provider.
func TestMedianRateSource(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/rates/USD/median", r.URL.Path)
			fmt.Fprint(w, `{"currency":"USD","median":50000}`)
		},
	))
	defer server.Close()

	source := NewWebAPIRateSource(MedianRateSource{URL: server.URL})
	rate, err := source.MedianRate(context.Background(), "USD")
	require.NoError(t, err)
	require.Equal(t, float64(50000), rate)
}

// TestMedianRateInvalid asserts that non-positive and malformed rates are
// rejected.
func TestMedianRateInvalid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		body string
		code int
	}{
		{
			name: "zero rate",
			body: `{"median":0}`,
			code: http.StatusOK,
		},
		{
			name: "negative rate",
			body: `{"median":-1}`,
			code: http.StatusOK,
		},
		{
			name: "not json",
			body: `oops`,
			code: http.StatusOK,
		},
		{
			name: "server error",
			body: ``,
			code: http.StatusInternalServerError,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(testCase.code)
					fmt.Fprint(w, testCase.body)
				},
			))
			defer server.Close()

			source := NewWebAPIRateSource(
				MedianRateSource{URL: server.URL},
			)
			_, err := source.MedianRate(
				context.Background(), "USD",
			)
			require.Error(t, err)
		})
	}
}
