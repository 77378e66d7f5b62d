package geocode

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// fakeGoogleAPI serves the Geocoding and Time Zone endpoints in process.
// A nil handler fails the test when its endpoint is called.
type fakeGoogleAPI struct {
	t        *testing.T
	geocode  http.HandlerFunc
	timezone http.HandlerFunc

	geocodeCalls  atomic.Int32
	timezoneCalls atomic.Int32
}

// sameHandler answers both endpoints with h.
func sameHandler(t *testing.T, h http.HandlerFunc) *fakeGoogleAPI {
	return &fakeGoogleAPI{t: t, geocode: h, timezone: h}
}

func (f *fakeGoogleAPI) RoundTrip(req *http.Request) (*http.Response, error) {
	endpoint := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path

	var h http.HandlerFunc
	switch endpoint {
	case googleGeocodeURL:
		f.geocodeCalls.Add(1)
		h = f.geocode
	case googleTimezoneURL:
		f.timezoneCalls.Add(1)
		h = f.timezone
	default:
		f.t.Errorf("request to unknown endpoint %s", endpoint)
	}

	rec := httptest.NewRecorder()
	if h == nil {
		f.t.Errorf("unexpected call to %s", endpoint)
		rec.WriteHeader(http.StatusNotFound)
	} else {
		h(rec, req)
	}
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

func newGoogleTestProvider(t *testing.T, api *fakeGoogleAPI, opts ...GoogleOption) *GoogleProvider {
	t.Helper()
	if api.t == nil {
		api.t = t
	}
	base := []GoogleOption{
		WithHTTPClient(&http.Client{Transport: api}),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithClock(func() time.Time { return time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC) }),
	}
	return NewGoogleProvider("test-key", append(base, opts...)...)
}
