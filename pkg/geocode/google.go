package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/natal-cli/internal/resilience"
)

const (
	googleGeocodeURL  = "https://maps.googleapis.com/maps/api/geocode/json"
	googleTimezoneURL = "https://maps.googleapis.com/maps/api/timezone/json"
)

// googleGeocodeResponse is the JSON response from the Google Geocoding API.
type googleGeocodeResponse struct {
	Results []googleResult `json:"results"`
	Status  string         `json:"status"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	FormattedAddress  string `json:"formatted_address"`
	AddressComponents []struct {
		LongName string   `json:"long_name"`
		Types    []string `json:"types"`
	} `json:"address_components"`
}

func (r googleResult) country() string {
	for _, c := range r.AddressComponents {
		for _, t := range c.Types {
			if t == "country" {
				return c.LongName
			}
		}
	}
	return ""
}

// googleTimezoneResponse is the JSON response from the Google Time Zone API.
type googleTimezoneResponse struct {
	DSTOffset    int    `json:"dstOffset"`
	RawOffset    int    `json:"rawOffset"`
	Status       string `json:"status"`
	TimeZoneID   string `json:"timeZoneId"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// GoogleProvider resolves places with the Google Geocoding API and attaches
// a zone from the Google Time Zone API.
type GoogleProvider struct {
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	now        func() time.Time
}

// GoogleOption configures a GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithHTTPClient sets the HTTP client used for both APIs.
func WithHTTPClient(hc *http.Client) GoogleOption {
	return func(p *GoogleProvider) {
		p.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit shared by both APIs.
func WithRateLimit(rps float64) GoogleOption {
	return func(p *GoogleProvider) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLimiter replaces the rate limiter.
func WithLimiter(l *rate.Limiter) GoogleOption {
	return func(p *GoogleProvider) {
		p.limiter = l
	}
}

// WithClock sets the clock that dates Time Zone API requests.
func WithClock(now func() time.Time) GoogleOption {
	return func(p *GoogleProvider) {
		p.now = now
	}
}

// WithCircuitBreaker guards API calls with cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) GoogleOption {
	return func(p *GoogleProvider) {
		p.breaker = cb
	}
}

// NewGoogleProvider creates a GoogleProvider. It is unavailable without an
// API key.
func NewGoogleProvider(apiKey string, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.breaker == nil {
		p.breaker = resilience.NewCircuitBreaker(resilience.FromCircuitConfig(0, 0))
	}
	return p
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// Available implements Provider.
func (p *GoogleProvider) Available() bool { return p.apiKey != "" }

// Lookup implements Provider. When the Time Zone API fails the match is
// returned without a zone rather than with a guessed one.
func (p *GoogleProvider) Lookup(ctx context.Context, q Query) (*Match, error) {
	if p.apiKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}

	result, err := resilience.ExecuteVal(ctx, p.breaker, func(ctx context.Context) (*googleResult, error) {
		return p.geocode(ctx, q.Raw)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	m := &Match{
		Latitude:      result.Geometry.Location.Lat,
		Longitude:     result.Geometry.Location.Lng,
		FormattedName: result.FormattedAddress,
		CountryName:   result.country(),
	}

	tz, err := resilience.ExecuteVal(ctx, p.breaker, func(ctx context.Context) (*googleTimezoneResponse, error) {
		return p.timezone(ctx, m.Latitude, m.Longitude)
	})
	if err != nil {
		zap.L().Debug("geocode: google timezone unavailable, returning match without zone",
			zap.String("place", m.FormattedName),
			zap.Error(err),
		)
		return m, nil
	}
	m.ZoneName = tz.TimeZoneID
	m.OffsetSeconds = tz.RawOffset + tz.DSTOffset
	return m, nil
}

func (p *GoogleProvider) geocode(ctx context.Context, address string) (*googleResult, error) {
	params := url.Values{
		"address": {address},
		"key":     {p.apiKey},
	}
	var resp googleGeocodeResponse
	if err := p.get(ctx, googleGeocodeURL, params, &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case "OK":
		if len(resp.Results) == 0 {
			return nil, nil
		}
		return &resp.Results[0], nil
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, eris.Errorf("geocode: google geocoding status %s", resp.Status)
	}
}

func (p *GoogleProvider) timezone(ctx context.Context, lat, lng float64) (*googleTimezoneResponse, error) {
	params := url.Values{
		"location":  {fmt.Sprintf("%f,%f", lat, lng)},
		"timestamp": {strconv.FormatInt(p.now().Unix(), 10)},
		"key":       {p.apiKey},
	}
	var resp googleTimezoneResponse
	if err := p.get(ctx, googleTimezoneURL, params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" || resp.TimeZoneID == "" {
		return nil, eris.Errorf("geocode: google timezone status %s %s", resp.Status, resp.ErrorMessage)
	}
	return &resp, nil
}

func (p *GoogleProvider) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "geocode: google rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return eris.Wrap(err, "geocode: google build request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("geocode: google returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "geocode: google read body")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "geocode: google parse response")
	}
	return nil
}
