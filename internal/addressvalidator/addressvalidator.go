// Package addressvalidator standardizes raw addresses through an external
// validation service, throttled to one request every ValidatorThrottle.
package addressvalidator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"lcbregistry/internal/model"
	"lcbregistry/internal/regerr"
)

// Validator standardizes one raw address. A nil *model.AddressStandardization
// with a nil error means the service had no opinion on the address (e.g. it
// couldn't be matched) — distinct from a transport or API error.
type Validator interface {
	Standardize(ctx context.Context, rawAddress string) (*model.AddressStandardization, error)
}

// HTTPValidator calls a hosted address-standardization API, rate-limited to
// one request per throttle interval regardless of caller concurrency.
type HTTPValidator struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	limiter   *rate.Limiter
}

// NewHTTPValidator builds a validator against baseURL, authenticating with
// apiKey, timing out requests after timeout, and spacing requests by
// throttle.
func NewHTTPValidator(baseURL, apiKey string, timeout, throttle time.Duration) *HTTPValidator {
	if throttle <= 0 {
		throttle = 50 * time.Millisecond
	}
	return &HTTPValidator{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Every(throttle), 1),
	}
}

type apiResponse struct {
	Matched      bool   `json:"matched"`
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
}

// Standardize blocks until the rate limiter admits the request, then calls
// the validator API. If apiKey is empty, it returns regerr.ErrValidatorUnavailable
// immediately rather than making a doomed call.
func (v *HTTPValidator) Standardize(ctx context.Context, rawAddress string) (*model.AddressStandardization, error) {
	if v.apiKey == "" {
		return nil, regerr.ErrValidatorUnavailable
	}
	if err := v.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	endpoint := v.baseURL + "?" + url.Values{"address": {rawAddress}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build validator request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call address validator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("address validator returned status %d", resp.StatusCode)
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode validator response: %w", err)
	}
	if !parsed.Matched {
		return nil, nil
	}

	return &model.AddressStandardization{
		AddressLine1: parsed.AddressLine1,
		AddressLine2: parsed.AddressLine2,
		City:         parsed.City,
		State:        parsed.State,
		ZipCode:      parsed.ZipCode,
	}, nil
}

// NoopValidator always reports no opinion; used when no API key is
// configured but callers still need a Validator to depend on.
type NoopValidator struct{}

func (NoopValidator) Standardize(ctx context.Context, rawAddress string) (*model.AddressStandardization, error) {
	return nil, nil
}
