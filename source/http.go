package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/envdash/uda/measurement"
	"github.com/envdash/uda/threshold"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPSource reads from a sensor API that serves readings as JSON arrays of
// measurement.Measurement:
//
//	GET {base}/readings/latest?domain=air
//	GET {base}/readings?domain=air&start=<RFC3339>&end=<RFC3339>
type HTTPSource struct {
	BaseURL string
	// Token is sent as a bearer token if set.
	Token  string
	Client *http.Client
}

func NewHTTPSource(baseURL, token string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Latest(ctx context.Context, d threshold.Domain) ([]measurement.Measurement, error) {
	q := url.Values{}
	q.Set("domain", string(d))
	return s.get(ctx, "/readings/latest", q)
}

func (s *HTTPSource) Between(ctx context.Context, d threshold.Domain, start, end time.Time) ([]measurement.Measurement, error) {
	q := url.Values{}
	q.Set("domain", string(d))
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))
	return s.get(ctx, "/readings", q)
}

func (s *HTTPSource) get(ctx context.Context, path string, q url.Values) ([]measurement.Measurement, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("source: GET %s: %s: %s", path, resp.Status, strings.TrimSpace(string(body)))
	}

	var ms []measurement.Measurement
	if err := json.NewDecoder(resp.Body).Decode(&ms); err != nil {
		return nil, fmt.Errorf("source: GET %s: failed to decode response: %w", path, err)
	}

	// Readings served under one domain belong to it even if the API omits the field.
	for i := range ms {
		if ms[i].Domain == "" {
			if d := q.Get("domain"); d != "" {
				ms[i].Domain = threshold.Domain(d)
			}
		}
	}
	return ms, nil
}
