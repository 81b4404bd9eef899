package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rshade/ghgfocus/internal/ghg"
	"github.com/rshade/ghgfocus/internal/logging"
)

// DefaultRESTTimeout bounds each page request.
const DefaultRESTTimeout = 30 * time.Second

// maxPages stops runaway pagination from a misbehaving API.
const maxPages = 10000

// restPage is one page of the activity records API.
type restPage struct {
	Records  []RawRecord `json:"records"`
	NextPage int         `json:"next_page"`
}

// RESTAdapter reads activity records from a paginated JSON API:
//
//	GET {base}/activity-records?from=2024-01-01&to=2024-12-31&types=fuel,travel&page=1
//
// answered with {"records": [...], "next_page": 2}. A next_page of 0 ends the
// listing. Requests are rate limited per Credentials.RateLimit and never retried.
type RESTAdapter struct {
	Client *http.Client
}

// FetchActivityRecords walks every page. Any transport failure, non-2xx
// status or undecodable page makes the integration unavailable.
func (a RESTAdapter) FetchActivityRecords(
	ctx context.Context,
	creds Credentials,
	dateRange DateRange,
	dataTypes []DataType,
) ([]RawRecord, error) {
	log := logging.FromContext(ctx).With().
		Str("component", "ingest").
		Str("operation", "fetch_rest").
		Str("integration_id", creds.IntegrationID).
		Logger()

	unavailable := func(err error) error {
		return &ghg.IntegrationUnavailableError{IntegrationID: creds.IntegrationID, Err: err}
	}

	base, err := url.Parse(strings.TrimRight(creds.BaseURL, "/") + "/activity-records")
	if err != nil || creds.BaseURL == "" {
		return nil, unavailable(fmt.Errorf("invalid base URL %q", creds.BaseURL))
	}

	client := a.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultRESTTimeout}
	}

	limit := rate.Inf
	if creds.RateLimit > 0 {
		limit = rate.Limit(creds.RateLimit)
	}
	limiter := rate.NewLimiter(limit, 1)

	types := make([]string, 0, len(dataTypes))
	for _, t := range dataTypes {
		types = append(types, string(t))
	}

	var out []RawRecord
	for page := 1; page != 0; {
		if page > maxPages {
			return nil, unavailable(fmt.Errorf("pagination exceeded %d pages", maxPages))
		}
		if waitErr := limiter.Wait(ctx); waitErr != nil {
			return nil, waitErr
		}

		q := url.Values{}
		q.Set("from", dateRange.From.Format(time.DateOnly))
		q.Set("to", dateRange.To.Format(time.DateOnly))
		if len(types) > 0 {
			q.Set("types", strings.Join(types, ","))
		}
		q.Set("page", strconv.Itoa(page))
		u := *base
		u.RawQuery = q.Encode()

		p, fetchErr := a.fetchPage(ctx, client, u.String(), creds.Token)
		if fetchErr != nil {
			log.Error().Err(fetchErr).Int("page", page).Msg("activity records request failed")
			return nil, unavailable(fetchErr)
		}
		log.Debug().Int("page", page).Int("records", len(p.Records)).Msg("fetched page")

		for _, r := range p.Records {
			if wantType(dataTypes, r.Type) && (r.Date.IsZero() || dateRange.Contains(r.Date)) {
				out = append(out, r)
			}
		}
		if p.NextPage != 0 && p.NextPage <= page {
			return nil, unavailable(fmt.Errorf("next_page %d does not advance past %d", p.NextPage, page))
		}
		page = p.NextPage
	}
	return out, nil
}

func (a RESTAdapter) fetchPage(ctx context.Context, client *http.Client, target, token string) (*restPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s returned %s: %s", target, resp.Status, strings.TrimSpace(string(body)))
	}

	var p restPage
	if decodeErr := json.NewDecoder(resp.Body).Decode(&p); decodeErr != nil {
		return nil, fmt.Errorf("decoding %s: %w", target, decodeErr)
	}
	return &p, nil
}
