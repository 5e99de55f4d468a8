package council

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"bindays/internal/address"
	appLog "bindays/internal/log"
	"bindays/internal/schedule"
)

const (
	DefaultBaseURL  = "https://maps.swindon.gov.uk/getdata.aspx"
	DefaultPageSize = 150
	DefaultTimeout  = 15 * time.Second

	mapSource  = "mapsources/LocalInfoLookup"
	wasteGroup = "Waste Collection Days"

	// maxBodyBytes bounds how much of a response is read.
	maxBodyBytes = 8 << 20
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("council: unexpected status %s", e.Status)
}

// Client talks to the council's map data endpoint, which serves both the
// address directory search and the per-address waste collection info.
type Client struct {
	client   *http.Client
	baseURL  string
	pageSize int
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	BaseURL    string
	PageSize   int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		client:   hc,
		baseURL:  opts.BaseURL,
		pageSize: opts.PageSize,
	}
}

// SearchLocations looks up addresses matching query (usually a postcode).
// Candidates keep the upstream ranking.
func (c *Client) SearchLocations(ctx context.Context, query string) ([]address.Candidate, error) {
	params := url.Values{}
	params.Set("type", "json")
	params.Set("service", "LocationSearch")
	params.Set("RequestType", "LocationSearch")
	params.Set("location", query)
	params.Set("pagesize", strconv.Itoa(c.pageSize))
	params.Set("startnum", "1")
	params.Set("mapsource", mapSource)

	body, err := c.get(ctx, "location search", params)
	if err != nil {
		return nil, err
	}

	candidates, err := decodeSearch(body)
	if err != nil {
		return nil, err
	}
	appLog.Info("location search completed", "candidates", len(candidates))
	return candidates, nil
}

// FetchWasteInfo fetches the collection groups for one address identifier.
func (c *Client) FetchWasteInfo(ctx context.Context, uprn string) ([]schedule.RawRecord, error) {
	if uprn == "" {
		return nil, errors.New("council: empty address identifier")
	}
	params := url.Values{}
	params.Set("RequestType", "LocalInfo")
	params.Set("ms", mapSource)
	params.Set("group", wasteGroup)
	params.Set("uid", uprn)
	params.Set("format", "json")

	body, err := c.get(ctx, "waste info", params)
	if err != nil {
		return nil, err
	}

	records, err := schedule.DecodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("council: waste info: %w", err)
	}
	appLog.Info("waste info fetched", "uprn", uprn, "groups", len(records))
	return records, nil
}

// get performs a GET and returns the body. The endpoint often sends JSON
// with a text/html content type, so the header is not checked.
func (c *Client) get(ctx context.Context, what string, params url.Values) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("council: bad base url: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")

	appLog.Debug("council request start", "what", what, "url", redactURL(u))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("council: %s: %w", what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		appLog.Error("council request failed", errors.New(resp.Status), "what", what, "url", redactURL(u))
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("council: %s: read body: %w", what, err)
	}
	return body, nil
}

// decodeSearch reads the columnar {"columns": [...], "data": [[...]]} shape.
func decodeSearch(body []byte) ([]address.Candidate, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("council: location search: response is not JSON")
	}
	root := gjson.ParseBytes(body)

	var columns []string
	for _, col := range root.Get("columns").Array() {
		columns = append(columns, col.String())
	}

	var rows [][]any
	for _, row := range root.Get("data").Array() {
		if !row.IsArray() {
			continue
		}
		cells := row.Array()
		values := make([]any, 0, len(cells))
		for _, cell := range cells {
			values = append(values, cell.Value())
		}
		rows = append(rows, values)
	}

	return address.FromColumns(columns, rows), nil
}

// redactURL drops the query string, which carries postcodes and address
// identifiers.
func redactURL(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path + "?(redacted)"
}
