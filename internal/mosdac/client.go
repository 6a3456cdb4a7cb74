// Package mosdac talks to the MOSDAC download API: token handling, catalog
// search and the release pre-check. Byte transfers live in the downloader package.
package mosdac

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/italolelis/mosdac_downloader/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL   = "https://mosdac.gov.in/download_api"
	DefaultSearchURL = "https://mosdac.gov.in/apios/datasets.json"

	tokenPath         = "/gettoken"
	refreshPath       = "/refresh-token"
	logoutPath        = "/logout"
	checkInternetPath = "/check-internet"
	downloadPath      = "/download"

	clientType = "mosdac"
)

// Endpoints locates the API. Search lives on a different service than the
// token and download endpoints.
type Endpoints struct {
	BaseURL   string
	SearchURL string
}

func (e Endpoints) url(path string) string {
	return strings.TrimRight(e.BaseURL, "/") + path
}

// DownloadURL is the endpoint serving an item's bytes.
func (e Endpoints) DownloadURL() string {
	return e.url(downloadPath)
}

// Client carries the shared HTTP plumbing for the control-plane endpoints.
type Client struct {
	rc        *resty.Client
	endpoints Endpoints
	telemetry *telemetry.Telemetry
}

// NewHTTPClient returns an instrumented HTTP client. A zero timeout leaves
// the deadline to the caller's context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// NewClient creates a client for the given endpoints. A nil httpClient gets
// an instrumented client without a global timeout.
func NewClient(endpoints Endpoints, httpClient *http.Client, tel *telemetry.Telemetry) *Client {
	if endpoints.BaseURL == "" {
		endpoints.BaseURL = DefaultBaseURL
	}

	if endpoints.SearchURL == "" {
		endpoints.SearchURL = DefaultSearchURL
	}

	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}

	rc := resty.NewWithClient(httpClient).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "mosdac-downloader")

	return &Client{
		rc:        rc,
		endpoints: endpoints,
		telemetry: tel,
	}
}

// Endpoints returns the endpoints the client was built with.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

func (c *Client) postJSON(ctx context.Context, operation, url string, body any) (*resty.Response, error) {
	return c.do(ctx, operation, http.MethodPost, url, nil, body)
}

func (c *Client) get(ctx context.Context, operation, url string, params map[string]string) (*resty.Response, error) {
	return c.do(ctx, operation, http.MethodGet, url, params, nil)
}

func (c *Client) do(ctx context.Context, operation, method, url string, params map[string]string, body any) (*resty.Response, error) {
	var resp *resty.Response

	err := c.telemetry.InstrumentClientOperation(ctx, clientType, operation, func(ctx context.Context) error {
		req := c.rc.R().SetContext(ctx)

		if params != nil {
			req.SetQueryParams(params)
		}

		if body != nil {
			req.SetBody(body)
		}

		var err error

		resp, err = req.Execute(method, url)

		return err
	})

	return resp, err
}
