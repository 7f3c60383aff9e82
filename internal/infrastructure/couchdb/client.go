package couchdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"

	"github.com/nerrad567/gray-logic-statestore/internal/infrastructure/docstore"
)

// Client implements docstore.Store over the CouchDB HTTP API.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	http     *resty.Client
	database string
	dbPath   string
}

// findRequest is the body of POST /{db}/_find.
type findRequest struct {
	Selector docstore.Selector `json:"selector"`
}

// findResponse is the body returned by POST /{db}/_find.
type findResponse struct {
	Docs    []json.RawMessage `json:"docs"`
	Warning string            `json:"warning,omitempty"`
}

// errorResponse is the error body CouchDB returns for non-2xx responses.
type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// DialHTTP is the default Dialer. It builds an HTTP client from the
// parameters without contacting the server.
func DialHTTP(_ context.Context, params Params) (docstore.Store, error) {
	return NewClient(params)
}

// NewClient creates a CouchDB HTTP client for params.Database.
//
// Credentials embedded in the DSN are sent with HTTP basic auth.
//
// Parameters:
//   - params: Connection parameters
//
// Returns:
//   - *Client: Client ready for use (no request is made)
//   - error: ErrInvalidDSN if the parameters do not form a valid URL
func NewClient(params Params) (*Client, error) {
	if params.Database == "" {
		return nil, fmt.Errorf("%w: database name is required", ErrInvalidDSN)
	}

	base, err := url.Parse(params.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDSN, err)
	}

	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := resty.New().
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	if base.User != nil {
		password, _ := base.User.Password()
		httpClient.SetBasicAuth(base.User.Username(), password)
		base.User = nil
	}
	httpClient.SetBaseURL(base.String())

	return &Client{
		http:     httpClient,
		database: params.Database,
		dbPath:   "/" + url.PathEscape(params.Database),
	}, nil
}

// Database returns the database this client operates on.
func (c *Client) Database() string {
	return c.database
}

// DatabaseExists reports whether the database exists (HEAD /{db}).
func (c *Client) DatabaseExists(ctx context.Context) (bool, error) {
	resp, err := c.http.R().SetContext(ctx).Head(c.dbPath)
	if err != nil {
		return false, fmt.Errorf("%w: checking database: %w", ErrRequestFailed, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, statusError(resp)
	}
}

// CreateDatabase creates the database (PUT /{db}).
// A database that already exists (412) is not an error.
func (c *Client) CreateDatabase(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Put(c.dbPath)
	if err != nil {
		return fmt.Errorf("%w: creating database: %w", ErrRequestFailed, err)
	}

	switch resp.StatusCode() {
	case http.StatusCreated, http.StatusAccepted, http.StatusPreconditionFailed:
		return nil
	default:
		return statusError(resp)
	}
}

// Find runs a Mango query (POST /{db}/_find) and returns the raw documents.
func (c *Client) Find(ctx context.Context, selector docstore.Selector) ([]json.RawMessage, error) {
	if selector == nil {
		return nil, fmt.Errorf("%w: selector is nil", docstore.ErrInvalidSelector)
	}

	var result findResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(findRequest{Selector: selector}).
		SetResult(&result).
		Post(c.dbPath + "/_find")
	if err != nil {
		return nil, fmt.Errorf("%w: find: %w", ErrRequestFailed, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, statusError(resp)
	}

	return result.Docs, nil
}

// LoadDocument decodes a raw document returned by Find.
func (c *Client) LoadDocument(raw json.RawMessage) (*docstore.Document, error) {
	return docstore.Load(raw)
}

// Ping checks the server is up (GET /_up).
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/_up")
	if err != nil {
		return fmt.Errorf("%w: ping: %w", ErrRequestFailed, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

// statusError converts a non-success response into a *docstore.StatusError.
func statusError(resp *resty.Response) error {
	se := &docstore.StatusError{
		Status:    resp.StatusCode(),
		ErrorCode: http.StatusText(resp.StatusCode()),
	}

	var body errorResponse
	if len(resp.Body()) > 0 && json.Unmarshal(resp.Body(), &body) == nil {
		if body.Error != "" {
			se.ErrorCode = body.Error
		}
		se.Reason = body.Reason
	}

	return se
}
