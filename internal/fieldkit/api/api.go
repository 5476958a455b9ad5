// Package api is the field client's HTTP client for the storecheck server.
//
// Errors come in two flavors the callers must tell apart: *APIError means
// the server answered and rejected the request (do not retry unchanged),
// while any other error is transport-level (probably offline; retrying
// later is reasonable). The sync engine's failure isolation depends on this
// distinction.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storecheck/internal/models"
)

// APIError is a non-2xx response from the server, carrying the JSON error
// message when one was provided.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// Client talks to one server on behalf of one authenticated user.
type Client struct {
	base  string // API root without trailing slash, e.g. "http://host:8080/api"
	token string
	http  *http.Client
}

// New builds a client for the given API root. The token may be empty until
// Login succeeds.
func New(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken installs the bearer token used on subsequent requests.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the current bearer token, for persisting across runs.
func (c *Client) Token() string { return c.token }

// do runs one JSON request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		blob, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(blob)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err // transport-level: likely offline
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError extracts the server's {"error": "..."} message when present.
func decodeError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	blob, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = json.Unmarshal(blob, &payload)
	return &APIError{Status: resp.StatusCode, Message: payload.Error}
}

// Login authenticates and installs the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (models.User, error) {
	var out models.LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login",
		models.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return models.User{}, err
	}
	c.token = out.Token
	return out.User, nil
}

// Health probes the server's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Regions fetches the org hierarchy roots.
func (c *Client) Regions(ctx context.Context) ([]models.Region, error) {
	var out []models.Region
	err := c.do(ctx, http.MethodGet, "/regions", nil, &out)
	return out, err
}

// Districts fetches the districts under a region.
func (c *Client) Districts(ctx context.Context, regionID string) ([]models.District, error) {
	var out []models.District
	err := c.do(ctx, http.MethodGet, "/districts?region_id="+url.QueryEscape(regionID), nil, &out)
	return out, err
}

// Stores fetches the stores under a district.
func (c *Client) Stores(ctx context.Context, districtID string) ([]models.Store, error) {
	var out []models.Store
	err := c.do(ctx, http.MethodGet, "/stores?district_id="+url.QueryEscape(districtID), nil, &out)
	return out, err
}

// Template fetches the checklist template in display order.
func (c *Client) Template(ctx context.Context) ([]models.ChecklistItem, error) {
	var out []models.ChecklistItem
	err := c.do(ctx, http.MethodGet, "/checklist/template", nil, &out)
	return out, err
}

// CreateVisit submits a new visit and returns the stored record.
func (c *Client) CreateVisit(ctx context.Context, p models.VisitPayload) (models.Visit, error) {
	var out models.Visit
	err := c.do(ctx, http.MethodPost, "/visits", p, &out)
	return out, err
}

// UpdateVisit applies a partial update to an existing visit.
func (c *Client) UpdateVisit(ctx context.Context, id string, p models.VisitPayload) (models.Visit, error) {
	var out models.Visit
	err := c.do(ctx, http.MethodPut, "/visits/"+url.PathEscape(id), p, &out)
	return out, err
}

// Visits lists visits, optionally filtered (keys: store_id, user_id,
// region_id, from, to).
func (c *Client) Visits(ctx context.Context, filters map[string]string) ([]models.Visit, error) {
	q := url.Values{}
	for k, v := range filters {
		if v != "" {
			q.Set(k, v)
		}
	}
	path := "/visits"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []models.Visit
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// UploadPhoto streams one photo and returns the stored path to reference as
// the answer's photo value.
func (c *Client) UploadPhoto(ctx context.Context, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("photo", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/uploads", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", decodeError(resp)
	}
	var out models.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.Path, nil
}

// VisitPDF downloads the rendered PDF for a visit. A JSON response means the
// completion gate rejected the export; the error message passes through.
func (c *Client) VisitPDF(ctx context.Context, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/visits/"+url.PathEscape(id)+"/pdf", nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/pdf") {
		return nil, fmt.Errorf("expected a PDF, got %s", ct)
	}
	return io.ReadAll(resp.Body)
}
