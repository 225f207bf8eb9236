// SPDX-License-Identifier: MPL-2.0

package aur

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultRPCURL is the public RPC endpoint.
	DefaultRPCURL = "https://aur.archlinux.org/rpc/"
	// DefaultCloneURL is the host serving one git repository per package base.
	DefaultCloneURL = "https://aur.archlinux.org"

	rpcVersion = "5"

	// maxJSONResponseBytes caps decoded responses (10 MB).
	maxJSONResponseBytes = 10 << 20
)

type (
	// Package is one directory record.
	Package struct {
		Name        string     `json:"name" yaml:"name"`
		PackageBase string     `json:"package_base" yaml:"package_base"`
		Version     string     `json:"version" yaml:"version"`
		Description string     `json:"description" yaml:"description"`
		URL         string     `json:"url,omitempty" yaml:"url,omitempty"`
		Maintainer  string     `json:"maintainer,omitempty" yaml:"maintainer,omitempty"`
		NumVotes    int        `json:"votes" yaml:"votes"`
		Popularity  float64    `json:"popularity" yaml:"popularity"`
		OutOfDate   *time.Time `json:"out_of_date,omitempty" yaml:"out_of_date,omitempty"`
	}

	rpcResponse struct {
		Version     int         `json:"version"`
		Type        string      `json:"type"`
		ResultCount int         `json:"resultcount"`
		Results     []rpcResult `json:"results"`
		Error       string      `json:"error"`
	}

	rpcResult struct {
		Name        string  `json:"Name"`
		PackageBase string  `json:"PackageBase"`
		Version     string  `json:"Version"`
		Description string  `json:"Description"`
		URL         string  `json:"URL"`
		Maintainer  string  `json:"Maintainer"`
		NumVotes    int     `json:"NumVotes"`
		Popularity  float64 `json:"Popularity"`
		OutOfDate   *int64  `json:"OutOfDate"`
	}

	// Client queries the AUR RPC interface.
	Client struct {
		httpClient *http.Client
		rpcURL     string
		cloneURL   string
		userAgent  string
		timeout    time.Duration // per request; zero leaves ctx untouched
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(a *Client) {
		a.httpClient = c
	}
}

// WithBaseURL overrides the RPC endpoint, primarily for test servers.
func WithBaseURL(rpc string) ClientOption {
	return func(a *Client) {
		a.rpcURL = rpc
	}
}

// WithCloneURL overrides the host recipe repositories are cloned from.
func WithCloneURL(base string) ClientOption {
	return func(a *Client) {
		a.cloneURL = strings.TrimRight(base, "/")
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(a *Client) {
		a.userAgent = ua
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) ClientOption {
	return func(a *Client) {
		a.timeout = d
	}
}

// NewClient creates a Client pointed at the public AUR.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		rpcURL:     DefaultRPCURL,
		cloneURL:   DefaultCloneURL,
		userAgent:  "archpkg/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns packages whose name or description matches term, in the
// order the RPC interface returns them. No match is ErrNotFound.
func (c *Client) Search(ctx context.Context, term string) ([]Package, error) {
	q := url.Values{}
	q.Set("type", "search")
	q.Set("by", "name-desc")
	q.Set("arg", term)

	resp, err := c.query(ctx, "search", q)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, ErrNotFound
	}
	return toPackages(resp.Results), nil
}

// Info returns the records for the given exact names. Unknown names are
// silently absent from the result.
func (c *Client) Info(ctx context.Context, names ...string) ([]Package, error) {
	if len(names) == 0 {
		return nil, nil
	}
	q := url.Values{}
	q.Set("type", "info")
	for _, n := range names {
		q.Add("arg[]", n)
	}

	resp, err := c.query(ctx, "info", q)
	if err != nil {
		return nil, err
	}
	return toPackages(resp.Results), nil
}

// Lookup is the existence check used before a build: the info endpoint
// must report resultcount > 0 for name, exactly as Exists does. It returns
// the record matching name, or the first record when the RPC normalised the
// name. A zero count is ErrNotFound; a failed request is returned as is.
func (c *Client) Lookup(ctx context.Context, name string) (*Package, error) {
	resp, err := c.info(ctx, name)
	if err != nil {
		return nil, err
	}
	if resp.ResultCount == 0 || len(resp.Results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	pkgs := toPackages(resp.Results)
	for i := range pkgs {
		if pkgs[i].Name == name {
			return &pkgs[i], nil
		}
	}
	return &pkgs[0], nil
}

// Exists reports whether the info endpoint returns at least one record for
// name. A failed request is an error, not false.
func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	resp, err := c.info(ctx, name)
	if err != nil {
		return false, err
	}
	return resp.ResultCount > 0, nil
}

func (c *Client) info(ctx context.Context, name string) (*rpcResponse, error) {
	q := url.Values{}
	q.Set("type", "info")
	q.Add("arg[]", name)
	return c.query(ctx, "info", q)
}

// RecipeURL returns the git URL of a package base.
func (c *Client) RecipeURL(pkgBase string) string {
	return c.cloneURL + "/" + url.PathEscape(pkgBase) + ".git"
}

func (c *Client) query(ctx context.Context, op string, q url.Values) (*rpcResponse, error) {
	u, err := url.Parse(c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("aur %s: invalid rpc url: %w", op, err)
	}
	q.Set("v", rpcVersion)
	u.RawQuery = q.Encode()

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("aur %s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	slog.Debug("aur rpc request", "op", op, "url", u.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The caller gave up; that is not a transport fault worth retrying.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("aur %s: %w", op, ctxErr)
		}
		// Our own per-request deadline is. Keep DeadlineExceeded out of the
		// chain so the error still classifies as transient.
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TransportError{Op: op, Err: fmt.Errorf("request timed out after %s", c.timeout)}
		}
		return nil, &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	body := io.LimitReader(resp.Body, maxJSONResponseBytes)

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode}
	}

	var out rpcResponse
	decodeErr := json.NewDecoder(body).Decode(&out)

	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if decodeErr != nil || msg == "" {
			msg = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return nil, &APIError{Op: op, Message: msg}
	}
	if decodeErr != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("decoding response: %w", decodeErr)}
	}
	if out.Type == "error" {
		return nil, &APIError{Op: op, Message: out.Error}
	}
	return &out, nil
}

func toPackages(results []rpcResult) []Package {
	pkgs := make([]Package, 0, len(results))
	for _, r := range results {
		p := Package{
			Name:        r.Name,
			PackageBase: r.PackageBase,
			Version:     r.Version,
			Description: r.Description,
			URL:         r.URL,
			Maintainer:  r.Maintainer,
			NumVotes:    r.NumVotes,
			Popularity:  r.Popularity,
		}
		if p.PackageBase == "" {
			p.PackageBase = p.Name
		}
		if r.OutOfDate != nil {
			ts := time.Unix(*r.OutOfDate, 0).UTC()
			p.OutOfDate = &ts
		}
		pkgs = append(pkgs, p)
	}
	return pkgs
}
