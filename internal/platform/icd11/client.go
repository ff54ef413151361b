// Package icd11 is the HTTP client for the WHO ICD-11 coding service. It
// backs the resolver's external lookup path: given a local record it asks the
// ICD-11 search endpoint for candidate entities and returns them as scored
// suggestions.
package icd11

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/termbridge/termbridge/internal/domain/record"
	"github.com/termbridge/termbridge/internal/domain/resolve"
	"github.com/termbridge/termbridge/pkg/errs"
)

// SystemURI identifies ICD-11 MMS codings produced by this client.
const SystemURI = "http://id.who.int/icd/release/11/mms"

// Config holds the client settings.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// Client talks to the ICD-11 API. It implements resolve.ExternalLookuper.
type Client struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

var _ resolve.ExternalLookuper = (*Client)(nil)

// NewClient creates an ICD-11 client. Credentials are optional; without them
// requests go out unauthenticated, which suits local mock servers.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// searchResponse is the slice of the ICD-11 search payload we consume.
type searchResponse struct {
	DestinationEntities []struct {
		TheCode string  `json:"theCode"`
		Title   string  `json:"title"`
		Score   float64 `json:"score"`
	} `json:"destinationEntities"`
}

// LookupExternalCode searches ICD-11 for entities matching the record's
// display term and returns them as suggestions, strongest first.
func (c *Client) LookupExternalCode(ctx context.Context, rec *record.TerminologyRecord) ([]resolve.Suggestion, error) {
	q := url.Values{}
	q.Set("q", rec.Display)
	q.Set("flatResults", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/icd/release/11/2024-01/mms/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build icd11 request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en")
	req.Header.Set("API-Version", "v2")

	if c.cfg.ClientID != "" {
		token, err := c.token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errs.Unavailablef("icd11 search for %q: %v", rec.Display, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.Unavailablef("icd11 search for %q returned status %d", rec.Display, resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errs.Unavailablef("decode icd11 response: %v", err)
	}

	suggestions := make([]resolve.Suggestion, 0, len(body.DestinationEntities))
	for _, e := range body.DestinationEntities {
		if e.TheCode == "" {
			continue
		}
		suggestions = append(suggestions, resolve.Suggestion{
			TargetSystem: SystemURI,
			TargetCode:   e.TheCode,
			Display:      stripMarkup(e.Title),
			Score:        e.Score,
		})
	}
	return suggestions, nil
}

// stripMarkup removes the <em> highlight tags the search endpoint embeds in
// matched titles.
func stripMarkup(s string) string {
	s = strings.ReplaceAll(s, "<em class='found'>", "")
	s = strings.ReplaceAll(s, "</em>", "")
	return s
}

// token returns a cached OAuth2 client-credentials token, refreshing it when
// less than a minute of validity remains.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("scope", "icdapi_access")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errs.Unavailablef("icd11 token endpoint: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errs.Unavailablef("icd11 token endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errs.Unavailablef("decode token response: %v", err)
	}

	c.accessToken = body.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return c.accessToken, nil
}
