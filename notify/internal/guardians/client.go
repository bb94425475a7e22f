package guardians

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/carepulse-systems/carepulse-stack/common/resilience"
)

// Client fetches guardians from the user service's internal API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	retry      resilience.RetryOptions
}

// NewClient constructs a directory client. The breaker is named after the
// user service so its state never mixes with the notification providers.
func NewClient(baseURL string, timeout time.Duration, breakerOpts resilience.BreakerOptions, retry resilience.RetryOptions) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: resilience.NewCircuitBreaker("user-service", breakerOpts),
		retry:   retry,
	}
}

// guardianPayload mirrors the user service's wire format.
type guardianPayload struct {
	GuardianID     string       `json:"guardianId"`
	GuardianEmail  string       `json:"guardianEmail"`
	Email          string       `json:"email"`
	GuardianPhone  string       `json:"guardianPhone"`
	Phone          string       `json:"phone"`
	PushToken      string       `json:"pushToken"`
	TelegramChatID string       `json:"telegramChatId"`
	Preferences    *Preferences `json:"notificationPreferences"`
}

// GuardiansForWard calls GET /internal/wards/:wardId/guardians, retrying
// transient failures through the user-service breaker.
func (c *Client) GuardiansForWard(ctx context.Context, wardID string) ([]Guardian, error) {
	var result []Guardian
	err := c.breaker.Execute(func() error {
		return resilience.Retry(ctx, c.retry, func() error {
			var opErr error
			result, opErr = c.fetch(ctx, wardID)
			return opErr
		})
	})
	return result, err
}

func (c *Client) fetch(ctx context.Context, wardID string) ([]Guardian, error) {
	url := fmt.Sprintf("%s/internal/wards/%s/guardians", c.baseURL, wardID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Internal-Service", "notify-service")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch guardians: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewStatusError(resp.StatusCode, fmt.Sprintf("user service returned status %d", resp.StatusCode))
	}

	var body struct {
		Success bool              `json:"success"`
		Data    []guardianPayload `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("user service reported failure for ward %s", wardID)
	}

	out := make([]Guardian, 0, len(body.Data))
	for _, p := range body.Data {
		g := Guardian{
			ID:             p.GuardianID,
			Email:          firstNonEmpty(p.GuardianEmail, p.Email),
			Phone:          firstNonEmpty(p.GuardianPhone, p.Phone),
			PushToken:      p.PushToken,
			TelegramChatID: p.TelegramChatID,
		}
		if p.Preferences != nil {
			g.Preferences = *p.Preferences
		} else {
			g.Preferences = Preferences{Email: true, SMS: true, Push: true}
		}
		out = append(out, g)
	}
	return out, nil
}

// BreakerStats exposes the user-service breaker state for diagnostics.
func (c *Client) BreakerStats() resilience.BreakerStats {
	return c.breaker.Stats()
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
