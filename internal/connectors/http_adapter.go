package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
)

// HTTPAdapter отправляет действие внешнему исполнителю по HTTP.
// Контракт исполнителя: POST /v1/execute, JSON действия на входе,
// JSON исхода на выходе; 429 с Retry-After транслируется в ThrottleError.
type HTTPAdapter struct {
	baseURL string
	client  *http.Client
}

func NewHTTPAdapter(baseURL string) *HTTPAdapter {
	return &HTTPAdapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type executeResponse struct {
	Outcome  domain.ActionOutcome   `json:"outcome"`
	Detail   string                 `json:"detail"`
	Response map[string]interface{} `json:"response"`
}

func (a *HTTPAdapter) Execute(ctx context.Context, action domain.PlannedAction) (domain.ActionResult, error) {
	body, err := json.Marshal(action)
	if err != nil {
		return domain.ActionResult{}, fmt.Errorf("connector: marshal action: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/execute", bytes.NewReader(body))
	if err != nil {
		return domain.ActionResult{}, fmt.Errorf("connector: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.ActionResult{}, fmt.Errorf("connector: call executor: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := 5 * time.Second
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
		return domain.ActionResult{}, &ThrottleError{
			RetryAfter: retryAfter,
			Cause:      fmt.Errorf("executor returned 429"),
		}

	case resp.StatusCode >= 400:
		return domain.ActionResult{}, fmt.Errorf("connector: executor returned %d", resp.StatusCode)
	}

	var payload executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.ActionResult{}, fmt.Errorf("connector: decode response: %w", err)
	}

	return domain.ActionResult{
		ActionID:   action.ID,
		Outcome:    payload.Outcome,
		Detail:     payload.Detail,
		Response:   payload.Response,
		ExecutedAt: time.Now(),
	}, nil
}
