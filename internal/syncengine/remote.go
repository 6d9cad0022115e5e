package syncengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UpsertRequest: uzak uca giden tek mutasyon. Key, kayıt oluşturulurken
// üretilen idempotency anahtarıdır; aynı isteğin tekrarı uzak tarafta
// ikinci bir etki yaratmaz (at-least-once teslim + idempotent upsert).
type UpsertRequest struct {
	Entity         string                 `json:"entity"`
	LocalID        string                 `json:"local_id"`
	IdempotencyKey string                 `json:"idempotency_key"`
	Operation      string                 `json:"operation"`
	Payload        map[string]interface{} `json:"payload"`
}

// RemoteClient: uzak backend'e upsert gönderen istemci. Testler sahte
// implementasyonla motoru ağ olmadan sürer.
type RemoteClient interface {
	Upsert(ctx context.Context, req UpsertRequest) (remoteID string, err error)
}

// HTTPRemoteClient: REST tarzı uzak uç. Her entity için
// POST {base}/api/sync/{entity}: gövde UpsertRequest, cevap {"id": "..."}.
type HTTPRemoteClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPRemoteClient(baseURL, apiKey string, timeout time.Duration) *HTTPRemoteClient {
	return &HTTPRemoteClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPRemoteClient) Upsert(ctx context.Context, req UpsertRequest) (string, error) {
	if c.BaseURL == "" {
		return "", fmt.Errorf("uzak API adresi tanımlı değil")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("upsert gövdesi oluşturulamadı: %w", err)
	}

	url := fmt.Sprintf("%s/api/sync/%s", c.BaseURL, req.Entity)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("upsert isteği oluşturulamadı: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("uzak uca ulaşılamadı: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("uzak uç %d döndü: %s", resp.StatusCode, string(b))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("uzak cevap çözümlenemedi: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("uzak cevapta id yok")
	}
	return out.ID, nil
}
