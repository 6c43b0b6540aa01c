package dispatcher

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jayesh55555/Product-Importer/internal/domain"
)

type WebhookRequest struct {
	URL      string
	Secret   string
	Timeout  time.Duration
	EventSeq int64
	// Payload is one of WebhookPayload or TestPayload.
	Payload   any
	AttemptID string
}

// WebhookPayload is the wire format subscribers receive for lifecycle events.
type WebhookPayload struct {
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Data      domain.ProductSnapshot `json:"data"`
}

// TestPayload is the wire format for manually triggered test deliveries.
type TestPayload struct {
	Event       string   `json:"event"`
	WebhookName string   `json:"webhook_name"`
	Timestamp   string   `json:"timestamp"`
	Data        TestData `json:"data"`
}

type TestData struct {
	Message string `json:"message"`
	Test    bool   `json:"test"`
}

type WebhookResult struct {
	StatusCode int
	Error      error
	Duration   time.Duration
}

func (r WebhookResult) IsSuccess() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// IsRetryable reports whether another attempt could change the outcome.
// Any 4xx is a permanent endpoint answer; transport errors and 5xx are not.
func (r WebhookResult) IsRetryable() bool {
	if r.Error != nil {
		return true
	}
	if r.StatusCode >= 400 && r.StatusCode < 500 {
		return false
	}
	return true
}

type HTTPWebhookSender struct {
	client *http.Client
}

func NewHTTPWebhookSender() *HTTPWebhookSender {
	return &HTTPWebhookSender{
		client: &http.Client{},
	}
}

// Send posts the payload as JSON. Headers: X-Importer-Delivery-ID,
// X-Importer-Event-Seq (events only), and X-Importer-Signature when the
// subscriber has a secret.
func (s *HTTPWebhookSender) Send(ctx context.Context, req WebhookRequest) WebhookResult {
	start := time.Now()

	body, err := json.Marshal(req.Payload)
	if err != nil {
		return WebhookResult{Error: fmt.Errorf("marshal: %w", err), Duration: time.Since(start)}
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, req.URL, bytes.NewReader(body))
	if err != nil {
		return WebhookResult{Error: fmt.Errorf("create request: %w", err), Duration: time.Since(start)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Importer-Delivery-ID", req.AttemptID)
	if req.EventSeq > 0 {
		httpReq.Header.Set("X-Importer-Event-Seq", strconv.FormatInt(req.EventSeq, 10))
	}
	if req.Secret != "" {
		httpReq.Header.Set("X-Importer-Signature", computeSignature(req.Secret, body))
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return WebhookResult{Error: fmt.Errorf("send: %w", err), Duration: time.Since(start)}
	}
	defer resp.Body.Close()

	return WebhookResult{StatusCode: resp.StatusCode, Duration: time.Since(start)}
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature is for subscribers to verify incoming webhooks.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := computeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Tester sends single-attempt test deliveries outside the event pipeline.
// No retry, no breaker, no queue; the caller sees the raw outcome.
type Tester struct {
	sender  WebhookSender
	timeout time.Duration
}

func NewTester(sender WebhookSender, timeout time.Duration) *Tester {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Tester{sender: sender, timeout: timeout}
}

// SendTest posts the fixed test payload to the subscriber once.
func (t *Tester) SendTest(ctx context.Context, sub domain.Subscriber) (int, error) {
	req := WebhookRequest{
		URL:       sub.TargetURL,
		Secret:    sub.Secret,
		Timeout:   t.timeout,
		AttemptID: uuid.New().String(),
		Payload: TestPayload{
			Event:       "webhook.test",
			WebhookName: sub.Name,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Data: TestData{
				Message: "This is a test webhook",
				Test:    true,
			},
		},
	}

	result := t.sender.Send(ctx, req)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.StatusCode, nil
}
