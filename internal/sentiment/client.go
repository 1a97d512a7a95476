package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sentimentplus/gateway/internal/platform/httpx"
)

// Client is a typed HTTP client for the sentiment inference backend. The
// backend owns the review corpus and the per-user tallies; the gateway only
// proxies and caches.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a backend client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Prediction is one inference result. Aspects and emotions are passed
// through untouched since their shape belongs to the model, not to us.
type Prediction struct {
	Sentiment  string          `json:"sentiment"`
	Confidence float64         `json:"confidence"`
	Aspects    json.RawMessage `json:"aspects,omitempty"`
	Emotions   json.RawMessage `json:"emotions,omitempty"`
}

// Predict runs inference on a single text without persisting anything.
func (c *Client) Predict(ctx context.Context, text, userEmail string) (*Prediction, error) {
	var out Prediction
	err := c.post(ctx, "/predict", map[string]string{"text": text, "user_id": userEmail}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveReview runs inference and stores the review under the user's email.
func (c *Client) SaveReview(ctx context.Context, text, userEmail string) (*Prediction, error) {
	var out Prediction
	err := c.post(ctx, "/save-review", map[string]string{"text": text, "user_id": userEmail}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ReviewsQuery filters the review listing. Zero values mean no filter.
type ReviewsQuery struct {
	Limit     int
	Sentiment string
	UserEmail string
}

// ReviewsResponse is the backend's review listing envelope. Individual
// reviews stay raw so the proxy does not constrain the backend's schema.
type ReviewsResponse struct {
	Reviews []json.RawMessage `json:"reviews"`
	Count   int               `json:"count"`
}

// Reviews lists stored reviews matching the query.
func (c *Client) Reviews(ctx context.Context, q ReviewsQuery) (*ReviewsResponse, error) {
	values := url.Values{}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Sentiment != "" {
		values.Set("sentiment", q.Sentiment)
	}
	if q.UserEmail != "" {
		values.Set("user_email", q.UserEmail)
	}
	path := "/reviews"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}

	var out ReviewsResponse
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Correction lifecycle states understood by the backend. A draft stays
// private to its author; pending corrections show up in the admin review
// queue.
const (
	CorrectionDraft   = "draft"
	CorrectionPending = "pending_admin_review"
)

// CorrectionSubmission is a proposed relabel of a stored review.
type CorrectionSubmission struct {
	ReviewID           string          `json:"review_id"`
	UserEmail          string          `json:"user_email"`
	OriginalSentiment  string          `json:"original_sentiment,omitempty"`
	CorrectedSentiment string          `json:"corrected_sentiment"`
	ConfidenceOverride float64         `json:"confidence_override,omitempty"`
	Aspects            json.RawMessage `json:"aspects,omitempty"`
	Status             string          `json:"status"`
}

// CorrectionsResponse is the backend's correction listing envelope.
type CorrectionsResponse struct {
	Corrections []json.RawMessage `json:"corrections"`
}

// SubmitCorrection stores a correction draft or queues it for review.
func (c *Client) SubmitCorrection(ctx context.Context, sub CorrectionSubmission) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.post(ctx, "/corrections", sub, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Corrections lists the corrections submitted by one user.
func (c *Client) Corrections(ctx context.Context, userEmail string) (*CorrectionsResponse, error) {
	var out CorrectionsResponse
	if err := c.get(ctx, "/corrections?"+url.Values{"user_email": {userEmail}}.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PendingCorrections lists corrections awaiting admin review.
func (c *Client) PendingCorrections(ctx context.Context, limit int) (*CorrectionsResponse, error) {
	values := url.Values{"status": {CorrectionPending}}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var out CorrectionsResponse
	if err := c.get(ctx, "/admin/corrections?"+values.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveCorrection records the admin verdict ("approve" or "reject") on a
// queued correction.
func (c *Client) ResolveCorrection(ctx context.Context, id, verdict, adminEmail, notes string) (json.RawMessage, error) {
	var out json.RawMessage
	body := map[string]string{"admin_email": adminEmail, "notes": notes}
	if err := c.post(ctx, "/admin/corrections/"+url.PathEscape(id)+"/"+verdict, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TrainingQueue lists approved corrections waiting for a training run.
func (c *Client) TrainingQueue(ctx context.Context, limit int) (json.RawMessage, error) {
	path := "/admin/training-queue"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out json.RawMessage
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartTraining schedules a fine-tuning run over the approved queue.
func (c *Client) StartTraining(ctx context.Context, scheduleAt time.Time) (json.RawMessage, error) {
	var out json.RawMessage
	body := map[string]string{"schedule_date": scheduleAt.UTC().Format(time.RFC3339)}
	if err := c.post(ctx, "/admin/start-training", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats fetches the aggregate sentiment statistics document.
func (c *Client) Stats(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.get(ctx, "/stats", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("sentiment: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sentiment: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("sentiment: build request: %w", err)
	}
	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: backend status %d", httpx.ErrBackendUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sentiment: backend status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decode response: %v", httpx.ErrBackendUnavailable, err)
	}
	return nil
}
