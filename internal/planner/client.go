package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avarra-systems/chronovoice/internal/observability"
	"github.com/avarra-systems/chronovoice/internal/reliability"
)

// Client uploads call transcripts to the mission planner and returns its
// feedback text.
type Client struct {
	baseURL   string
	namespace string
	client    *http.Client
	metrics   *observability.Metrics
}

type uploadResponse struct {
	ChatBotFeedBack string `json:"chatBotFeedBack"`
}

func NewClient(baseURL, namespace string, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		namespace: namespace,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		metrics: metrics,
	}
}

// Upload posts the transcript file as multipart form data. The planner
// answers 201 with a JSON feedback body; any other status is an error
// carrying the response body as diagnostic text. Uploads are never retried
// here; the caller decides whether to try again.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	feedback, err := c.upload(ctx, path)
	if c.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		c.metrics.PlannerUploads.WithLabelValues(outcome).Inc()
	}
	return feedback, err
}

func (c *Client) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finish multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/api/%s/upload", c.baseURL, c.namespace)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send upload: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		diag, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return "", fmt.Errorf("planner busy, http status %d: %s", res.StatusCode, string(diag))
		}
		return "", fmt.Errorf("planner http status %d: %s", res.StatusCode, string(diag))
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read planner response: %w", err)
	}
	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode planner response: %w", err)
	}
	return parsed.ChatBotFeedBack, nil
}
