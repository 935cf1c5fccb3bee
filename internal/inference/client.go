package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client talks to the study inference service.
type Client struct {
	httpClient       *http.Client
	apiKey           string
	baseURL          string
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

// Extraction is the text the service extracted from an uploaded file.
type Extraction struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Card is a single generated flashcard.
type Card struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Choice struct {
	Message Message `json:"message"`
}

// envelope covers every response shape the service produces: a chat
// completion passthrough, typed payloads, or an error field.
type envelope struct {
	Error    string   `json:"error,omitempty"`
	Details  any      `json:"details,omitempty"`
	Choices  []Choice `json:"choices,omitempty"`
	Filename string   `json:"filename,omitempty"`
	Content  *string  `json:"content,omitempty"`
	Cards    []Card   `json:"cards,omitempty"`
	Analysis string   `json:"analysis,omitempty"`
}

func (e *envelope) text() (string, error) {
	if len(e.Choices) > 0 && strings.TrimSpace(e.Choices[0].Message.Content) != "" {
		return e.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("%w: no message content", ErrMalformedResponse)
}

type askRequest struct {
	Question string `json:"question"`
	Document string `json:"document"`
}

type flashcardsRequest struct {
	Document string `json:"document"`
	Count    int    `json:"count"`
}

type notesRequest struct {
	Document string `json:"document"`
}

type analyzeRequest struct {
	Documents []string `json:"documents"`
}

// NewClient allows customizing HTTP timeout and retry/backoff behavior.
// retryMax counts attempts, so 1 disables retries.
func NewClient(baseURL, apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = 120 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 1
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	return &Client{
		httpClient:       &http.Client{Timeout: httpTimeout},
		apiKey:           apiKey,
		baseURL:          strings.TrimRight(baseURL, "/"),
		retryMaxAttempts: retryMax,
		retryBaseDelay:   baseDelay,
		retryMaxDelay:    maxDelay,
	}
}

// Upload sends a raw file for text extraction.
func (c *Client) Upload(ctx context.Context, filename string, body io.Reader) (*Extraction, error) {
	if filename == "" {
		return nil, errors.New("filename cannot be empty")
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	if _, err := io.Copy(fw, body); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build form: %w", err)
	}
	env, err := c.post(ctx, "/api/upload", mw.FormDataContentType(), buf.Bytes())
	if err != nil {
		return nil, err
	}
	if env.Content == nil {
		return nil, fmt.Errorf("%w: upload response has no content", ErrMalformedResponse)
	}
	out := &Extraction{Filename: env.Filename, Content: *env.Content}
	if out.Filename == "" {
		out.Filename = filename
	}
	return out, nil
}

// Ask answers a question about the given document text.
func (c *Client) Ask(ctx context.Context, question, document string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", errors.New("question cannot be empty")
	}
	env, err := c.postJSON(ctx, "/api/ask", askRequest{Question: question, Document: document})
	if err != nil {
		return "", err
	}
	return env.text()
}

// Flashcards generates count cards from the document text. A typed "cards"
// field is preferred; otherwise the card list is read from the JSON array
// embedded in the completion text.
func (c *Client) Flashcards(ctx context.Context, document string, count int) ([]Card, error) {
	if count <= 0 {
		return nil, errors.New("count must be positive")
	}
	env, err := c.postJSON(ctx, "/api/flashcards", flashcardsRequest{Document: document, Count: count})
	if err != nil {
		return nil, err
	}
	if len(env.Cards) > 0 {
		return usableCards(env.Cards)
	}
	text, err := env.text()
	if err != nil {
		return nil, err
	}
	return ParseCards(text)
}

// Notes generates study notes from the document text.
func (c *Client) Notes(ctx context.Context, document string) (string, error) {
	env, err := c.postJSON(ctx, "/api/notes", notesRequest{Document: document})
	if err != nil {
		return "", err
	}
	return env.text()
}

// AnalyzePapers summarizes trends across question papers.
func (c *Client) AnalyzePapers(ctx context.Context, documents []string) (string, error) {
	if len(documents) == 0 {
		return "", errors.New("documents cannot be empty")
	}
	env, err := c.postJSON(ctx, "/api/analyze-papers", analyzeRequest{Documents: documents})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(env.Analysis) != "" {
		return env.Analysis, nil
	}
	return env.text()
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (*envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.post(ctx, path, "application/json", payload)
}

func (c *Client) post(ctx context.Context, path, contentType string, payload []byte) (*envelope, error) {
	endpoint := c.baseURL + path
	maxAttempts := c.retryMaxAttempts
	backoff := c.retryBaseDelay

	var lastErr error
	var out envelope
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", contentType)
		httpReq.Header.Set("X-Title", "studydeck")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if isRetryableNetErr(err) && attempt < maxAttempts {
				lastErr = err
				time.Sleep(backoff)
				backoff *= 2
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &UnreachableError{Host: c.baseURL, Err: err}
		}
		retry := false
		func() {
			defer resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
				var raw map[string]any
				_ = json.Unmarshal(body, &raw)
				apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw, RequestID: extractRequestID(resp)}
				apiErr.Message = errorMessage(raw)
				if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < maxAttempts {
					lastErr = apiErr
					sleep := withJitter(backoff)
					if ra := resp.Header.Get("Retry-After"); ra != "" {
						if secs, err := parseRetryAfterSeconds(ra); err == nil && secs > 0 {
							sleep = time.Duration(secs) * time.Second
						}
					}
					if c.retryMaxDelay > 0 && sleep > c.retryMaxDelay {
						sleep = c.retryMaxDelay
					}
					time.Sleep(sleep)
					backoff *= 2
					retry = true
					return
				}
				lastErr = classifyAPIError(apiErr, resp)
				return
			}
			out = envelope{}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				lastErr = fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
				return
			}
			if out.Error != "" {
				lastErr = &ServiceError{Message: out.Error, Details: out.Details}
				return
			}
			lastErr = nil
		}()
		if lastErr == nil {
			return &out, nil
		}
		if !retry {
			break
		}
	}
	return nil, lastErr
}

// errorMessage pulls a human readable message out of an error body. FastAPI
// validation errors use "detail", the service itself uses "error".
func errorMessage(raw map[string]any) string {
	if raw == nil {
		return ""
	}
	for _, k := range []string{"error", "detail", "message"} {
		switch v := raw[k].(type) {
		case string:
			return v
		case map[string]any:
			if msg, ok := v["message"].(string); ok {
				return msg
			}
		case nil:
		default:
			b, _ := json.Marshal(v)
			return string(b)
		}
	}
	return ""
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF)
}

// parseRetryAfterSeconds tries to interpret Retry-After header value as seconds or HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// classifyAPIError maps generic APIError to typed errors for better UX.
func classifyAPIError(apiErr *APIError, resp *http.Response) error {
	sc := apiErr.StatusCode
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case sc == http.StatusTooManyRequests:
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	case sc == http.StatusBadRequest || sc == http.StatusUnprocessableEntity:
		return &BadRequestError{APIError: apiErr}
	case sc >= 500 && sc <= 599:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "X-Request-ID", "Rndr-Id", "X-Amzn-Requestid"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter returns a backoff duration with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}
