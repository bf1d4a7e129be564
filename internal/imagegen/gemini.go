package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/inkhorn/easel/internal/apperr"
)

// geminiClient implements Generator against the Gemini generateContent REST API.
type geminiClient struct {
	endpoint string
	client   *http.Client
	cfg      Config
}

func newGeminiClient(cfg Config) *geminiClient {
	return &geminiClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   &http.Client{Timeout: cfg.Timeout},
		cfg:      cfg,
	}
}

// Wire types for the generateContent request/response.
type genPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *genInlineData `json:"inlineData,omitempty"`
}

type genInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type genContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []genPart `json:"parts"`
}

type genRequest struct {
	Contents         []genContent `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
	} `json:"generationConfig"`
}

type genResponse struct {
	Candidates []struct {
		Content genContent `json:"content"`
	} `json:"candidates"`
	Error *genError `json:"error,omitempty"`
}

type genError struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Generate submits the request and returns the first inline image from the
// response. Every failure is classified into an apperr sentinel or a wrapped
// generic error; no retries.
func (c *geminiClient) Generate(ctx context.Context, apiKey string, req Request) (*Result, error) {
	if apiKey == "" {
		return nil, apperr.ErrMissingCredential
	}

	// A sketch request is framed image first, instruction second; without a
	// raster the prompt stands alone.
	var parts []genPart
	if len(req.Image) > 0 {
		parts = append(parts, genPart{InlineData: &genInlineData{
			MIMEType: "image/png",
			Data:     base64.StdEncoding.EncodeToString(req.Image),
		}})
	}
	parts = append(parts, genPart{Text: req.Prompt})

	var body genRequest
	body.Contents = []genContent{{Role: "user", Parts: parts}}
	body.GenerationConfig.ResponseModalities = []string{"TEXT", "IMAGE"}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("imagegen: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.endpoint, req.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("imagegen: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("imagegen: call %s: %w", req.Model, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("imagegen: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.classify(resp.StatusCode, raw)
	}

	var decoded genResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("imagegen: decode response: %w", err)
	}
	if len(decoded.Candidates) == 0 {
		return nil, fmt.Errorf("imagegen: no candidates returned")
	}

	var result Result
	for _, part := range decoded.Candidates[0].Content.Parts {
		switch {
		case part.InlineData != nil && result.Image == nil:
			img, decErr := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if decErr != nil {
				return nil, fmt.Errorf("imagegen: decode inline image: %w", decErr)
			}
			result.Image = img
			result.MIME = part.InlineData.MIMEType
		case part.Text != "":
			result.Text += part.Text
		}
	}
	if result.Image == nil {
		return nil, fmt.Errorf("imagegen: response contains no image part")
	}

	c.cfg.Logger.Debug("generation succeeded",
		slog.String("model", req.Model),
		slog.Int("image_bytes", len(result.Image)))
	return &result, nil
}

// classify maps an API failure to the error taxonomy. Credential rejections
// and quota/permission failures get their own sentinels; everything else is
// transient/unknown and stays a plain wrapped error.
func (c *geminiClient) classify(status int, raw []byte) error {
	var decoded genResponse
	_ = json.Unmarshal(raw, &decoded)

	apiStatus, message := "", ""
	if decoded.Error != nil {
		apiStatus = decoded.Error.Status
		message = decoded.Error.Message
	}
	lower := strings.ToLower(message)

	switch {
	case status == http.StatusUnauthorized,
		apiStatus == "UNAUTHENTICATED",
		strings.Contains(lower, "api key not valid"),
		strings.Contains(lower, "api key expired"):
		return fmt.Errorf("%w: %s", apperr.ErrInvalidCredential, compact(message, status))

	case status == http.StatusTooManyRequests,
		status == http.StatusForbidden,
		apiStatus == "RESOURCE_EXHAUSTED",
		apiStatus == "PERMISSION_DENIED",
		strings.Contains(lower, "quota"),
		strings.Contains(lower, "billing"):
		return fmt.Errorf("%w: %s", apperr.ErrQuotaExceeded, compact(message, status))

	default:
		return fmt.Errorf("imagegen: HTTP %d: %s", status, compact(message, status))
	}
}

func compact(message string, status int) string {
	if message == "" {
		return fmt.Sprintf("HTTP %d", status)
	}
	if len(message) > 512 {
		message = message[:512]
	}
	return message
}
