package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	// PredictPath is appended to the configured base URL.
	PredictPath = "/predict"
	// FileField is the multipart field carrying the image.
	FileField = "file"

	maxResponseBytes = 1 << 20
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// HTTPClient calls the classifier's REST endpoint.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewHTTPClient returns a client for the classifier at baseURL. A nil
// httpClient uses a client without a timeout.
func NewHTTPClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger.Named("prediction_client"),
	}
}

// BaseURL returns the classifier address without a trailing slash.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Predict uploads the image and validates the classifier's answer.
func (c *HTTPClient) Predict(ctx context.Context, upload Upload) (Result, error) {
	body, contentType, err := encodeUpload(upload)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PredictPath, body)
	if err != nil {
		return Result{}, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("classifier unreachable", zap.String("base_url", c.baseURL), zap.Error(err))
		return Result{}, newTransportError(c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		c.logger.Warn("classifier returned error status", zap.Int("status", resp.StatusCode))
		return Result{}, newServerError(resp.StatusCode, statusText(resp))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, newMalformedError(resp.StatusCode, err)
	}

	result, err := decodeResult(data)
	if err != nil {
		c.logger.Warn("classifier response rejected", zap.Error(err), zap.Int("bytes", len(data)))
		return Result{}, newMalformedError(resp.StatusCode, err)
	}
	return result, nil
}

func encodeUpload(upload Upload) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	name := upload.Name
	if name == "" {
		name = "upload"
	}
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FileField, quoteEscaper.Replace(name)))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, "", fmt.Errorf("write multipart part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

type wireResult struct {
	Prediction *string  `json:"prediction"`
	Confidence *float64 `json:"confidence"`
}

func decodeResult(data []byte) (Result, error) {
	var wire wireResult
	if err := json.Unmarshal(data, &wire); err != nil {
		return Result{}, err
	}
	if wire.Prediction == nil || *wire.Prediction == "" {
		return Result{}, errors.New("missing prediction")
	}
	if wire.Confidence == nil {
		return Result{}, errors.New("missing confidence")
	}
	if c := *wire.Confidence; c < 0 || c > 1 {
		return Result{}, fmt.Errorf("confidence %v outside [0,1]", c)
	}
	return Result{Prediction: *wire.Prediction, Confidence: *wire.Confidence}, nil
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

var _ Client = (*HTTPClient)(nil)
