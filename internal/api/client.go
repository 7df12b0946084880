package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/OCAP2/simtools/internal/api"

// Kind selects the collection an upload is filed under
type Kind string

const (
	KindScenario Kind = "scenario"
	KindTrace    Kind = "trace"
)

// UploadMetadata describes the file being published
type UploadMetadata struct {
	Kind   Kind
	Name   string
	Tag    string
	Teams  int
	Agents int
	// Frames and DurationSec are only set for traces
	Frames      int
	DurationSec int64
}

// Client publishes scenarios and traces to a scenario hub web frontend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the frontend address without a trailing slash
func (c *Client) BaseURL() string { return c.baseURL }

// Healthcheck checks if the frontend is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

func endpoint(kind Kind) (string, error) {
	switch kind {
	case KindScenario:
		return "/api/v1/scenarios/add", nil
	case KindTrace:
		return "/api/v1/traces/add", nil
	}
	return "", fmt.Errorf("unknown upload kind %q", kind)
}

// UploadFile sends the file at path, compressed or not, as it is on disk.
func (c *Client) UploadFile(ctx context.Context, path string, meta UploadMetadata) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return c.Upload(ctx, filepath.Base(path), file, meta)
}

// Upload streams body as a multipart form to the endpoint for meta.Kind.
func (c *Client) Upload(ctx context.Context, filename string, body io.Reader, meta UploadMetadata) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "api.Upload",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("kind", string(meta.Kind)),
			attribute.String("name", meta.Name),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	path, err := endpoint(meta.Kind)
	if err != nil {
		return err
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		fields := [][2]string{
			{"secret", c.apiKey},
			{"filename", filename},
			{"name", meta.Name},
			{"tag", meta.Tag},
			{"teams", strconv.Itoa(meta.Teams)},
			{"agents", strconv.Itoa(meta.Agents)},
		}
		if meta.Kind == KindTrace {
			fields = append(fields,
				[2]string{"frames", strconv.Itoa(meta.Frames)},
				[2]string{"durationSec", strconv.FormatInt(meta.DurationSec, 10)},
			)
		}
		for _, f := range fields {
			_ = writer.WriteField(f[0], f[1])
		}

		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			err = fmt.Errorf("failed to create form file: %w", err)
			pw.CloseWithError(err)
			errCh <- err
			return
		}
		if _, err := io.Copy(part, body); err != nil {
			err = fmt.Errorf("failed to copy file: %w", err)
			pw.CloseWithError(err)
			errCh <- err
			return
		}
		errCh <- writer.Close()
		pw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, pr)
	if err != nil {
		pr.Close()
		<-errCh
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		<-errCh
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// the server may answer before reading the whole form
		pr.CloseWithError(io.ErrClosedPipe)
		<-errCh
		return fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	if writeErr := <-errCh; writeErr != nil {
		return writeErr
	}
	return nil
}
