package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"videojobs/internal/domain"
	"videojobs/internal/infra"
)

// KeySource supplies the API key when none is configured statically.
type KeySource interface {
	InferenceAPIKey(ctx context.Context) (string, error)
}

type Options struct {
	BaseURL    string
	APIKey     string
	Keys       KeySource
	HTTPClient *http.Client
	Objects    domain.ObjectStore
	Logger     infra.Logger
}

// Client talks to the hosted inference services. Each catalog step maps to a
// service endpoint at <BaseURL>/<service>. Without an API key the client
// produces deterministic synthetic artifacts so local stacks run end to end.
type Client struct {
	baseURL    string
	apiKey     string
	keys       KeySource
	httpClient *http.Client
	objects    domain.ObjectStore
	logger     infra.Logger
}

func NewClient(opts Options) (*Client, error) {
	if opts.Objects == nil {
		return nil, errors.New("inference: object store is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		apiKey:     strings.TrimSpace(opts.APIKey),
		keys:       opts.Keys,
		httpClient: httpClient,
		objects:    opts.Objects,
		logger:     opts.Logger,
	}, nil
}

// Runner returns the StepRunner bound to one service endpoint.
func (c *Client) Runner(service string) domain.StepRunner {
	return &serviceRunner{client: c, service: service}
}

type serviceRunner struct {
	client  *Client
	service string
}

func (r *serviceRunner) Invoke(ctx context.Context, in domain.StepInput) (domain.StepOutput, error) {
	return r.client.invoke(ctx, r.service, in)
}

type invokeRequest struct {
	JobID          string            `json:"job_id"`
	AccountID      string            `json:"account_id"`
	Step           string            `json:"step"`
	Inputs         []domain.InputRef `json:"inputs"`
	Settings       domain.Settings   `json:"settings"`
	PreviousOutput string            `json:"previous_output,omitempty"`
}

type invokeResponse struct {
	OutputRef    string `json:"output_ref"`
	OutputBase64 string `json:"output_base64"`
	Extension    string `json:"extension"`
	DurationMs   int64  `json:"duration_ms"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) resolveKey(ctx context.Context) string {
	if c.apiKey != "" || c.keys == nil {
		return c.apiKey
	}
	key, err := c.keys.InferenceAPIKey(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("inference: no stored api key")
		return ""
	}
	return strings.TrimSpace(key)
}

func (c *Client) invoke(ctx context.Context, service string, in domain.StepInput) (domain.StepOutput, error) {
	if err := ctx.Err(); err != nil {
		return domain.StepOutput{}, ctxError(service, err)
	}
	key := c.resolveKey(ctx)
	if key == "" || c.baseURL == "" {
		return c.synthetic(ctx, service, in)
	}

	body, err := json.Marshal(invokeRequest{
		JobID:          in.JobID,
		AccountID:      in.AccountID,
		Step:           in.StepName,
		Inputs:         in.Inputs,
		Settings:       in.Settings,
		PreviousOutput: in.PreviousOutput,
	})
	if err != nil {
		return domain.StepOutput{}, domain.NewStepError(domain.KindInvalidInput, "encode %s request: %v", service, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+service, bytes.NewReader(body))
	if err != nil {
		return domain.StepOutput{}, domain.NewStepError(domain.KindUnsupported, "build %s request: %v", service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("X-Job-ID", in.JobID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.StepOutput{}, ctxError(service, ctx.Err())
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return domain.StepOutput{}, domain.NewStepError(domain.KindTimeout, "%s: %v", service, err)
		}
		return domain.StepOutput{}, domain.NewStepError(domain.KindTransient, "%s: %v", service, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 256<<20))
	if err != nil {
		if ctx.Err() != nil {
			return domain.StepOutput{}, ctxError(service, ctx.Err())
		}
		return domain.StepOutput{}, domain.NewStepError(domain.KindTransient, "%s: read response: %v", service, err)
	}
	if resp.StatusCode >= 300 {
		return domain.StepOutput{}, domain.NewStepError(KindForStatus(resp.StatusCode), "%s: %s", service, errorMessage(resp.StatusCode, raw))
	}

	var out invokeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return domain.StepOutput{}, domain.NewStepError(domain.KindTransient, "%s: decode response: %v", service, err)
	}
	ref := out.OutputRef
	if ref == "" && out.OutputBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(out.OutputBase64)
		if err != nil {
			return domain.StepOutput{}, domain.NewStepError(domain.KindTransient, "%s: decode artifact: %v", service, err)
		}
		ref, err = c.objects.Put(ctx, artifactKey(in, out.Extension), data)
		if err != nil {
			return domain.StepOutput{}, domain.NewStepError(domain.KindTransient, "%s: store artifact: %v", service, err)
		}
	}
	if strings.TrimSpace(ref) == "" {
		return domain.StepOutput{}, domain.NewStepError(domain.KindTransient, "%s: response carried no artifact", service)
	}

	c.logger.Debug().
		Str("job_id", in.JobID).
		Str("step", in.StepName).
		Str("service", service).
		Dur("elapsed", time.Since(start)).
		Msg("inference: remote step finished")

	return domain.StepOutput{OutputRef: ref, DurationMs: out.DurationMs}, nil
}

// KindForStatus classifies a non-2xx response from an inference service.
func KindForStatus(status int) domain.ErrorKind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.KindInvalidInput
	case http.StatusUnsupportedMediaType, http.StatusNotImplemented:
		return domain.KindUnsupported
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return domain.KindTimeout
	case http.StatusTooManyRequests:
		return domain.KindTransient
	}
	if status >= 500 {
		return domain.KindTransient
	}
	return domain.KindInvalidInput
}

func ctxError(service string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewStepError(domain.KindTimeout, "%s: deadline exceeded", service)
	}
	return fmt.Errorf("%s: %w", service, err)
}

func errorMessage(status int, raw []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		return fmt.Sprintf("status %d: %s", status, parsed.Error.Message)
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Sprintf("status %d: %s", status, msg)
}

func artifactKey(in domain.StepInput, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("jobs/%s/%s.%s", in.JobID, in.StepName, ext)
}
