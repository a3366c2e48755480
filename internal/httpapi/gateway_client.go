package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"cloudcost/core/types"
	"cloudcost/internal/errors"
	"cloudcost/internal/executor"
)

// GatewayClient calls a running gateway process's public API. The CLI uses
// this instead of estimating locally, so a command-line run and an HTTP
// caller go through the exact same job pipeline.
type GatewayClient struct {
	baseURL string
	http    *http.Client
}

// NewGatewayClient builds a client against a gateway listening at baseURL
// (e.g. "http://localhost:8080").
func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload stages files ahead of CreateJob and returns the upload_reference
// its request expects.
func (c *GatewayClient) Upload(ctx context.Context, files []executor.SourceFile) (string, error) {
	body, err := json.Marshal(files)
	if err != nil {
		return "", errors.Wrap(errors.TypeInternal, "encode upload request", err)
	}
	var resp struct {
		UploadReference string `json:"upload_reference"`
	}
	if err := c.do(ctx, http.MethodPost, "/uploads", body, &resp); err != nil {
		return "", err
	}
	return resp.UploadReference, nil
}

// CreateJob submits req to the gateway's create_job endpoint.
func (c *GatewayClient) CreateJob(ctx context.Context, req CreateJobRequest) (*types.Job, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(errors.TypeInternal, "encode create_job request", err)
	}
	var job types.Job
	if err := c.do(ctx, http.MethodPost, "/jobs", body, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob fetches a job's current status.
func (c *GatewayClient) GetJob(ctx context.Context, jobID string) (*GetJobResponse, error) {
	var resp GetJobResponse
	if err := c.do(ctx, http.MethodGet, "/jobs/"+jobID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetResult fetches a completed job's Final Cost Model.
func (c *GatewayClient) GetResult(ctx context.Context, jobID string) (*types.FCM, error) {
	var fcm types.FCM
	if err := c.do(ctx, http.MethodGet, "/jobs/"+jobID+"/result", nil, &fcm); err != nil {
		return nil, err
	}
	return &fcm, nil
}

func (c *GatewayClient) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(errors.TypeInternal, "build gateway request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.TypeUpstreamUnavailable, "call gateway", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return errors.Newf(errors.TypeUpstreamUnavailable, "gateway %s %s: %d %s", method, path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
