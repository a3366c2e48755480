package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"cloudcost/internal/errors"
	"cloudcost/internal/executor"
)

// ExecutorClient calls a running executor process's internal API. The
// orchestrator's PLANNING stage uses this instead of embedding
// executor.Service directly, since the executor runs as its own process
// with its own sandboxed Terraform workers.
type ExecutorClient struct {
	baseURL string
	http    *http.Client
}

// NewExecutorClient builds a client against an executor process listening
// at baseURL (e.g. "http://executor:8081").
func NewExecutorClient(baseURL string) *ExecutorClient {
	return &ExecutorClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Execute submits files for planning and returns the resulting execution
// ID, mirroring POST /execute's 202 response.
func (c *ExecutorClient) Execute(ctx context.Context, jobID string, files []executor.SourceFile, variables map[string]string, credentialReference string) (string, error) {
	body, err := json.Marshal(ExecuteRequest{
		JobID:               jobID,
		IACSource:           files,
		Variables:           variables,
		CredentialReference: credentialReference,
	})
	if err != nil {
		return "", errors.Wrap(errors.TypeInternal, "encode execute request", err)
	}

	var resp ExecuteResponse
	if err := c.do(ctx, http.MethodPost, "/execute", body, &resp); err != nil {
		return "", err
	}
	return resp.ExecutionID, nil
}

// Status fetches the current record for executionID.
func (c *ExecutorClient) Status(ctx context.Context, executionID string) (*executor.Record, error) {
	var record executor.Record
	if err := c.do(ctx, http.MethodGet, "/status/"+executionID, nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Result fetches the terminal result for executionID. Callers should only
// call this once Status reports a terminal status; the executor itself
// returns a conflict error otherwise.
func (c *ExecutorClient) Result(ctx context.Context, executionID string) (*executor.Result, error) {
	var result executor.Result
	if err := c.do(ctx, http.MethodGet, "/result/"+executionID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Cancel requests that executionID stop, per DELETE /execution/{id}.
func (c *ExecutorClient) Cancel(ctx context.Context, executionID string) error {
	return c.do(ctx, http.MethodDelete, "/execution/"+executionID, nil, nil)
}

func (c *ExecutorClient) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(errors.TypeInternal, "build executor request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.TypeUpstreamUnavailable, "call plan executor", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return errors.Newf(errors.TypeUpstreamUnavailable, "plan executor %s %s: %d %s", method, path, resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(errors.TypeInternal, "decode plan executor response", err)
	}
	return nil
}
