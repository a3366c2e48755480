package httpapi

import (
	"encoding/json"
	"net/http"

	"cloudcost/internal/executor"
)

// ExecutorServer exposes the plan executor's internal API: submit,
// status, result, cancel. It is a thin HTTP skin over executor.Service,
// grounded on the same Server/mux/writeJSON/writeError shape as the
// gateway, just routed under the executor's own endpoints.
type ExecutorServer struct {
	mux     *http.ServeMux
	service *executor.Service
}

// NewExecutorServer builds the executor's internal API around service.
func NewExecutorServer(service *executor.Service) *ExecutorServer {
	s := &ExecutorServer{mux: http.NewServeMux(), service: service}
	s.registerRoutes()
	return s
}

func (s *ExecutorServer) registerRoutes() {
	s.mux.HandleFunc("POST /execute", instrument("execute", s.handleExecute))
	s.mux.HandleFunc("GET /status/{execution_id}", instrument("status", s.handleStatus))
	s.mux.HandleFunc("GET /result/{execution_id}", instrument("result", s.handleResult))
	s.mux.HandleFunc("DELETE /execution/{execution_id}", instrument("cancel", s.handleCancel))
	s.mux.Handle("GET /metrics", metricsHandler())
}

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	JobID               string              `json:"job_id" validate:"required"`
	IACSource           []executor.SourceFile `json:"iac_source" validate:"required,min=1,dive"`
	Variables           map[string]string   `json:"variables,omitempty"`
	CredentialReference string              `json:"credential_reference,omitempty"`
}

// ExecuteResponse is the 202 body returned by POST /execute.
type ExecuteResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}

func (s *ExecutorServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, "invalid_json", err.Error(), http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeErrorCode(w, "validation_error", err.Error(), http.StatusBadRequest)
		return
	}

	executionID, err := s.service.Submit(r.Context(), req.IACSource, req.Variables, req.CredentialReference)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	writeJSON(w, ExecuteResponse{ExecutionID: executionID, Status: string(executor.StatusPending)}, http.StatusAccepted)
}

func (s *ExecutorServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("execution_id")
	record, err := s.service.Status(r.Context(), id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, record, http.StatusOK)
}

func (s *ExecutorServer) handleResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("execution_id")
	result, err := s.service.Result(r.Context(), id)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, result, http.StatusOK)
}

func (s *ExecutorServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("execution_id")
	if err := s.service.Cancel(r.Context(), id); err != nil {
		writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeHTTP implements http.Handler.
func (s *ExecutorServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the executor's internal API on addr.
func (s *ExecutorServer) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
