package httpapi

import (
	"encoding/json"
	"net/http"

	"cloudcost/internal/executor"
)

// GatewayServer exposes the job submission/status/result contract of
// spec §6 over HTTP: POST to create, GET to read, and a hard 405 on every
// mutation attempted against an immutable result.
type GatewayServer struct {
	mux     *http.ServeMux
	jobs    *JobService
	version string
}

// NewGatewayServer builds the gateway's HTTP surface around jobs.
func NewGatewayServer(version string, jobs *JobService) *GatewayServer {
	s := &GatewayServer{mux: http.NewServeMux(), jobs: jobs, version: version}
	s.registerRoutes()
	return s
}

func (s *GatewayServer) registerRoutes() {
	s.mux.HandleFunc("POST /uploads", instrument("uploads", s.handleUpload))
	s.mux.HandleFunc("POST /jobs", instrument("create_job", s.handleCreateJob))
	s.mux.HandleFunc("GET /jobs/{job_id}", instrument("get_job", s.handleGetJob))
	s.mux.HandleFunc("GET /jobs/{job_id}/result", instrument("get_result", s.handleGetResult))

	for _, method := range []string{"PUT", "PATCH", "DELETE"} {
		s.mux.HandleFunc(method+" /jobs/{job_id}/result", instrument("result_mutation", s.handleResultMutation))
	}

	s.mux.HandleFunc("GET /health", instrument("health", s.handleHealth))
	s.mux.Handle("GET /metrics", metricsHandler())
}

func (s *GatewayServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	var files []executor.SourceFile
	if err := json.NewDecoder(r.Body).Decode(&files); err != nil {
		writeErrorCode(w, "invalid_json", err.Error(), http.StatusBadRequest)
		return
	}
	if len(files) == 0 {
		writeErrorCode(w, "validation_error", "at least one file is required", http.StatusBadRequest)
		return
	}
	for _, f := range files {
		if err := validate.Struct(f); err != nil {
			writeErrorCode(w, "validation_error", err.Error(), http.StatusBadRequest)
			return
		}
	}

	uploadReference, err := s.jobs.UploadFiles(r.Context(), files)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, map[string]string{"upload_reference": uploadReference}, http.StatusCreated)
}

func (s *GatewayServer) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, "invalid_json", err.Error(), http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeErrorCode(w, "validation_error", err.Error(), http.StatusBadRequest)
		return
	}

	job, err := s.jobs.CreateJob(r.Context(), req)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, job, http.StatusCreated)
}

func (s *GatewayServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	resp, err := s.jobs.GetJob(r.Context(), r.PathValue("job_id"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, resp, http.StatusOK)
}

func (s *GatewayServer) handleGetResult(w http.ResponseWriter, r *http.Request) {
	fcm, err := s.jobs.GetResult(r.Context(), r.PathValue("job_id"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, fcm, http.StatusOK)
}

func (s *GatewayServer) handleResultMutation(w http.ResponseWriter, r *http.Request) {
	writeImmutabilityViolation(w, "cost result")
}

func (s *GatewayServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy", "version": s.version}, http.StatusOK)
}

// ServeHTTP implements http.Handler.
func (s *GatewayServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the gateway on addr.
func (s *GatewayServer) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
