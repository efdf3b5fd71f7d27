package api

// HealthResponse from GET /api/health
type HealthResponse struct {
	Status       string   `json:"status"`
	State        string   `json:"state"`
	ModelLoaded  bool     `json:"model_loaded"`
	ModelName    *string  `json:"model_name"`
	GPUAvailable bool     `json:"gpu_available"`
	GPUName      *string  `json:"gpu_name"`
	GPUVRAMGB    *float64 `json:"gpu_vram_gb"`
}

// OK reports whether the server considers itself healthy.
func (h HealthResponse) OK() bool {
	return h.Status == "ok"
}
