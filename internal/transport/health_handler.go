package transport

import (
	"context"
	"net/http"
	"time"

	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	healthPath    = "/v1/health"
	healthTimeout = 3 * time.Second
)

// HealthChecker is the gRPC health client the REST health route forwards to.
type HealthChecker interface {
	Check(ctx context.Context, in *healthpb.HealthCheckRequest, opts ...grpc.CallOption) (*healthpb.HealthCheckResponse, error)
}

type healthBody struct {
	Status string `json:"status"`
}

// RegisterHealth exposes the gRPC health status of service at GET /v1/health.
// Anything but SERVING answers 503.
func RegisterHealth(mux *gwruntime.ServeMux, checker HealthChecker, service string) error {
	return mux.HandlePath(http.MethodGet, healthPath, func(w http.ResponseWriter, req *http.Request, _ map[string]string) {
		ctx, cancel := context.WithTimeout(req.Context(), healthTimeout)
		defer cancel()

		resp, err := checker.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		code := http.StatusOK
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, healthBody{Status: resp.GetStatus().String()})
	})
}
