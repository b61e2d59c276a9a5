package grpc

import (
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService reports serving status through the standard gRPC health
// protocol. The empty service name covers the whole server.
type HealthService struct {
	*health.Server
}

// NewHealthService creates a health service that is not serving until
// SetReady is called
func NewHealthService() *HealthService {
	s := &HealthService{Server: health.NewServer()}
	s.SetReady(false)
	return s
}

// SetReady switches the server and the types service between SERVING and
// NOT_SERVING
func (s *HealthService) SetReady(ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.SetServingStatus("", status)
	s.SetServingStatus(TypesServiceName, status)
}
