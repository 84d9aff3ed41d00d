package discovery

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// EndpointResolver yields the base URL of an upstream HTTP service.
type EndpointResolver interface {
	Resolve(ctx context.Context) string
}

// StaticEndpoint is a fixed base URL.
type StaticEndpoint string

func (e StaticEndpoint) Resolve(context.Context) string {
	return strings.TrimRight(string(e), "/")
}

// ServiceEndpoint looks the service up in etcd on every call and falls back
// to a configured URL when discovery is unavailable or empty.
type ServiceEndpoint struct {
	Discovery *ServiceDiscovery
	Name      string
	Fallback  string
	Logger    *zap.Logger
}

func (e *ServiceEndpoint) Resolve(ctx context.Context) string {
	fallback := strings.TrimRight(e.Fallback, "/")
	if e.Discovery == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	instances, err := e.Discovery.Discover(ctx, e.Name)
	if err != nil || len(instances) == 0 {
		if e.Logger != nil {
			e.Logger.Debug("Using fallback address for service",
				zap.String("service", e.Name),
				zap.String("address", fallback),
				zap.Error(err))
		}
		return fallback
	}
	return strings.TrimRight(instances[0].URL(), "/")
}
