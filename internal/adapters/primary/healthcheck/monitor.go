// Package healthcheck reports backend reachability through the gRPC health
// service.
package healthcheck

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Probe returns nil while its backend is reachable.
type Probe func(ctx context.Context) error

// Monitor runs every probe on a fixed interval. The overall service ("") is
// SERVING only while all probes pass; each probe is also published under
// its own name.
type Monitor struct {
	server   *health.Server
	probes   map[string]Probe
	interval time.Duration
	timeout  time.Duration

	mu     sync.Mutex
	failed map[string]bool
}

func NewMonitor(server *health.Server, probes map[string]Probe, interval time.Duration) *Monitor {
	return &Monitor{
		server:   server,
		probes:   probes,
		interval: interval,
		timeout:  min(interval, 2*time.Second),
		failed:   make(map[string]bool),
	}
}

// Run checks once immediately, then on every tick until ctx is done. It
// leaves every service NOT_SERVING on exit.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	defer m.server.Shutdown()

	m.CheckOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckOnce(ctx)
		}
	}
}

// CheckOnce runs all probes concurrently and publishes their status.
func (m *Monitor) CheckOnce(ctx context.Context) {
	var wg sync.WaitGroup
	for name, probe := range m.probes {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			m.record(name, probe(probeCtx))
		}(name, probe)
	}
	wg.Wait()

	m.mu.Lock()
	healthy := true
	for _, failed := range m.failed {
		if failed {
			healthy = false
			break
		}
	}
	m.mu.Unlock()

	m.server.SetServingStatus("", servingStatus(healthy))
}

func (m *Monitor) record(name string, err error) {
	m.mu.Lock()
	wasFailing := m.failed[name]
	m.failed[name] = err != nil
	m.mu.Unlock()

	switch {
	case err != nil && !wasFailing:
		slog.Warn("❌ Backend unhealthy", "backend", name, "error", err)
	case err == nil && wasFailing:
		slog.Info("✅ Backend recovered", "backend", name)
	}
	m.server.SetServingStatus(name, servingStatus(err == nil))
}

func servingStatus(ok bool) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if ok {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}
