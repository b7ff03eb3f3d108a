// Package health aggregates dependency checks and exposes them over the
// standard gRPC health protocol.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ServiceName is the gRPC health service name reported alongside "".
const ServiceName = "wa-connect.Conversation"

const defaultCheckTimeout = 3 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

// Report is the outcome of running every check.
type Report struct {
	Healthy    bool
	Components map[string]bool
}

// Monitor runs named checks and mirrors the aggregate into a gRPC health server.
type Monitor struct {
	mu      sync.RWMutex
	checks  map[string]Check
	last    Report
	timeout time.Duration
	server  *health.Server
	logger  *slog.Logger
}

// NewMonitor creates a Monitor. timeout bounds each check; <= 0 uses a default.
func NewMonitor(timeout time.Duration, logger *slog.Logger) *Monitor {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		checks:  make(map[string]Check),
		timeout: timeout,
		server:  health.NewServer(),
		logger:  logger,
	}
}

// Register adds a named check.
func (m *Monitor) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Check runs all checks concurrently and updates the gRPC serving status.
func (m *Monitor) Check(ctx context.Context) Report {
	m.mu.RLock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(m.checks))
	for k, v := range m.checks {
		checks[k] = v
	}
	m.mu.RUnlock()
	sort.Strings(names)

	results := make([]error, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			results[i] = check(cctx)
		}(i, checks[name])
	}
	wg.Wait()

	report := Report{Healthy: true, Components: make(map[string]bool, len(names))}
	for i, name := range names {
		up := results[i] == nil
		report.Components[name] = up
		if !up {
			report.Healthy = false
			m.logger.Warn("Health check failed", "component", name, "error", results[i])
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if !report.Healthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	m.server.SetServingStatus("", status)
	m.server.SetServingStatus(ServiceName, status)

	m.mu.Lock()
	m.last = report
	m.mu.Unlock()
	return report
}

// Last returns the most recent report.
func (m *Monitor) Last() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Run re-checks every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	m.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Serve exposes the health service on addr until ctx is done.
func (m *Monitor) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen grpc health on %s: %w", addr, err)
	}
	return m.ServeListener(ctx, lis)
}

// ServeListener is Serve on an existing listener.
func (m *Monitor) ServeListener(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.KeepaliveParams(keepalive.ServerParameters{
		MaxConnectionIdle: 5 * time.Minute,
	}))
	healthpb.RegisterHealthServer(srv, m.server)

	go func() {
		<-ctx.Done()
		m.server.Shutdown()
		srv.GracefulStop()
	}()

	m.logger.Info("gRPC health server listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve grpc health: %w", err)
	}
	return nil
}
