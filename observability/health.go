package observability

import "context"

// HealthStatus is the reported state of an engine or the service as a whole.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health is one component's health report, typically a recognition engine
// in the fallback chain.
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Up reports a healthy component.
func Up(name string) Health {
	return Health{Name: name, Status: HealthStatusUp}
}

// Down reports an unreachable component.
func Down(name, message string) Health {
	return Health{Name: name, Status: HealthStatusDown, Message: message}
}

// Degraded reports a component that works but below full capacity, such as
// an engine that is registered but not yet instantiated.
func Degraded(name, message string) Health {
	return Health{Name: name, Status: HealthStatusDegraded, Message: message}
}

// ServiceHealth aggregates component reports into an overall status. The
// service is only as healthy as its worst engine.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Components []Health     `json:"components,omitempty"`
}

// HealthChecker is implemented by components that can report their health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) Health
}

// NewServiceHealth creates a ServiceHealth with status up.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{
		Service: service,
		Status:  HealthStatusUp,
		Version: version,
	}
}

// AddComponent records a component report and lowers the overall status when
// the component is down or degraded. A down component always wins over a
// degraded one.
func (sh *ServiceHealth) AddComponent(ch Health) {
	sh.Components = append(sh.Components, ch)

	switch ch.Status {
	case HealthStatusDown:
		sh.Status = HealthStatusDown
	case HealthStatusDegraded:
		if sh.Status != HealthStatusDown {
			sh.Status = HealthStatusDegraded
		}
	}
}
