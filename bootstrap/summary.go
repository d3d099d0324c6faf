package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kbukum/shopstream/component"
)

// InfrastructureInfo describes an infrastructure component.
type InfrastructureInfo struct {
	Name    string
	Type    string // e.g. "database", "server", "bus", "sse"
	Details string
	Port    int
}

// ConsumerInfo describes a message consumer such as a bus stage.
type ConsumerInfo struct {
	Name   string
	Input  string
	Output string
}

// Summary collects and prints the startup overview.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	consumers       []ConsumerInfo
	out             io.Writer
}

// NewSummary creates a new startup summary.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version, out: os.Stdout}
}

// SetOutput redirects the printed summary.
func (s *Summary) SetOutput(w io.Writer) {
	s.out = w
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackConsumer records a consumer. An empty output marks a terminal stage.
func (s *Summary) TrackConsumer(name, input, output string) {
	s.consumers = append(s.consumers, ConsumerInfo{Name: name, Input: input, Output: output})
}

// Consumers returns the tracked consumers.
func (s *Summary) Consumers() []ConsumerInfo {
	return s.consumers
}

// CollectInfrastructure gathers descriptions from components implementing
// component.Describable.
func CollectInfrastructure(registry *component.Registry) []InfrastructureInfo {
	var infos []InfrastructureInfo
	for _, c := range registry.All() {
		d, ok := c.(component.Describable)
		if !ok {
			continue
		}
		desc := d.Describe()
		name := desc.Name
		if name == "" {
			name = c.Name()
		}
		infos = append(infos, InfrastructureInfo{Name: name, Type: desc.Type, Details: desc.Details, Port: desc.Port})
	}
	return infos
}

// CollectRoutes gathers routes from components implementing
// component.RouteProvider.
func CollectRoutes(registry *component.Registry) []component.Route {
	var routes []component.Route
	for _, c := range registry.All() {
		if rp, ok := c.(component.RouteProvider); ok {
			routes = append(routes, rp.Routes()...)
		}
	}
	return routes
}

// DisplaySummary prints the summary including live health from the registry.
func (s *Summary) DisplaySummary(registry *component.Registry) {
	w := s.out
	fmt.Fprintf(w, "\n%s v%s started in %.2fs\n\n", s.serviceName, s.version, s.startupDuration.Seconds())

	if registry == nil {
		fmt.Fprintf(w, "   └── No components registered\n\n")
		return
	}

	infra := CollectInfrastructure(registry)
	if len(infra) > 0 {
		fmt.Fprintf(w, "Infrastructure\n")
		for i, inf := range infra {
			details := inf.Details
			if inf.Port > 0 {
				details = fmt.Sprintf("%s (:%d)", details, inf.Port)
			}
			fmt.Fprintf(w, "   %s [%s] %s: %s\n", treePrefix(i, len(infra)), inf.Type, inf.Name, details)
		}
	}

	if len(s.consumers) > 0 {
		fmt.Fprintf(w, "\nConsumers\n")
		for i, c := range s.consumers {
			target := c.Output
			if target == "" {
				target = "(terminal)"
			}
			fmt.Fprintf(w, "   %s %s: %s → %s\n", treePrefix(i, len(s.consumers)), c.Name, c.Input, target)
		}
	}

	routes := CollectRoutes(registry)
	if len(routes) > 0 {
		fmt.Fprintf(w, "\nRoutes (%d)\n", len(routes))
		for i, r := range routes {
			fmt.Fprintf(w, "   %s %-7s %s → %s\n", treePrefix(i, len(routes)), r.Method, r.Path, r.Handler)
		}
	}

	health := registry.HealthAll(context.Background())
	if len(health) > 0 {
		fmt.Fprintf(w, "\nHealth\n")
		healthy := 0
		for i, h := range health {
			msg := ""
			if h.Message != "" {
				msg = " (" + h.Message + ")"
			}
			if h.Status == component.StatusHealthy {
				healthy++
			}
			fmt.Fprintf(w, "   %s %s %s: %s%s\n", treePrefix(i, len(health)),
				healthStatusIcon(h.Status), h.Name, strings.ToLower(string(h.Status)), msg)
		}
		fmt.Fprintf(w, "\n%d/%d components healthy\n", healthy, len(health))
	}

	fmt.Fprintf(w, "\n")
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
