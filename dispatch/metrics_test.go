package dispatch

import "github.com/prometheus/client_golang/prometheus"

// newTestRegistry returns a throwaway registry so repeated test dispatchers
// don't collide registering the same collector names against the process's
// default Prometheus registry.
func newTestRegistry() prometheus.Registerer {
	return prometheus.NewRegistry()
}
