package fleet

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	fleetOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_operations_total",
			Help: "Total fleet operations by outcome tag",
		},
		[]string{"op"},
	)

	fleetActiveRentals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleet_active_rentals",
			Help: "Number of rentals currently open",
		},
	)

	fleetDockedBikes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleet_docked_bikes",
			Help: "Bikes currently docked per station",
		},
		[]string{"station"},
	)

	fleetMoveRollbackFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_move_rollback_failures_total",
			Help: "Manual moves whose compensating return also failed, leaving a bike tracked by neither station",
		},
	)
)

// RegisterMetrics registers the fleet metrics with the provided registry.
// Call once at startup.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(fleetOperationsTotal, fleetActiveRentals, fleetDockedBikes, fleetMoveRollbackFailures)
}
