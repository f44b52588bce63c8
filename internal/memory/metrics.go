package memory

import "github.com/prometheus/client_golang/prometheus"

var (
	usedBytesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "runtimed",
		Subsystem: "memory",
		Name:      "used_bytes",
		Help:      "Process used memory at the last sample",
	})

	availableBytesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "runtimed",
		Subsystem: "memory",
		Name:      "available_bytes",
		Help:      "System available memory at the last sample",
	})

	pressureGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "runtimed",
		Subsystem: "memory",
		Name:      "pressure",
		Help:      "Current pressure level (1 for the active level, 0 otherwise)",
	}, []string{"level"})
)

func init() {
	prometheus.MustRegister(usedBytesGauge, availableBytesGauge, pressureGauge)
}

func observeSample(s Sample) {
	usedBytesGauge.Set(float64(s.UsedBytes))
	availableBytesGauge.Set(float64(s.AvailableBytes))
	for _, lvl := range []PressureLevel{PressureNormal, PressureWarning, PressureCritical} {
		v := 0.0
		if lvl == s.Pressure {
			v = 1.0
		}
		pressureGauge.WithLabelValues(string(lvl)).Set(v)
	}
}
