package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// register* возвращают уже зарегистрированный коллектор при повторной регистрации,
// чтобы несколько экземпляров метрик в одном процессе делили одни серии.

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		return existingCollector[prometheus.Counter](err, opts.Name)
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		return existingCollector[*prometheus.CounterVec](err, opts.Name)
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		return existingCollector[prometheus.Gauge](err, opts.Name)
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		return existingCollector[*prometheus.HistogramVec](err, opts.Name)
	}
	return collector
}

func existingCollector[T prometheus.Collector](err error, name string) T {
	var alreadyRegistered prometheus.AlreadyRegisteredError
	if !errors.As(err, &alreadyRegistered) {
		panic(fmt.Sprintf("register collector %q: %v", name, err))
	}
	existing, ok := alreadyRegistered.ExistingCollector.(T)
	if !ok {
		panic(fmt.Sprintf("collector %q already registered with unexpected type", name))
	}
	return existing
}
