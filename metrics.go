package main

import (
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ClientMetrics struct {
	Session *SessionMetrics
}

type SessionMetrics struct {
	Logins   metrics.Counter
	Logouts  metrics.Counter
	Commands metrics.Counter
}

func NewClientMetrics(prometheusAddr string) *ClientMetrics {

	m := &ClientMetrics{}

	if prometheusAddr == "" {
		m.Session = &SessionMetrics{
			Logins:   discard.NewCounter(),
			Logouts:  discard.NewCounter(),
			Commands: discard.NewCounter(),
		}
	} else {
		m.Session = &SessionMetrics{
			Logins: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "skaffari",
				Subsystem: "imap",
				Name:      "logins_total",
				Help:      "Number of successful logins",
			}, nil),
			Logouts: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "skaffari",
				Subsystem: "imap",
				Name:      "logouts_total",
				Help:      "Number of logouts",
			}, nil),
			Commands: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "skaffari",
				Subsystem: "imap",
				Name:      "commands_total",
				Help:      "Number of issued provisioning commands",
			}, nil),
		}
	}

	return m
}

func runPromHTTP(logger log.Logger, addr string) {

	if addr == "" {
		level.Debug(logger).Log("msg", "prometheus addr is empty, not exposing prometheus metrics")
		return
	}

	http.Handle("/metrics", promhttp.HandlerFor(prom.DefaultGatherer, promhttp.HandlerOpts{}))

	level.Info(logger).Log("msg", "prometheus handler listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		level.Warn(logger).Log("msg", "failed to serve prometheus metrics", "err", err)
	}
}
