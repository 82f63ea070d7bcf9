package httpclient

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver counts lifecycle signals in Prometheus collectors.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	obs, err := httpclient.NewPrometheusObserver(reg, "payments")
//	if err != nil {
//	    return err
//	}
//	client := httpclient.New(httpclient.WithObserver(obs))
//	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
type PrometheusObserver struct {
	requests  *prometheus.CounterVec
	responses *prometheus.CounterVec
	redirects prometheus.Counter
	retries   prometheus.Counter
}

var _ Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver registers the collectors on reg. The namespace
// prefixes every metric name; an empty namespace is allowed.
func NewPrometheusObserver(reg prometheus.Registerer, namespace string) (*PrometheusObserver, error) {
	o := &PrometheusObserver{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "requests_issued_total",
			Help:      "Physical request attempts issued, by method and destination host.",
		}, []string{"method", "host"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "responses_received_total",
			Help:      "Responses received, by status code.",
		}, []string{"code"}),
		redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "redirects_followed_total",
			Help:      "Redirects followed.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http_client",
			Name:      "retries_total",
			Help:      "Requests retried after a server error.",
		}),
	}

	for _, c := range []prometheus.Collector{o.requests, o.responses, o.redirects, o.retries} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *PrometheusObserver) OnRequest(e Event) {
	o.requests.WithLabelValues(e.Config.Method, e.Config.Hostname).Inc()
}

func (o *PrometheusObserver) OnResponse(e Event) {
	o.responses.WithLabelValues(strconv.Itoa(e.State.StatusCode)).Inc()
}

func (o *PrometheusObserver) OnRedirect(Event) {
	o.redirects.Inc()
}

func (o *PrometheusObserver) OnRetry(Event) {
	o.retries.Inc()
}
