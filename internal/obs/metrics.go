// Package obs exposes Prometheus metrics for the authentication core.
// Security-significant events (token reuse in particular) are counted here
// so monitoring can alert on them even though callers only see a generic
// invalid-token failure.
package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"result"},
	)

	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_refresh_total",
			Help: "Refresh-token rotations by outcome.",
		},
		[]string{"result"},
	)

	tokenReuseTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_token_reuse_detected_total",
		Help: "Refresh attempts with an already-rotated token. Each one revokes a session family.",
	})

	passwordResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_password_resets_total",
			Help: "Password-reset operations by stage.",
		},
		[]string{"stage"},
	)
)

// Init registers the auth metrics in the default registry.
func Init() {
	prometheus.MustRegister(loginsTotal, refreshTotal, tokenReuseTotal, passwordResetsTotal)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveLogin(result string)   { loginsTotal.WithLabelValues(result).Inc() }
func ObserveRefresh(result string) { refreshTotal.WithLabelValues(result).Inc() }
func ObserveTokenReuse()           { tokenReuseTotal.Inc() }
func ObserveReset(stage string)    { passwordResetsTotal.WithLabelValues(stage).Inc() }
