package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docbot_llm_requests_total",
		Help: "LLM requests by final outcome.",
	}, []string{"outcome"})

	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docbot_llm_tokens_total",
		Help: "Tokens consumed by direction.",
	}, []string{"direction"})
)

func observeUsage(input, output int) {
	if input > 0 {
		tokensTotal.WithLabelValues("input").Add(float64(input))
	}
	if output > 0 {
		tokensTotal.WithLabelValues("output").Add(float64(output))
	}
}
