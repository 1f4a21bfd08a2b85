package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/docbot-dev/docbot/pkg/events"
	"github.com/docbot-dev/docbot/pkg/tracker"
)

// Metrics aggregates run telemetry for /metrics. Counters are fed from the
// event bus; the drop gauge reads the bus directly.
type Metrics struct {
	registry *prometheus.Registry

	llmRequests   prometheus.Counter
	llmTokens     prometheus.Counter
	toolCalls     *prometheus.CounterVec
	toolErrors    prometheus.Counter
	agentsSpawned prometheus.Counter
	scopeDuration prometheus.Histogram
}

func newMetrics(bus *events.Bus, track *tracker.Tracker) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		llmRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docbot_llm_requests_total",
			Help: "LLM chat requests started (streamed or not).",
		}),
		llmTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docbot_llm_token_events_total",
			Help: "Streamed LLM token events observed on the bus.",
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docbot_tool_calls_total",
			Help: "Agent tool invocations by tool name.",
		}, []string{"tool"}),
		toolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docbot_tool_errors_total",
			Help: "Agent tool invocations that returned an error result.",
		}),
		agentsSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docbot_agents_spawned_total",
			Help: "Agents spawned, root and delegates alike.",
		}),
		scopeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docbot_scope_duration_seconds",
			Help:    "Wall-clock duration of scope exploration.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	m.registry.MustRegister(
		m.llmRequests, m.llmTokens, m.toolCalls, m.toolErrors,
		m.agentsSpawned, m.scopeDuration,
	)

	if bus != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "docbot_bus_dropped_events",
			Help: "Events dropped by the bus due to slow subscribers.",
		}, func() float64 { return float64(bus.Dropped()) }))

		ch, _ := bus.Subscribe(256)
		go m.consume(ch, track)
	}
	return m
}

// consume runs until the bus closes the subscription.
func (m *Metrics) consume(ch <-chan events.Event, track *tracker.Tracker) {
	for e := range ch {
		switch e.Type {
		case events.TypeAgentSpawned:
			m.agentsSpawned.Inc()
		case events.TypeLLMRequest:
			m.llmRequests.Inc()
		case events.TypeLLMToken:
			m.llmTokens.Inc()
		case events.TypeToolStart:
			m.toolCalls.WithLabelValues(e.Tool).Inc()
		case events.TypeToolError:
			m.toolErrors.Inc()
		case events.TypeScopeDone:
			if track == nil {
				continue
			}
			if node, ok := track.Snapshot().Nodes[e.AgentID]; ok && node.Elapsed > 0 {
				m.scopeDuration.Observe(node.Elapsed)
			}
		}
	}
}
