package sim

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanara_events_emitted_total",
			Help: "Total fleet events handed to the event sinks",
		},
		[]string{"event"},
	)
	sinkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanara_sink_errors_total",
			Help: "Event sink failures swallowed by the engine",
		},
		[]string{"sink"},
	)
	detectionsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vanara_detections_total",
			Help: "Detections appended to the history",
		},
		[]string{"type", "source"},
	)
	presenceTriggers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vanara_presence_triggers_total",
			Help: "Human presence triggers from the frame scanner",
		},
	)
	botBattery = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vanara_bot_battery_percent",
			Help: "Battery level per bot",
		},
		[]string{"bot"},
	)
	botsCharging = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vanara_bots_charging",
			Help: "Number of bots docked and charging",
		},
	)
	activeAlerts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vanara_alerts_active",
			Help: "Unacknowledged alerts",
		},
	)
	tickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vanara_tick_duration_seconds",
			Help:    "Time spent inside one scheduled tick",
			Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
		},
		[]string{"task"},
	)
)

func init() {
	prometheus.MustRegister(eventsEmitted)
	prometheus.MustRegister(sinkErrors)
	prometheus.MustRegister(detectionsRecorded)
	prometheus.MustRegister(presenceTriggers)
	prometheus.MustRegister(botBattery)
	prometheus.MustRegister(botsCharging)
	prometheus.MustRegister(activeAlerts)
	prometheus.MustRegister(tickDuration)
}
