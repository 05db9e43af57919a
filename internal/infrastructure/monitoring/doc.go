/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the
supervisor service, tracking HTTP requests, session pool churn, command
dispatch outcomes, and system metrics.

# Features

- HTTP request metrics (latency, throughput, size)
- Session pool metrics (active, created, reused, killed)
- Command metrics (mode/outcome counts, duration, timeouts, interrupts)
- WebSocket connection metrics
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record custom metrics
	metrics.IncSessionsCreated()
	metrics.RecordCommand("foreground", "completed")

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
