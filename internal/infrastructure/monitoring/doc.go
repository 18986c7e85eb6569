/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the
extension host, tracking HTTP requests, installer activity, modal and
bridge state, the timer service, and WebSocket connections.

# Usage

	// Create metrics collector (each instance has its own registry)
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record domain metrics
	metrics.RecordInstall("zip", err)
	metrics.ModalsOpen.Set(3)

# Metrics Endpoint

Expose metrics via the collector's own handler:

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
