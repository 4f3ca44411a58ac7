// Package server exposes the dictation REST API: session lifecycle
// endpoints for capture clients plus health, stats, and Prometheus
// metrics for operators. Every API route is authenticated and wrapped
// with request metrics.
package server
