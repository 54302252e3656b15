// Package sysstats samples host CPU and memory utilization for the system
// monitor endpoint.
package sysstats
