package metrics

import (
	"fmt"
	"sync"
	"time"
)

// Metrics holds in-process counters for webhook turns and upstream service
// calls (retrieval, generation).
type Metrics struct {
	mu sync.RWMutex

	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64

	EndpointRequests map[string]int64
	EndpointErrors   map[string]int64
	EndpointLatency  map[string][]time.Duration

	ServiceCalls   map[string]int64
	ServiceErrors  map[string]int64
	ServiceLatency map[string][]time.Duration

	StartTime time.Time
}

var globalMetrics = &Metrics{
	EndpointRequests: make(map[string]int64),
	EndpointErrors:   make(map[string]int64),
	EndpointLatency:  make(map[string][]time.Duration),
	ServiceCalls:     make(map[string]int64),
	ServiceErrors:    make(map[string]int64),
	ServiceLatency:   make(map[string][]time.Duration),
	StartTime:        time.Now(),
}

// RecordRequest records one handled webhook or API request
func RecordRequest(endpoint string, success bool, latency time.Duration) {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()

	globalMetrics.TotalRequests++
	if success {
		globalMetrics.SuccessfulRequests++
	} else {
		globalMetrics.FailedRequests++
		globalMetrics.EndpointErrors[endpoint]++
	}

	globalMetrics.EndpointRequests[endpoint]++

	// Keep only last 100 latency measurements per endpoint
	if len(globalMetrics.EndpointLatency[endpoint]) >= 100 {
		globalMetrics.EndpointLatency[endpoint] = globalMetrics.EndpointLatency[endpoint][1:]
	}
	globalMetrics.EndpointLatency[endpoint] = append(globalMetrics.EndpointLatency[endpoint], latency)
}

// RecordServiceCall records one upstream service call ("retrieval",
// "generation", "archive")
func RecordServiceCall(service string, success bool, latency time.Duration) {
	globalMetrics.mu.Lock()
	defer globalMetrics.mu.Unlock()

	globalMetrics.ServiceCalls[service]++
	if !success {
		globalMetrics.ServiceErrors[service]++
	}

	if len(globalMetrics.ServiceLatency[service]) >= 100 {
		globalMetrics.ServiceLatency[service] = globalMetrics.ServiceLatency[service][1:]
	}
	globalMetrics.ServiceLatency[service] = append(globalMetrics.ServiceLatency[service], latency)
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	globalMetrics.mu.RLock()
	defer globalMetrics.mu.RUnlock()

	endpointAvgLatency := make(map[string]float64)
	for endpoint, latencies := range globalMetrics.EndpointLatency {
		if len(latencies) > 0 {
			var sum time.Duration
			for _, l := range latencies {
				sum += l
			}
			endpointAvgLatency[endpoint] = sum.Seconds() / float64(len(latencies))
		}
	}

	serviceAvgLatency := make(map[string]float64)
	for service, latencies := range globalMetrics.ServiceLatency {
		if len(latencies) > 0 {
			var sum time.Duration
			for _, l := range latencies {
				sum += l
			}
			serviceAvgLatency[service] = sum.Seconds() / float64(len(latencies))
		}
	}

	uptime := time.Since(globalMetrics.StartTime)

	return map[string]interface{}{
		"uptime_seconds": uptime.Seconds(),
		"requests": map[string]interface{}{
			"total":      globalMetrics.TotalRequests,
			"successful": globalMetrics.SuccessfulRequests,
			"failed":     globalMetrics.FailedRequests,
		},
		"endpoints": map[string]interface{}{
			"requests":            copyCounts(globalMetrics.EndpointRequests),
			"errors":              copyCounts(globalMetrics.EndpointErrors),
			"latency_avg_seconds": endpointAvgLatency,
		},
		"services": map[string]interface{}{
			"calls":               copyCounts(globalMetrics.ServiceCalls),
			"errors":              copyCounts(globalMetrics.ServiceErrors),
			"latency_avg_seconds": serviceAvgLatency,
		},
	}
}

// GetPrometheusMetrics returns metrics in Prometheus exposition format
func GetPrometheusMetrics() string {
	metrics := GetMetrics()
	var output string

	output += "# HELP agent_uptime_seconds Agent uptime in seconds\n"
	output += "# TYPE agent_uptime_seconds gauge\n"
	output += fmt.Sprintf("agent_uptime_seconds %.2f\n", metrics["uptime_seconds"].(float64))

	reqs := metrics["requests"].(map[string]interface{})
	output += "# HELP agent_requests_total Total number of requests\n"
	output += "# TYPE agent_requests_total counter\n"
	output += fmt.Sprintf("agent_requests_total{status=\"total\"} %d\n", reqs["total"].(int64))
	output += fmt.Sprintf("agent_requests_total{status=\"successful\"} %d\n", reqs["successful"].(int64))
	output += fmt.Sprintf("agent_requests_total{status=\"failed\"} %d\n", reqs["failed"].(int64))

	endpoints := metrics["endpoints"].(map[string]interface{})
	endpointReqs := endpoints["requests"].(map[string]int64)
	output += "# HELP agent_endpoint_requests_total Total requests per endpoint\n"
	output += "# TYPE agent_endpoint_requests_total counter\n"
	for endpoint, count := range endpointReqs {
		output += fmt.Sprintf("agent_endpoint_requests_total{endpoint=\"%s\"} %d\n", endpoint, count)
	}

	services := metrics["services"].(map[string]interface{})
	serviceCalls := services["calls"].(map[string]int64)
	output += "# HELP agent_service_calls_total Total calls per upstream service\n"
	output += "# TYPE agent_service_calls_total counter\n"
	for service, count := range serviceCalls {
		output += fmt.Sprintf("agent_service_calls_total{service=\"%s\"} %d\n", service, count)
	}

	serviceErrors := services["errors"].(map[string]int64)
	output += "# HELP agent_service_errors_total Total errors per upstream service\n"
	output += "# TYPE agent_service_errors_total counter\n"
	for service, count := range serviceErrors {
		output += fmt.Sprintf("agent_service_errors_total{service=\"%s\"} %d\n", service, count)
	}

	return output
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
