package main

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/campusplanner/campusplanner/dataobjects"
	"github.com/campusplanner/campusplanner/metrics"
	statsd "gopkg.in/alexcesaro/statsd.v2"
)

// APIrequestTelemetry is a channel where the duration of every served API
// request is sent
var APIrequestTelemetry = make(chan time.Duration, 10)

var (
	apiTotalRequests int64

	apiLatencyMu  sync.Mutex
	apiLatencyAvg = movingaverage.New(100)
)

// registerAPIRequest records an API request in the telemetry. It never blocks.
func registerAPIRequest(duration time.Duration) {
	atomic.AddInt64(&apiTotalRequests, 1)

	apiLatencyMu.Lock()
	apiLatencyAvg.Add(float64(duration))
	apiLatencyMu.Unlock()

	select {
	case APIrequestTelemetry <- duration:
	default:
	}
}

// apiStats returns the average latency of the latest API requests and the
// total number of API requests served since startup
func apiStats() (time.Duration, int64) {
	apiLatencyMu.Lock()
	avg := apiLatencyAvg.Avg()
	apiLatencyMu.Unlock()
	return time.Duration(avg).Round(time.Millisecond), atomic.LoadInt64(&apiTotalRequests)
}

// StatsSender is meant to be called as a goroutine that handles sending telemetry
// to a statsd (or compatible) server, and keeps the user gauges up to date
func StatsSender() {
	opts := []statsd.Option{statsd.Mute(true)}
	statsdAddress, present := secrets.Get("statsdAddress")
	statsdPrefix, present2 := secrets.Get("statsdPrefix")
	if present && present2 {
		opts = []statsd.Option{statsd.Address(statsdAddress), statsd.Prefix(statsdPrefix)}
	}

	c, err := statsd.New(opts...)
	if err != nil {
		// If nothing is listening on the target port, an error is returned and
		// the returned client does nothing but is still usable. So we can
		// just log the error and go on.
		mainLog.Println(err)
	}
	defer c.Close()

	updateUserGauges(c)
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			updateUserGauges(c)
			latency, _ := apiStats()
			c.Gauge("api_latency_ms", latency.Milliseconds())
		case duration := <-APIrequestTelemetry:
			c.Increment("apicalls")
			c.Timing("apicall_duration", int(duration/time.Millisecond))
		}
	}
}

func updateUserGauges(c *statsd.Client) {
	total, onboarded, err := dataobjects.CountUsers(rootSqalxNode)
	if err != nil {
		mainLog.Println(err)
		return
	}
	metrics.Users.WithLabelValues(strconv.FormatBool(true)).Set(float64(onboarded))
	metrics.Users.WithLabelValues(strconv.FormatBool(false)).Set(float64(total - onboarded))
	c.Gauge("users", total)
	c.Gauge("users_onboarded", onboarded)
}
