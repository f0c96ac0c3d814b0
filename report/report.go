// Package report sends errors and panics to Sentry, when a DSN is configured
package report

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
)

// Config contains the Sentry settings
type Config struct {
	DSN         string
	Environment string
	Release     string
	// BeforeSend, when set, may modify or drop events before they are sent
	BeforeSend func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event
}

var enabled bool

// Setup initializes the Sentry client. Without a DSN reporting stays
// disabled and every function of this package is a no-op.
func Setup(config Config) error {
	if config.DSN == "" {
		enabled = false
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              config.DSN,
		Environment:      config.Environment,
		Release:          config.Release,
		AttachStacktrace: true,
		BeforeSend:       config.BeforeSend,
	})
	if err != nil {
		return err
	}
	enabled = true

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("go_version", runtime.Version())
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		scope.SetContext("host_info", map[string]interface{}{
			"hostname": hostname,
		})
	})
	return nil
}

// Enabled returns whether errors are being sent to Sentry
func Enabled() bool {
	return enabled
}

// Flush waits for queued events to be sent
func Flush() {
	if enabled {
		sentry.Flush(2 * time.Second)
	}
}

// Error reports an error with optional tags
func Error(err error, tags map[string]string) {
	if err == nil || !enabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Middleware reports panics in handlers and attaches the request to events
// reported while serving it. The panic is propagated after being reported.
func Middleware(next http.Handler) http.Handler {
	if !enabled {
		return next
	}
	return sentryhttp.New(sentryhttp.Options{
		Repanic: true,
		Timeout: 2 * time.Second,
	}).Handle(next)
}
