// Package scraper contains the background workers that periodically pull
// campus information from third-party websites
package scraper

import (
	"log"
	"time"
)

// Scraper is something that runs in the background retrieving information
// from a third-party website
type Scraper interface {
	ID() string
	Init(log *log.Logger) error
	Begin()
	End()
	Running() bool
	LastUpdate() time.Time
}

// maxBodySize is the largest response body scrapers accept
const maxBodySize = 1024 * 1024

var (
	_ Scraper = (*WeatherScraper)(nil)
	_ Scraper = (*NewsScraper)(nil)
)
