package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	cache "github.com/patrickmn/go-cache"
)

// Forecast is the weather forecast for the campus area
type Forecast struct {
	Summary    string    `msgpack:"summary" json:"summary"`
	HighC      *int      `msgpack:"highC" json:"highC"`
	LowC       *int      `msgpack:"lowC" json:"lowC"`
	RainChance *int      `msgpack:"rainChance" json:"rainChance"`
	Fetched    time.Time `msgpack:"fetched" json:"fetched"`
	SourceURL  string    `msgpack:"sourceURL" json:"sourceURL"`
}

// WeatherSelectors are the CSS selectors used to find the forecast in the page
type WeatherSelectors struct {
	Summary    string
	High       string
	Low        string
	RainChance string
}

// DefaultWeatherSelectors match the markup of the forecast page the
// application was first deployed with
var DefaultWeatherSelectors = WeatherSelectors{
	Summary:    ".forecast-today .weather-telop",
	High:       ".forecast-today .high-temp .value",
	Low:        ".forecast-today .low-temp .value",
	RainChance: ".forecast-today .rain-probability td",
}

// ErrNoForecast is returned when no forecast has been retrieved yet
var ErrNoForecast = errors.New("no forecast available")

const forecastCacheKey = "forecast"

var numberRegexp = regexp.MustCompile(`-?\d+`)

// WeatherScraper periodically scrapes a weather forecast page
type WeatherScraper struct {
	mu       sync.Mutex
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	log      *log.Logger
	cache    *cache.Cache

	URL        string
	Selectors  WeatherSelectors
	HTTPClient *http.Client
	Period     time.Duration
	// MaxAge is how long a forecast is served after the last successful fetch
	MaxAge time.Duration
}

// ID returns the ID of this scraper
func (sc *WeatherScraper) ID() string {
	return "sc-weather"
}

// Init initializes the scraper and performs the first fetch
func (sc *WeatherScraper) Init(log *log.Logger) error {
	sc.log = log
	if sc.URL == "" {
		return errors.New("weather scraper: no URL configured")
	}
	if sc.HTTPClient == nil {
		sc.HTTPClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	if sc.Selectors == (WeatherSelectors{}) {
		sc.Selectors = DefaultWeatherSelectors
	}
	if sc.Period == 0 {
		sc.Period = 30 * time.Minute
	}
	if sc.MaxAge == 0 {
		sc.MaxAge = 6 * time.Hour
	}
	sc.cache = cache.New(sc.MaxAge, 10*time.Minute)

	if err := sc.update(context.Background()); err != nil {
		// keep going, the next tick may work
		sc.log.Println("WeatherScraper first fetch failed:", err)
	}
	return nil
}

// Begin starts the scraper
func (sc *WeatherScraper) Begin() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stopChan = make(chan struct{})
	sc.ticker = time.NewTicker(sc.Period)
	sc.running = true
	go sc.mainLoop(sc.ticker, sc.stopChan)
}

// End stops the scraper
func (sc *WeatherScraper) End() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if !sc.running {
		return
	}
	sc.ticker.Stop()
	close(sc.stopChan)
	sc.running = false
}

// Running returns whether the scraper is running
func (sc *WeatherScraper) Running() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.running
}

// LastUpdate returns when the forecast being served was fetched
func (sc *WeatherScraper) LastUpdate() time.Time {
	forecast, err := sc.Forecast()
	if err != nil {
		return time.Time{}
	}
	return forecast.Fetched
}

// Forecast returns the most recent forecast. The last good forecast keeps
// being served while refreshes fail, until it is older than MaxAge.
func (sc *WeatherScraper) Forecast() (*Forecast, error) {
	if sc.cache == nil {
		return nil, ErrNoForecast
	}
	value, present := sc.cache.Get(forecastCacheKey)
	if !present {
		return nil, ErrNoForecast
	}
	forecast := *value.(*Forecast)
	return &forecast, nil
}

func (sc *WeatherScraper) mainLoop(ticker *time.Ticker, stopChan chan struct{}) {
	for {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			err := sc.update(context.Background())
			if err != nil {
				sc.log.Println(err)
			}
		}
	}
}

func (sc *WeatherScraper) update(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sc.URL, nil)
	if err != nil {
		return err
	}
	response, err := sc.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.ContentLength > maxBodySize || response.StatusCode != http.StatusOK {
		return fmt.Errorf("non-200 status code (%d) in response, or response body unexpectedly big", response.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(response.Body, maxBodySize))
	if err != nil {
		return err
	}

	forecast, err := parseForecast(doc, sc.Selectors)
	if err != nil {
		return err
	}
	forecast.Fetched = time.Now()
	forecast.SourceURL = sc.URL
	sc.cache.SetDefault(forecastCacheKey, forecast)
	return nil
}

func parseForecast(doc *goquery.Document, selectors WeatherSelectors) (*Forecast, error) {
	forecast := &Forecast{
		Summary: strings.TrimSpace(doc.Find(selectors.Summary).First().Text()),
	}
	forecast.HighC = findNumber(doc, selectors.High)
	forecast.LowC = findNumber(doc, selectors.Low)

	// pages list the chance of rain per period of the day; the day's chance is the highest one
	doc.Find(selectors.RainChance).Each(func(i int, s *goquery.Selection) {
		n := parseNumber(s.Text())
		if n != nil && (forecast.RainChance == nil || *n > *forecast.RainChance) {
			forecast.RainChance = n
		}
	})

	if forecast.Summary == "" && forecast.HighC == nil && forecast.LowC == nil {
		return nil, errors.New("weather scraper: forecast not found in page")
	}
	return forecast, nil
}

func findNumber(doc *goquery.Document, selector string) *int {
	return parseNumber(doc.Find(selector).First().Text())
}

func parseNumber(text string) *int {
	match := numberRegexp.FindString(text)
	if match == "" {
		return nil
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &n
}
