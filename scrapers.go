package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/campusplanner/campusplanner/directions"
	"github.com/campusplanner/campusplanner/metrics"
	"github.com/campusplanner/campusplanner/scraper"
)

var (
	weatherScraper   *scraper.WeatherScraper
	newsScraper      *scraper.NewsScraper
	directionsClient *directions.Client

	scrapers = make(map[string]scraper.Scraper)
)

func upstreamClient(upstream string) *http.Client {
	return &http.Client{
		Timeout:   10 * time.Second,
		Transport: metrics.InstrumentedTransport(upstream, http.DefaultTransport),
	}
}

// SetUpScrapers initializes and starts the scrapers used to obtain campus
// information. Scrapers without configuration are left disabled.
func SetUpScrapers() {
	if weatherBox, present := secrets.GetBox("weather"); present {
		url, _ := weatherBox.Get("url")
		weatherScraper = &scraper.WeatherScraper{
			URL:        url,
			HTTPClient: upstreamClient("weather"),
		}
		if period, present := weatherBox.Get("periodMinutes"); present {
			minutes, err := strconv.Atoi(period)
			if err != nil || minutes <= 0 {
				mainLog.Println("Ignoring invalid weather periodMinutes", period)
			} else {
				weatherScraper.Period = time.Duration(minutes) * time.Minute
			}
		}
		if !startScraper(weatherScraper, "campusplanner_weather_age_seconds", "Seconds since the weather forecast was last refreshed") {
			weatherScraper = nil
		}
	} else {
		mainLog.Println("Weather keybox not found, weather disabled")
	}

	if newsBox, present := secrets.GetBox("news"); present {
		url, _ := newsBox.Get("feedURL")
		newsScraper = &scraper.NewsScraper{
			URL:        url,
			HTTPClient: upstreamClient("news"),
			NewItemCallback: func(item *scraper.NewsItem) {
				mainLog.Println("New campus news item:", item.Title)
			},
		}
		if !startScraper(newsScraper, "campusplanner_news_age_seconds", "Seconds since the campus news feed was last read") {
			newsScraper = nil
		}
	} else {
		mainLog.Println("News keybox not found, news disabled")
	}
}

// startScraper initializes and starts s, returning false if it could not be initialized
func startScraper(s scraper.Scraper, ageMetric, ageHelp string) bool {
	err := s.Init(log.New(os.Stdout, s.ID(), log.Ldate|log.Ltime))
	if err != nil {
		mainLog.Println(err)
		return false
	}
	if err := metrics.RegisterAge(ageMetric, ageHelp, s.LastUpdate); err != nil {
		mainLog.Println(err)
	}
	s.Begin()
	scrapers[s.ID()] = s
	return true
}

// TearDownScrapers terminates the running scrapers
func TearDownScrapers() {
	for _, s := range scrapers {
		if s.Running() {
			s.End()
		}
	}
}

// SetUpDirections creates the directions client when a Maps API key is configured
func SetUpDirections() {
	googleBox, present := secrets.GetBox("google")
	if !present {
		return
	}
	key, present := googleBox.Get("mapsAPIKey")
	if !present || key == "" {
		mainLog.Println("Maps API key not present in keybox, directions disabled")
		return
	}
	directionsClient = directions.NewClient(key)
	directionsClient.HTTPClient = upstreamClient("directions")
}
