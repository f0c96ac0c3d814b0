package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// NewsItem is an entry of the campus news feed
type NewsItem struct {
	Title     string    `msgpack:"title" json:"title"`
	Summary   string    `msgpack:"summary" json:"summary"`
	URL       string    `msgpack:"url" json:"url"`
	Published time.Time `msgpack:"published" json:"published"`
}

// NewsScraper periodically reads the campus news RSS or Atom feed
type NewsScraper struct {
	mu         sync.RWMutex
	running    bool
	ticker     *time.Ticker
	stopChan   chan struct{}
	log        *log.Logger
	fp         *gofeed.Parser
	items      []*NewsItem
	lastUpdate time.Time

	URL        string
	HTTPClient *http.Client
	Period     time.Duration
	// Limit caps how many items are kept
	Limit int
	// NewItemCallback, when set, is called with items that were not present
	// in the previous fetch. It is not called for the first fetch.
	NewItemCallback func(item *NewsItem)
}

// ID returns the ID of this scraper
func (sc *NewsScraper) ID() string {
	return "sc-news"
}

// Init initializes the scraper and performs the first fetch
func (sc *NewsScraper) Init(log *log.Logger) error {
	sc.log = log
	if sc.URL == "" {
		return errors.New("news scraper: no feed URL configured")
	}
	if sc.HTTPClient == nil {
		sc.HTTPClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	if sc.Period == 0 {
		sc.Period = time.Hour
	}
	if sc.Limit <= 0 {
		sc.Limit = 10
	}
	sc.fp = gofeed.NewParser()

	sc.log.Println("NewsScraper initializing")
	if err := sc.update(context.Background(), true); err != nil {
		sc.log.Println("NewsScraper first fetch failed:", err)
	}
	return nil
}

// Begin starts the scraper
func (sc *NewsScraper) Begin() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stopChan = make(chan struct{})
	sc.ticker = time.NewTicker(sc.Period)
	sc.running = true
	go sc.scrape(sc.ticker, sc.stopChan)
}

// End stops the scraper
func (sc *NewsScraper) End() {
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
func (sc *NewsScraper) Running() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.running
}

// LastUpdate returns when the feed was last read successfully
func (sc *NewsScraper) LastUpdate() time.Time {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.lastUpdate
}

// Items returns a copy of the current news items, newest first
func (sc *NewsScraper) Items() []*NewsItem {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	c := make([]*NewsItem, len(sc.items))
	for i, itemPointer := range sc.items {
		item := *itemPointer
		c[i] = &item
	}
	return c
}

func (sc *NewsScraper) scrape(ticker *time.Ticker, stopChan chan struct{}) {
	for {
		select {
		case <-ticker.C:
			if err := sc.update(context.Background(), false); err != nil {
				sc.log.Println(err)
			}
		case <-stopChan:
			return
		}
	}
}

func (sc *NewsScraper) update(ctx context.Context, first bool) error {
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

	feed, err := sc.fp.Parse(io.LimitReader(response.Body, maxBodySize))
	if err != nil {
		return err
	}

	items := []*NewsItem{}
	for _, feedItem := range feed.Items {
		item := &NewsItem{
			Title:   strings.TrimSpace(feedItem.Title),
			Summary: plainText(feedItem.Description),
			URL:     feedItem.Link,
		}
		switch {
		case feedItem.PublishedParsed != nil:
			item.Published = *feedItem.PublishedParsed
		case feedItem.UpdatedParsed != nil:
			item.Published = *feedItem.UpdatedParsed
		}
		if item.Summary == "" {
			item.Summary = plainText(feedItem.Content)
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Published.After(items[j].Published)
	})
	if len(items) > sc.Limit {
		items = items[:sc.Limit]
	}

	sc.mu.Lock()
	previous := make(map[string]bool, len(sc.items))
	for _, item := range sc.items {
		previous[item.URL+item.Title] = true
	}
	sc.items = items
	sc.lastUpdate = time.Now()
	sc.mu.Unlock()

	if !first && sc.NewItemCallback != nil {
		for _, item := range items {
			if !previous[item.URL+item.Title] {
				c := *item
				sc.NewItemCallback(&c)
			}
		}
	}
	return nil
}

// plainText returns the text of the first paragraph of an HTML fragment, or
// the whole text when there are no paragraphs
func plainText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	if p := doc.Find("p").First(); p.Length() > 0 {
		return strings.TrimSpace(p.Text())
	}
	return strings.TrimSpace(doc.Text())
}
