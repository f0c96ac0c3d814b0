// Package directions is a small client for the Google Maps Directions API,
// used for the parts of a commute that the timetables do not cover
package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	cache "github.com/patrickmn/go-cache"
	"github.com/thoas/go-funk"
)

// DefaultBaseURL is the endpoint of the Directions API
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/directions/json"

// Modes accepted by the Directions API
var Modes = []string{"driving", "walking", "bicycling", "transit"}

var (
	// ErrInvalidQuery is returned for queries the API would reject
	ErrInvalidQuery = errors.New("invalid directions query")
	// ErrNoRoute is returned when the API finds no route between the two places
	ErrNoRoute = errors.New("no route found")
)

// Query describes a directions request
type Query struct {
	Origin      string
	Destination string
	Mode        string
	// ArrivalTime, when not zero, asks for a route that arrives before it
	ArrivalTime time.Time
}

// Route is the summary of the best route returned by the API
type Route struct {
	Summary         string `msgpack:"summary" json:"summary"`
	DurationSeconds int    `msgpack:"durationSeconds" json:"durationSeconds"`
	DurationText    string `msgpack:"durationText" json:"durationText"`
	DistanceMeters  int    `msgpack:"distanceMeters" json:"distanceMeters"`
	DistanceText    string `msgpack:"distanceText" json:"distanceText"`
	DepartureText   string `msgpack:"departureText,omitempty" json:"departureText,omitempty"`
	ArrivalText     string `msgpack:"arrivalText,omitempty" json:"arrivalText,omitempty"`
	Steps           []Step `msgpack:"steps" json:"steps"`
}

// Step is one instruction of a route
type Step struct {
	Instruction  string `msgpack:"instruction" json:"instruction"`
	Mode         string `msgpack:"mode" json:"mode"`
	DurationText string `msgpack:"durationText" json:"durationText"`
	Line         string `msgpack:"line,omitempty" json:"line,omitempty"`
}

// Client performs Directions API requests, retrying on gateway errors and
// caching responses for a few minutes
type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	// MaxRetries is how many times a request is retried after a 502, 503 or 504
	MaxRetries int
	// RetryWait is the wait before the first retry; it doubles on each retry
	RetryWait time.Duration

	cache *cache.Cache
}

// NewClient returns a Client with the default settings
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:  apiKey,
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		MaxRetries: 2,
		RetryWait:  500 * time.Millisecond,
		cache:      cache.New(5*time.Minute, 10*time.Minute),
	}
}

// CacheSize returns the number of cached responses
func (c *Client) CacheSize() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.ItemCount()
}

func (q Query) validate() error {
	if strings.TrimSpace(q.Origin) == "" || strings.TrimSpace(q.Destination) == "" {
		return fmt.Errorf("%w: origin and destination are required", ErrInvalidQuery)
	}
	if q.Mode != "" && !funk.ContainsString(Modes, q.Mode) {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidQuery, q.Mode)
	}
	return nil
}

func (q Query) cacheKey() string {
	arrival := int64(0)
	if !q.ArrivalTime.IsZero() {
		arrival = q.ArrivalTime.Truncate(time.Minute).Unix()
	}
	return fmt.Sprintf("%s|%s|%s|%d", q.Origin, q.Destination, q.Mode, arrival)
}

// Route returns the best route for the query
func (c *Client) Route(ctx context.Context, q Query) (*Route, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	key := q.cacheKey()
	if c.cache != nil {
		if value, present := c.cache.Get(key); present {
			route := *value.(*Route)
			return &route, nil
		}
	}

	params := url.Values{}
	params.Set("origin", q.Origin)
	params.Set("destination", q.Destination)
	if q.Mode != "" {
		params.Set("mode", q.Mode)
	}
	if !q.ArrivalTime.IsZero() {
		params.Set("arrival_time", strconv.FormatInt(q.ArrivalTime.Unix(), 10))
	}
	params.Set("key", c.APIKey)

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	body, err := c.get(ctx, baseURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	route, err := parseResponse(body)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.SetDefault(key, route)
	}
	return route, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	wait := c.RetryWait

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		response, err := httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		body, err := io.ReadAll(io.LimitReader(response.Body, 4*1024*1024))
		response.Body.Close()
		if err != nil {
			return nil, err
		}

		switch response.StatusCode {
		case http.StatusOK:
			return body, nil
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			if attempt >= c.MaxRetries {
				return nil, fmt.Errorf("directions: giving up after %d attempts: %s", attempt+1, response.Status)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		default:
			return nil, fmt.Errorf("directions: unexpected response status %s", response.Status)
		}
	}
}

type textValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

type apiResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Summary string `json:"summary"`
		Legs    []struct {
			Duration      textValue `json:"duration"`
			Distance      textValue `json:"distance"`
			DepartureTime textValue `json:"departure_time"`
			ArrivalTime   textValue `json:"arrival_time"`
			Steps         []struct {
				HTMLInstructions string    `json:"html_instructions"`
				TravelMode       string    `json:"travel_mode"`
				Duration         textValue `json:"duration"`
				TransitDetails   *struct {
					Line struct {
						Name      string `json:"name"`
						ShortName string `json:"short_name"`
					} `json:"line"`
				} `json:"transit_details"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

func parseResponse(body []byte) (*Route, error) {
	var response apiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("directions: %s", err)
	}

	switch response.Status {
	case "OK":
	case "ZERO_RESULTS", "NOT_FOUND":
		return nil, ErrNoRoute
	case "INVALID_REQUEST":
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuery, response.ErrorMessage)
	default:
		return nil, fmt.Errorf("directions: API status %s: %s", response.Status, response.ErrorMessage)
	}
	if len(response.Routes) == 0 || len(response.Routes[0].Legs) == 0 {
		return nil, ErrNoRoute
	}

	r := response.Routes[0]
	route := &Route{
		Summary: r.Summary,
		Steps:   []Step{},
	}
	for _, leg := range r.Legs {
		route.DurationSeconds += leg.Duration.Value
		route.DistanceMeters += leg.Distance.Value
		for _, s := range leg.Steps {
			step := Step{
				Instruction:  stripTags(s.HTMLInstructions),
				Mode:         strings.ToLower(s.TravelMode),
				DurationText: s.Duration.Text,
			}
			if s.TransitDetails != nil {
				step.Line = s.TransitDetails.Line.ShortName
				if step.Line == "" {
					step.Line = s.TransitDetails.Line.Name
				}
			}
			route.Steps = append(route.Steps, step)
		}
	}
	first, last := r.Legs[0], r.Legs[len(r.Legs)-1]
	route.DepartureText = first.DepartureTime.Text
	route.ArrivalText = last.ArrivalTime.Text
	if len(r.Legs) == 1 {
		route.DurationText = first.Duration.Text
		route.DistanceText = first.Distance.Text
	} else {
		route.DurationText = (time.Duration(route.DurationSeconds) * time.Second).String()
		route.DistanceText = fmt.Sprintf("%.1f km", float64(route.DistanceMeters)/1000)
	}
	return route, nil
}

func stripTags(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
