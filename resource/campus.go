package resource

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/campusplanner/campusplanner/directions"
	"github.com/campusplanner/campusplanner/gate"
	"github.com/campusplanner/campusplanner/scraper"
	"github.com/gbl08ma/sqalx"
	"github.com/yarf-framework/yarf"
)

// ForecastSource provides the latest weather forecast
type ForecastSource interface {
	Forecast() (*scraper.Forecast, error)
}

// NewsSource provides the latest campus news
type NewsSource interface {
	Items() []*scraper.NewsItem
}

// RouteFinder finds routes between arbitrary places
type RouteFinder interface {
	Route(ctx context.Context, q directions.Query) (*directions.Route, error)
}

// Weather composites resource
type Weather struct {
	resource
	source ForecastSource
}

// WithSource associates a ForecastSource with this resource
func (r *Weather) WithSource(source ForecastSource) *Weather {
	r.source = source
	return r
}

// Get serves HTTP GET requests on this resource
func (r *Weather) Get(c *yarf.Context) error {
	if r.source == nil {
		return RenderError(c, http.StatusServiceUnavailable, "Weather is not configured")
	}
	forecast, err := r.source.Forecast()
	if errors.Is(err, scraper.ErrNoForecast) {
		return RenderError(c, http.StatusServiceUnavailable, err.Error())
	} else if err != nil {
		return RenderInternalError(c, err)
	}
	RenderData(c, forecast)
	return nil
}

// News composites resource
type News struct {
	resource
	source NewsSource
}

// WithSource associates a NewsSource with this resource
func (r *News) WithSource(source NewsSource) *News {
	r.source = source
	return r
}

// Get serves HTTP GET requests on this resource
func (r *News) Get(c *yarf.Context) error {
	items := []*scraper.NewsItem{}
	if r.source != nil {
		items = r.source.Items()
	}
	limit, err := parseLimit(c, uint64(len(items)))
	if err != nil {
		return RenderError(c, http.StatusBadRequest, err.Error())
	}
	if uint64(len(items)) > limit {
		items = items[:limit]
	}
	RenderData(c, items)
	return nil
}

// Directions composites resource
type Directions struct {
	resource
	finder RouteFinder
}

// WithNode associates a sqalx Node with this resource
func (r *Directions) WithNode(node sqalx.Node) *Directions {
	r.node = node
	return r
}

// WithAuthenticator associates an Authenticator with this resource
func (r *Directions) WithAuthenticator(auth gate.Authenticator) *Directions {
	r.auth = auth
	return r
}

// WithFinder associates a RouteFinder with this resource
func (r *Directions) WithFinder(finder RouteFinder) *Directions {
	r.finder = finder
	return r
}

// Get serves HTTP GET requests on this resource
func (r *Directions) Get(c *yarf.Context) error {
	// the upstream API is billed per request
	user, err := r.AuthenticateUser(c)
	if err != nil {
		return RenderInternalError(c, err)
	}
	if user == nil {
		return RenderUnauthorized(c)
	}
	if r.finder == nil {
		return RenderError(c, http.StatusServiceUnavailable, "Directions are not configured")
	}

	params := c.Request.URL.Query()
	q := directions.Query{
		Origin:      params.Get("origin"),
		Destination: params.Get("destination"),
		Mode:        params.Get("mode"),
	}
	if q.Mode == "" {
		q.Mode = "transit"
	}
	if s := params.Get("arrival"); s != "" {
		q.ArrivalTime, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return RenderError(c, http.StatusBadRequest, "arrival must be a RFC 3339 timestamp")
		}
	}

	route, err := r.finder.Route(c.Request.Context(), q)
	switch {
	case errors.Is(err, directions.ErrInvalidQuery):
		return RenderError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, directions.ErrNoRoute):
		return RenderError(c, http.StatusNotFound, err.Error())
	case err != nil:
		return RenderInternalError(c, err)
	}
	RenderData(c, route)
	return nil
}
