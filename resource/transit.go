package resource

import (
	"errors"
	"net/http"

	"github.com/campusplanner/campusplanner/metrics"
	"github.com/campusplanner/campusplanner/transit"
	"github.com/yarf-framework/yarf"
)

// TransitRoute composites resource
type TransitRoute struct {
	resource
	planner *transit.Planner
}

// WithPlanner associates a Planner with this resource
func (r *TransitRoute) WithPlanner(planner *transit.Planner) *TransitRoute {
	r.planner = planner
	return r
}

// Post serves HTTP POST requests on this resource
func (r *TransitRoute) Post(c *yarf.Context) error {
	var request transit.RouteRequest
	if err := r.DecodeRequest(c, &request); err != nil {
		metrics.RouteQueries.WithLabelValues("unknown", metrics.OutcomeBadRequest).Inc()
		return RenderError(c, http.StatusBadRequest, err.Error())
	}

	direction := request.Type
	if direction != transit.ToSchoolRequest && direction != transit.FromSchoolRequest {
		direction = "unknown"
	}

	result, err := r.planner.Plan(request)
	switch {
	case err == nil:
		metrics.RouteQueries.WithLabelValues(direction, metrics.OutcomeOK).Inc()
		RenderData(c, result)
		return nil
	case errors.Is(err, transit.ErrBadRequest):
		metrics.RouteQueries.WithLabelValues(direction, metrics.OutcomeBadRequest).Inc()
		return RenderError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, transit.ErrNoRoute):
		metrics.RouteQueries.WithLabelValues(direction, metrics.OutcomeNoRoute).Inc()
		return RenderError(c, http.StatusNotFound, noRouteMessage(request.Type))
	}
	metrics.RouteQueries.WithLabelValues(direction, metrics.OutcomeError).Inc()
	return RenderInternalError(c, err)
}

func noRouteMessage(requestType string) string {
	if requestType == transit.ToSchoolRequest {
		return "No combination of train and bus reaches the campus in time"
	}
	return "No more connections from the campus today"
}
