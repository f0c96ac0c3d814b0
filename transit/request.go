package transit

import (
	"errors"
	"fmt"
	"strings"
)

// Request types
const (
	ToSchoolRequest   = "to_school"
	FromSchoolRequest = "from_school"
)

// ErrBadRequest is wrapped by the errors Plan returns for malformed requests
var ErrBadRequest = errors.New("bad route request")

// RouteRequest is an itinerary request as sent by clients
type RouteRequest struct {
	Type               string `msgpack:"type" json:"type"`
	OriginStation      string `msgpack:"originStation" json:"originStation"`
	DestinationStation string `msgpack:"destinationStation" json:"destinationStation"`
	ArrivalDeadline    string `msgpack:"arrivalDeadlineStr" json:"arrivalDeadlineStr"`
	// DayType is optional; today's day type is used when empty
	DayType string `msgpack:"dayType" json:"dayType"`
}

func badRequest(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, a...))
}

// Plan answers a RouteRequest. A to-school request results in an
// *OutboundItinerary, a from-school request in a []ReturnItinerary.
// Errors wrap ErrBadRequest for malformed requests and ErrNoRoute when
// nothing satisfies the request.
func (p *Planner) Plan(req RouteRequest) (interface{}, error) {
	dayType := p.Today()
	if req.DayType != "" {
		var err error
		dayType, err = ParseDayType(req.DayType)
		if err != nil {
			return nil, badRequest("%s", err)
		}
	}

	switch req.Type {
	case ToSchoolRequest:
		if strings.TrimSpace(req.OriginStation) == "" {
			return nil, badRequest("originStation is required")
		}
		if req.ArrivalDeadline == "" {
			return nil, badRequest("arrivalDeadlineStr is required")
		}
		deadline, err := ParseClockTime(req.ArrivalDeadline)
		if err != nil {
			return nil, badRequest("arrivalDeadlineStr: %s", err)
		}
		return p.ToSchool(req.OriginStation, deadline, dayType)
	case FromSchoolRequest:
		if strings.TrimSpace(req.DestinationStation) == "" {
			return nil, badRequest("destinationStation is required")
		}
		return p.FromSchoolNow(req.DestinationStation, dayType)
	case "":
		return nil, badRequest("type is required")
	}
	return nil, badRequest("unknown request type %q", req.Type)
}
