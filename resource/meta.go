package resource

import (
	"time"

	"github.com/campusplanner/campusplanner/transit"
	"github.com/yarf-framework/yarf"
)

// Meta composites resource
type Meta struct {
	resource
	planner   *transit.Planner
	version   string
	startTime time.Time
}

// apiMeta contains information about this API endpoint
type apiMeta struct {
	// Whether this API is still supported
	Supported bool `msgpack:"supported" json:"supported"`

	// Whether this endpoint is up (it would be "down" for example in the event of server maintenance)
	Up bool `msgpack:"up" json:"up"`

	Version string    `msgpack:"version" json:"version"`
	Since   time.Time `msgpack:"since" json:"since"`

	// Stations from which itineraries can be requested
	Stations []string `msgpack:"stations" json:"stations"`
	// DayType is today's day type in the campus time zone
	DayType transit.DayType `msgpack:"dayType" json:"dayType"`
}

// WithPlanner associates a Planner with this resource
func (r *Meta) WithPlanner(planner *transit.Planner) *Meta {
	r.planner = planner
	return r
}

// WithVersion sets the version reported by this resource
func (r *Meta) WithVersion(version string, startTime time.Time) *Meta {
	r.version = version
	r.startTime = startTime
	return r
}

// Get serves HTTP GET requests on this resource
func (r *Meta) Get(c *yarf.Context) error {
	meta := apiMeta{
		Supported: true,
		Up:        true,
		Version:   r.version,
		Since:     r.startTime,
		Stations:  []string{},
	}
	if r.planner != nil {
		meta.Stations = r.planner.Stations()
		meta.DayType = r.planner.Today()
	}
	RenderData(c, meta)
	return nil
}
