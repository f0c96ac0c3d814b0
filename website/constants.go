// +build !release

package website

const (
	// DEBUG is whether this is a debug build
	DEBUG = true

	// CSRFfieldName is the name of the form field used for CSRF protection
	CSRFfieldName = "campusplanner.csrf"

	// CSRFcookieName is the name of the cookie used for CSRF protection
	CSRFcookieName = "_campusplanner_csrf"
)
