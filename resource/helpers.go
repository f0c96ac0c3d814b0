package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	msgpack "gopkg.in/vmihailenco/msgpack.v2"

	"github.com/campusplanner/campusplanner/dataobjects"
	"github.com/campusplanner/campusplanner/gate"
	"github.com/campusplanner/campusplanner/report"
	"github.com/gbl08ma/sqalx"
	"github.com/yarf-framework/yarf"
)

// Log is the logger used by API resources
var Log = log.New(os.Stdout, "api", log.Ldate|log.Ltime)

type resource struct {
	yarf.Resource
	node sqalx.Node
	auth gate.Authenticator
}

type apiError struct {
	Message string `msgpack:"message" json:"message"`
}

// Beginx is shorthand for resource.node.Beginx()
func (r *resource) Beginx() (sqalx.Node, error) {
	return r.node.Beginx()
}

// DecodeRequest decodes the request body as msgpack or JSON, depending on its content type
func (r *resource) DecodeRequest(c *yarf.Context, v interface{}) error {
	contentType := c.Request.Header.Get("Content-Type")
	var err error
	switch {
	case strings.Contains(contentType, "msgpack"):
		err = msgpack.NewDecoder(c.Request.Body).Decode(v)
	default:
		err = json.NewDecoder(c.Request.Body).Decode(v)
	}
	if err != nil {
		return fmt.Errorf("failed to decode request: %s", err)
	}
	return nil
}

// AuthenticateUser returns the user making the request, or nil when the
// request carries no valid session
func (r *resource) AuthenticateUser(c *yarf.Context) (*dataobjects.User, error) {
	if r.auth == nil {
		return nil, nil
	}
	identity, err := r.auth.Identify(c.Request)
	if err != nil {
		return nil, err
	}
	if identity.Status != gate.AuthAuthenticated {
		return nil, nil
	}
	user, err := dataobjects.GetUser(r.node, identity.UserID)
	if errors.Is(err, dataobjects.ErrNotFound) {
		return nil, nil
	}
	return user, err
}

// RenderData takes a interface{} object and writes the encoded representation of it.
// Encoding used will be idented JSON, non-idented JSON, Msgpack or XML
func RenderData(c *yarf.Context, data interface{}) {
	RenderDataWithStatus(c, http.StatusOK, data)
}

// RenderDataWithStatus is RenderData with a status code other than 200
func RenderDataWithStatus(c *yarf.Context, status int, data interface{}) {
	accept := c.Request.Header.Get("Accept")
	switch {
	case strings.Contains(accept, "msgpack"):
		RenderMsgpack(c, status, data)
	case strings.Contains(accept, "xml") && !strings.Contains(accept, "xhtml"):
		c.Response.Header().Set("Content-Type", "application/xml; charset=utf-8")
		c.Response.WriteHeader(status)
		c.RenderXML(data)
	case strings.Contains(accept, "json"):
		c.Response.Header().Set("Content-Type", "application/json; charset=utf-8")
		c.Response.WriteHeader(status)
		c.RenderJSON(data)
	default:
		c.Response.Header().Set("Content-Type", "application/json; charset=utf-8")
		c.Response.WriteHeader(status)
		c.RenderJSONIndent(data)
	}
}

// RenderMsgpack takes a interface{} object and writes the Msgpack encoded string of it.
func RenderMsgpack(c *yarf.Context, status int, data interface{}) {
	encoded, err := msgpack.Marshal(data)
	if err != nil {
		Log.Println(err)
		c.Response.Header().Set("Content-Type", "text/plain; charset=utf-8")
		c.Response.WriteHeader(http.StatusInternalServerError)
		c.Response.Write([]byte(err.Error()))
		return
	}
	c.Response.Header().Set("Content-Type", "application/msgpack")
	c.Response.WriteHeader(status)
	c.Response.Write(encoded)
}

// RenderError writes a {message} body with the given status code
func RenderError(c *yarf.Context, status int, message string) error {
	RenderDataWithStatus(c, status, apiError{Message: message})
	return nil
}

// RenderUnauthorized tells the client it must sign in first
func RenderUnauthorized(c *yarf.Context) error {
	return RenderError(c, http.StatusUnauthorized, "Sign in required")
}

// RenderNotFound tells the client the requested object does not exist
func RenderNotFound(c *yarf.Context, what string) error {
	return RenderError(c, http.StatusNotFound, what+" not found")
}

// RenderInternalError logs and reports err, and answers with its text
func RenderInternalError(c *yarf.Context, err error) error {
	Log.Println(err)
	report.Error(err, map[string]string{"path": c.Request.URL.Path})
	return RenderError(c, http.StatusInternalServerError, err.Error())
}
