package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
)

// Query parameters follow the contracts' default serialization: style form,
// exploded for scalars and comma-joined for lists.
const queryStyle = "form"

// QueryInt parses an optional integer query parameter. Absent yields zero.
func QueryInt(r *http.Request, name string) (int, error) {
	if QueryString(r, name) == nil {
		return 0, nil
	}
	var v *int
	if err := runtime.BindQueryParameter(queryStyle, true, false, name, r.URL.Query(), &v); err != nil {
		return 0, domainerr.Invalid(name, err.Error())
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}

// QueryString returns a trimmed query parameter or nil when absent.
func QueryString(r *http.Request, name string) *string {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil
	}
	return &raw
}

// QueryList parses a comma-joined list such as status=pending,late. Blank
// entries are dropped.
func QueryList(r *http.Request, name string) ([]string, error) {
	var v *[]string
	if err := runtime.BindQueryParameter(queryStyle, false, false, name, r.URL.Query(), &v); err != nil {
		return nil, domainerr.Invalid(name, err.Error())
	}
	if v == nil {
		return nil, nil
	}
	out := make([]string, 0, len(*v))
	for _, item := range *v {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

// QueryDate parses an optional YYYY-MM-DD query parameter.
func QueryDate(r *http.Request, name string) (*time.Time, error) {
	if QueryString(r, name) == nil {
		return nil, nil
	}
	var v *openapi_types.Date
	if err := runtime.BindQueryParameter(queryStyle, true, false, name, r.URL.Query(), &v); err != nil {
		return nil, domainerr.Invalid(name, "must be a YYYY-MM-DD date")
	}
	if v == nil {
		return nil, nil
	}
	t := v.Time.UTC()
	return &t, nil
}
