package middleware

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"

	"github.com/zenGate-Global/palmyra-rentals/platform/go/httpapi"
)

// SpecValidator rejects requests that do not match doc before they reach the
// domain handlers. The documents declare no security schemes; the actor is
// taken from ActorHeader by RequestTrace.
func SpecValidator(doc *openapi3.T) func(http.Handler) http.Handler {
	return oapimiddleware.OapiRequestValidatorWithOptions(doc, &oapimiddleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
		ErrorHandler: WriteSpecProblem,
		// Servers only carries the /api/v1 base path, there is no host to check.
		SilenceServersWarning: true,
	})
}

// WriteSpecProblem renders a validator rejection as problem details.
func WriteSpecProblem(w http.ResponseWriter, message string, statusCode int) {
	problem := httpapi.ProblemDetails{Status: statusCode, Detail: message}
	switch statusCode {
	case http.StatusBadRequest:
		problem.Type = httpapi.ProblemTypeValidation
		problem.Title = "Request does not match the API contract"
	case http.StatusNotFound:
		problem.Type = httpapi.ProblemTypeNotFound
		problem.Title = "Route not found"
	default:
		problem.Title = http.StatusText(statusCode)
	}
	httpapi.WriteProblem(w, problem)
}
