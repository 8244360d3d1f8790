package middleware

import (
	"net/http"

	gateAuth "github.com/MrEthical07/gateAuth"
)

// AllowAnonymous guards a route any caller may reach. A valid bearer token
// still populates the principal.
func AllowAnonymous(engine *gateAuth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, Route{Anonymous: true})
}

// FirstUserOperation guards a route that is open while no principal exists
// and requires a grant afterwards.
func FirstUserOperation(engine *gateAuth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, Route{FirstUserOperation: true})
}
