package main

import (
	"net/http"

	"github.com/justinas/alice"

	"github.com/fretwork/herald/auth"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/score", app.handleScore())
	mux.HandleFunc("POST /api/pair/request", app.handlePairRequest())
	mux.HandleFunc("GET /api/pair/status/{client_id}", app.handlePairStatus())
	mux.HandleFunc("GET /api/unresolved_hashes", app.withBearer(app.handleUnresolvedHashes()))
	mux.HandleFunc("POST /api/resolve_hashes", app.withBearer(app.handleResolveHashes()))
	mux.HandleFunc("GET /health", app.handleHealth())

	standard := alice.New(auth.RequestLogger(app.logger), app.limiter.Middleware)
	return standard.Then(mux)
}
