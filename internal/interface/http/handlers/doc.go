// Package handlers contains reusable HTTP pieces for the exchange hub API:
// health checks and the bcrypt API-key gate in front of the trigger and
// admin endpoints.
//
// # Health Checks
//
// Named checks run in parallel, each under its own timeout:
//
//	checker := handlers.NewCompositeHealthChecker("v0.1.0")
//	checker.AddCheck("store", store.Ping)
//	checker.AddCheck("redis", redisClient.Ping)
//
// # API Keys
//
// Keys are never configured in clear text. Operators store bcrypt hashes
// and callers send the key in the apikey header or as a bearer token:
//
//	auth, err := handlers.NewAPIKeyAuth(cfg.HTTP.APIKeyHashes)
//	mux.Handle("POST /run-matching-engine", auth.Middleware(run))
package handlers
