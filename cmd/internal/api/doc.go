// Package api serves the Who's Near Me REST endpoints.
//
// Handlers decode and validate the v1 contract types, call the identity, nearby
// and invite services, and map their errors onto {"msg","code"} responses.
package api
