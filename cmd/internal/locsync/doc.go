// Package locsync is the client side of location sharing.
//
// Evaluate decides whether a GPS fix is worth sending. Syncer pushes accepted
// fixes to the server and keeps a nearby-user snapshot fresh, with at most one
// nearby fetch in flight.
package locsync
