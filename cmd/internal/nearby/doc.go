// Package nearby answers "who is online around me": it resolves the radius for a
// request, delegates the spatial query to the user directory and records metrics.
package nearby
