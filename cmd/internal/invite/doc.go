// Package invite is the invitation ledger: directed "let's meet up" requests
// between users with a free-text reason and a pending -> accepted | declined status.
//
// Sender and receiver ids are weak references into the user directory; listing
// resolves usernames at read time and tolerates users that no longer resolve.
package invite
