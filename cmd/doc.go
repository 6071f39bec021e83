// Package cmd implements the command-line interface for graphmail.
//
// Authentication commands:
//   - login: Sign in with the browser, device code, or app-only flow
//   - logout: Remove the cached credential
//   - status: Show the cached authentication state
//   - whoami: Show the signed-in account profile
//   - token: Print a valid access token for scripting
//
// Mail commands:
//   - inbox, sent: List folder contents
//   - search: Full-text search across the mailbox
//   - range: List messages in a date range
//   - view: Show a single message with its body
//   - delta: Fetch changes since the previous delta run
//   - send: Send a message
//   - mark-read: Flag a message as read
//   - filter: Manage the persisted sender filter list
//
// The serve command exposes the same operations over a local REST API.
package cmd
