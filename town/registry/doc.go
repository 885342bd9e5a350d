// Package registry holds the process-wide directory of towns. It maps
// town IDs to their controllers, allocates IDs and update passwords, and
// enforces the password check on destructive operations. All state is in
// memory for the life of the process.
package registry
