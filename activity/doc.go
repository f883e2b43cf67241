// Package activity persists the list view audit trail. The Repository
// implements both the types.ActivitySink write contract and the
// types.ActivityRepository read contract so commands can record preference
// saves and resets and hosts can page through them later.
package activity
