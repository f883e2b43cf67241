// Package command exposes go-command compatible command handlers for the list
// view write paths: saving and resetting preferences, defining custom
// attributes and setting their values. Commands are wired by the service layer
// and can be invoked by any transport.
package command
