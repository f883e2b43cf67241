// Package query exposes go-command Queriers for the list view read paths:
// preference resolution, column catalogs, the list records pipeline and the
// activity feed.
package query
