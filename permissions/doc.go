// Package permissions stores organization roles, role membership and
// object-level grants. The default structs compose go-repository-bun
// repositories but can be replaced by the host application via dependency
// injection.
package permissions
