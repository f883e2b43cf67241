package query

import "github.com/thrivehealth/go-listviews/scope"

func safeScopeGuard(g scope.Guard) scope.Guard {
	return scope.Ensure(g)
}
