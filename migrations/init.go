package migrations

import (
	listviews "github.com/thrivehealth/go-listviews"
)

func init() {
	coreFS, err := listviews.GetMigrationsFS()
	if err != nil {
		return
	}
	Register(coreFS)
}
