package rbac

const (
	RoleRespondent = "respondent"
	RoleReviewer   = "reviewer"
	RoleAdmin      = "admin"
)

const (
	PermSessionTake   = "session:take"
	PermResultViewOwn = "result:view-own"
	PermResultViewAll = "result:view-all"
	PermEventsRead    = "events:read"
	PermCatalogWrite  = "catalog:write"
)

// RolePermissions is the default policy. A trailing "*" matches a prefix.
var RolePermissions = map[string][]string{
	RoleRespondent: {
		PermSessionTake,
		PermResultViewOwn,
	},
	RoleReviewer: {
		"result:*",
		PermEventsRead,
	},
	RoleAdmin: {
		"*", // everything
	},
}
