package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionExamsRead marks read-only operators. Pool diagnostics do not
	// require it; any authenticated principal may validate a pool.
	PermissionExamsRead Permission = "exams:read"

	// PermissionExamsWrite allows creating exams and refreshing their pools.
	PermissionExamsWrite Permission = "exams:write"
)
