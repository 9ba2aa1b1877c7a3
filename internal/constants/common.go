package constants

// Common string constants used throughout the codebase
const (
	// Log levels
	ErrorLevel = "error"

	// Environments
	ProdEnvironment = "prod"

	// Admin roles returned by the OwnaFarm backend
	AdminRole      = "admin"
	SuperAdminRole = "super_admin"

	// Farmer record statuses
	PendingStatus  = "pending"
	ApprovedStatus = "approved"
	RejectedStatus = "rejected"

	// Decision actions
	ApproveAction = "approve"
	RejectAction  = "reject"
)
