package domain

// Job status constants
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusComplete   = "complete"
	JobStatusFailed     = "failed"
)

// Vendor identifiers
const (
	VendorImmediateReply = "immediate-reply"
	VendorDelayedReply   = "delayed-reply"
)

// Vendors lists every vendor a job can be routed to.
var Vendors = []string{VendorImmediateReply, VendorDelayedReply}

// IsValidVendor reports whether v names a known vendor.
func IsValidVendor(v string) bool {
	return v == VendorImmediateReply || v == VendorDelayedReply
}

// IsValidStatus reports whether s is one of the job statuses.
func IsValidStatus(s string) bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusComplete, JobStatusFailed:
		return true
	}
	return false
}

// IsTerminalStatus reports whether a job in status s can no longer change.
func IsTerminalStatus(s string) bool {
	return s == JobStatusComplete || s == JobStatusFailed
}
