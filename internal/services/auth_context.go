package services

// AuthContext is the caller identity resolved once by the auth layer and
// passed into every core call.
type AuthContext struct {
	UserID          uint
	TenantID        uint
	Role            string
	IsPlatformAdmin bool
}

// Validate rejects calls without a tenant.
func (a AuthContext) Validate() error {
	if a.TenantID == 0 {
		return preconditionf("tenant context is required")
	}
	return nil
}
