package auth

// Known OAuth scopes used by the reservation service.
const (
	ScopeBookingsWrite = "bookings:write"
	ScopeBookingsRead  = "bookings:read"
	// ScopeBookingsAdmin lets front-desk staff act on behalf of another member.
	ScopeBookingsAdmin = "bookings:admin"
	ScopeCheckInsWrite = "checkins:write"
)
