package domain

// Actor is the authenticated principal performing an operation, as resolved
// by the transport boundary. Services check Role against the capability each
// operation requires; they never re-authenticate.
type Actor struct {
	ID   UserID
	Role Role
}
