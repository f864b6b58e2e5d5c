package sim

// Session is the loop's view of one connection. Implementations must never
// block: Send reports false when the connection cannot keep up.
type Session interface {
	Send(data []byte) bool
	Close(reason string)
}
