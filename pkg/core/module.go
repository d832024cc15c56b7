package core

// Module is a component with background work that a process starts and stops.
type Module interface {
	// Start launches background work; it must not block.
	Start() error
	// Stop releases resources. Calling it twice is allowed.
	Stop() error
}
