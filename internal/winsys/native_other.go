//go:build !windows

package winsys

// Native returns the platform window system. Only Windows has one; other
// platforms run against the simulated backend (tests, doctor).
func Native() (System, error) {
	return nil, ErrUnsupported
}
