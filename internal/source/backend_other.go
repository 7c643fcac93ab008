//go:build !linux && !darwin

package source

func newPlatformBackend() (Backend, error) {
	return Unavailable(ErrUnavailable), nil
}
