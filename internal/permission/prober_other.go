//go:build !linux && !darwin

package permission

type platformProber struct{}

func newPlatformProber() Prober {
	return platformProber{}
}

func (platformProber) AccessibilityTrusted() bool { return false }
func (platformProber) RequestAccessibility() bool { return false }
func (platformProber) MediaProbe() bool           { return false }
