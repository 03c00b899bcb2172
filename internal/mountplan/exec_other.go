//go:build !linux
// +build !linux

package mountplan

import "fmt"

// Apply is only supported on Linux; other platforms can still build plans
// for display.
func Apply(plan *Plan) error {
	return fmt.Errorf("mount execution is only supported on linux")
}

// Unmount is only supported on Linux.
func Unmount(mountDir string) error {
	return fmt.Errorf("mount execution is only supported on linux")
}
