//go:build linux
// +build linux

package mountplan

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// Apply executes every operation in the plan, in order. It requires
// privilege and must only be called after explicit caller confirmation.
//
// The mount directory is created if needed; bind targets are expected to
// exist inside the mounted root filesystem and are not created, since that
// would write into the reconstructed view.
func Apply(plan *Plan) error {
	if err := os.MkdirAll(plan.MountDir, 0755); err != nil {
		return fmt.Errorf("create mount directory: %w", err)
	}

	for _, op := range plan.Ops {
		var flags uintptr
		if op.Bind {
			flags |= unix.MS_BIND
		}
		if op.ReadOnly {
			flags |= unix.MS_RDONLY
		}
		data := strings.Join(op.Options, ",")
		if err := unix.Mount(op.Source, op.Target, op.FSType, flags, data); err != nil {
			return fmt.Errorf("mount %s on %s: %w", op.Source, op.Target, err)
		}
		// The kernel ignores MS_RDONLY (everything except MS_REC) on the
		// bind call itself; the read-only bit takes effect only through a
		// follow-up remount.
		if op.Bind && op.ReadOnly {
			remountFlags := uintptr(unix.MS_REMOUNT | unix.MS_BIND | unix.MS_RDONLY)
			if err := unix.Mount("", op.Target, "", remountFlags, ""); err != nil {
				return fmt.Errorf("remount %s read-only: %w", op.Target, err)
			}
		}
	}
	return nil
}

// Unmount detaches a mounted plan target. Busy mount points fall back to a
// lazy unmount.
func Unmount(mountDir string) error {
	if err := unix.Unmount(mountDir, 0); err != nil {
		if err == unix.EBUSY {
			return unix.Unmount(mountDir, unix.MNT_DETACH)
		}
		return fmt.Errorf("unmount %s: %w", mountDir, err)
	}
	return nil
}
