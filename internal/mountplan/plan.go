// Package mountplan turns a container's resolved layer chain and declared
// volumes into an ordered set of mount operations.
//
// The planner only produces the plan; applying it is a separate, privileged
// step (Apply, linux-only) that callers invoke after explicit confirmation.
package mountplan

import "strings"

// Op is one mount operation: a structured record, never a shell string, so
// path and volume-name content cannot be reinterpreted by a shell.
type Op struct {
	// Source is the mount source: a host path for binds, the filesystem
	// pseudo-source ("overlay", "none") for union mounts.
	Source string

	// Target is the absolute mount destination.
	Target string

	// FSType is the filesystem type for union mounts; empty for binds.
	FSType string

	// Bind marks a bind mount.
	Bind bool

	// ReadOnly mounts the target read-only. Every operation this package
	// plans is read-only: the inspected tree must never be written.
	ReadOnly bool

	// Options are filesystem-specific mount options (e.g. overlay lowerdir,
	// aufs branches).
	Options []string
}

// String renders the operation for display, mount(8)-style.
func (op Op) String() string {
	var b strings.Builder
	b.WriteString("mount")
	if op.Bind {
		b.WriteString(" --bind")
	}
	if op.FSType != "" {
		b.WriteString(" -t " + op.FSType)
	}
	opts := op.Options
	if op.ReadOnly {
		opts = append([]string{"ro"}, opts...)
	}
	if len(opts) > 0 {
		b.WriteString(" -o " + strings.Join(opts, ","))
	}
	b.WriteString(" " + op.Source + " " + op.Target)
	return b.String()
}

// Plan is an ordered sequence of mount operations reconstructing one
// container's filesystem view. It is built fresh per invocation and never
// persisted; execution is the caller's responsibility.
type Plan struct {
	ContainerID string
	MountDir    string
	Ops         []Op
}
