package reactor

import "golang.org/x/sys/unix"

// pinToCPU pins the calling OS thread to a single core, matching spec
// §5's "N parallel OS threads, each pinned to one CPU core" scheduling
// model. Must be called after runtime.LockOSThread, and from the
// goroutine that should stay on that thread.
func pinToCPU(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}

// RaiseNoFileLimit raises RLIMIT_NOFILE to its hard limit, per spec §6
// ("On startup the process should raise RLIMIT_NOFILE to its hard
// limit"). Called once from cmd/reactord before any worker starts.
func RaiseNoFileLimit() (uint64, error) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, err
	}
	rlim.Cur = rlim.Max
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, err
	}
	return rlim.Cur, nil
}
