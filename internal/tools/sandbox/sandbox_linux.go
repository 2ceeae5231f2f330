//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"unsafe"

	"golang.org/x/sys/unix"
)

const supported = true

// reexecEnv, when set to "1" in a child's environment, tells that
// child (re-invoked as a copy of the running aigent binary) to install
// the seccomp filter and PR_SET_NO_NEW_PRIVS on itself before execing
// into the real target command. os/exec gives no child-side pre-exec
// hook, so this re-exec indirection is how the filter is applied
// before the target ever runs.
const reexecEnv = "AIGENT_SANDBOX_REEXEC"

// MaybeReexec must be called at the very top of main(). When the
// process was spawned by Apply as a sandboxed child, it installs the
// syscall filter and replaces itself with the real target command; it
// never returns in that case. Ordinary invocations return immediately.
func MaybeReexec() {
	if os.Getenv(reexecEnv) != "1" {
		return
	}
	_ = os.Unsetenv(reexecEnv)
	if len(os.Args) < 2 {
		os.Exit(126)
	}
	if err := installFilter(); err != nil {
		fmt.Fprintln(os.Stderr, "aigent: sandbox: install filter:", err)
		os.Exit(126)
	}
	target := os.Args[1]
	targetArgs := os.Args[1:]
	if err := unix.Exec(target, targetArgs, os.Environ()); err != nil {
		fmt.Fprintln(os.Stderr, "aigent: sandbox: exec target:", err)
		os.Exit(127)
	}
}

// apply reconfigures cmd to run through the re-exec sandbox wrapper.
func apply(cmd *exec.Cmd) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("sandbox: resolve self: %w", err)
	}
	args := append([]string{self, cmd.Path}, cmd.Args[1:]...)
	cmd.Path = self
	cmd.Args = args
	cmd.Env = append(cmd.Env, reexecEnv+"=1")
	return nil
}

// allowedSyscalls is the run_shell sandbox allow-list: file, memory,
// network, process, and time syscalls a typical shell pipeline needs.
// Anything absent returns ENOSYS rather than killing the process.
var allowedSyscalls = []int{
	unix.SYS_READ, unix.SYS_WRITE, unix.SYS_OPEN, unix.SYS_OPENAT, unix.SYS_CLOSE,
	unix.SYS_STAT, unix.SYS_FSTAT, unix.SYS_LSTAT, unix.SYS_NEWFSTATAT, unix.SYS_LSEEK,
	unix.SYS_PREAD64, unix.SYS_PWRITE64, unix.SYS_READV, unix.SYS_WRITEV,
	unix.SYS_ACCESS, unix.SYS_FACCESSAT, unix.SYS_PIPE, unix.SYS_PIPE2, unix.SYS_DUP,
	unix.SYS_DUP2, unix.SYS_DUP3, unix.SYS_POLL, unix.SYS_PPOLL, unix.SYS_SELECT,
	unix.SYS_PSELECT6, unix.SYS_MMAP, unix.SYS_MPROTECT, unix.SYS_MUNMAP, unix.SYS_BRK,
	unix.SYS_MREMAP, unix.SYS_MADVISE, unix.SYS_RT_SIGACTION, unix.SYS_RT_SIGPROCMASK,
	unix.SYS_RT_SIGRETURN, unix.SYS_IOCTL, unix.SYS_FCNTL, unix.SYS_FLOCK,
	unix.SYS_FSYNC, unix.SYS_FDATASYNC, unix.SYS_TRUNCATE, unix.SYS_FTRUNCATE,
	unix.SYS_GETDENTS64, unix.SYS_GETCWD, unix.SYS_CHDIR, unix.SYS_FCHDIR,
	unix.SYS_RENAME, unix.SYS_RENAMEAT, unix.SYS_MKDIR, unix.SYS_MKDIRAT,
	unix.SYS_RMDIR, unix.SYS_UNLINK, unix.SYS_UNLINKAT, unix.SYS_LINK,
	unix.SYS_SYMLINK, unix.SYS_READLINK, unix.SYS_READLINKAT, unix.SYS_CHMOD,
	unix.SYS_FCHMOD, unix.SYS_FCHMODAT, unix.SYS_CHOWN, unix.SYS_FCHOWN,
	unix.SYS_UMASK, unix.SYS_SOCKET, unix.SYS_CONNECT, unix.SYS_ACCEPT,
	unix.SYS_ACCEPT4, unix.SYS_SENDTO, unix.SYS_RECVFROM, unix.SYS_SENDMSG,
	unix.SYS_RECVMSG, unix.SYS_SHUTDOWN, unix.SYS_BIND, unix.SYS_LISTEN,
	unix.SYS_GETSOCKNAME, unix.SYS_GETPEERNAME, unix.SYS_SETSOCKOPT,
	unix.SYS_GETSOCKOPT, unix.SYS_CLONE, unix.SYS_FORK, unix.SYS_VFORK,
	unix.SYS_EXECVE, unix.SYS_EXIT, unix.SYS_EXIT_GROUP, unix.SYS_WAIT4,
	unix.SYS_KILL, unix.SYS_TGKILL, unix.SYS_UNAME, unix.SYS_GETPID,
	unix.SYS_GETPPID, unix.SYS_GETTID, unix.SYS_GETUID, unix.SYS_GETEUID,
	unix.SYS_GETGID, unix.SYS_GETEGID, unix.SYS_SETRLIMIT, unix.SYS_GETRLIMIT,
	unix.SYS_PRLIMIT64, unix.SYS_GETRUSAGE, unix.SYS_SYSINFO, unix.SYS_TIMES,
	unix.SYS_GETTIMEOFDAY, unix.SYS_CLOCK_GETTIME, unix.SYS_CLOCK_NANOSLEEP,
	unix.SYS_NANOSLEEP, unix.SYS_GETRANDOM, unix.SYS_ARCH_PRCTL, unix.SYS_SET_TID_ADDRESS,
	unix.SYS_SET_ROBUST_LIST, unix.SYS_RSEQ, unix.SYS_FUTEX, unix.SYS_EPOLL_CREATE1,
	unix.SYS_EPOLL_CTL, unix.SYS_EPOLL_WAIT, unix.SYS_EPOLL_PWAIT, unix.SYS_PRCTL,
	unix.SYS_RESTART_SYSCALL,
}

// installFilter applies PR_SET_NO_NEW_PRIVS and the seccomp allow-list
// to the calling process.
func installFilter() error {
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("prctl(PR_SET_NO_NEW_PRIVS): %w", err)
	}
	prog, err := buildFilter(allowedSyscalls)
	if err != nil {
		return err
	}
	if err := unix.Prctl(unix.PR_SET_SECCOMP, unix.SECCOMP_MODE_FILTER, uintptr(unsafe.Pointer(prog)), 0, 0); err != nil {
		return fmt.Errorf("prctl(PR_SET_SECCOMP): %w", err)
	}
	return nil
}

// BPF opcodes not exported by x/sys/unix under the names we want.
const (
	bpfLd  = 0x00
	bpfW   = 0x00
	bpfAbs = 0x20
	bpfJmp = 0x05
	bpfJeq = 0x10
	bpfRet = 0x06
	bpfK   = 0x00

	seccompRetAllow = 0x7fff0000
	seccompRetErrno = 0x00050000
)

// seccompDataNrOffset is offsetof(struct seccomp_data, nr): nr is the
// first field (arch follows it), so the offset is 0 on every Linux
// architecture; see <linux/seccomp.h>.
const seccompDataNrOffset = 0

// buildFilter renders an allow-list of syscall numbers into a classic
// BPF program: load the syscall number, compare against each entry,
// return ALLOW on a match, ERRNO(ENOSYS) otherwise.
func buildFilter(allowed []int) (*unix.SockFprog, error) {
	if len(allowed) == 0 {
		return nil, fmt.Errorf("sandbox: empty syscall allow-list")
	}
	instrs := make([]unix.SockFilter, 0, len(allowed)*2+2)
	instrs = append(instrs, unix.SockFilter{Code: bpfLd | bpfW | bpfAbs, K: seccompDataNrOffset})
	for _, nr := range allowed {
		instrs = append(instrs, unix.SockFilter{
			Code: bpfJmp | bpfJeq | bpfK,
			Jt:   0, // match: fall through to the ALLOW return below
			Jf:   1, // no match: skip the ALLOW return, try the next syscall
			K:    uint32(nr),
		})
		instrs = append(instrs, unix.SockFilter{Code: bpfRet | bpfK, K: seccompRetAllow})
	}
	instrs = append(instrs, unix.SockFilter{Code: bpfRet | bpfK, K: seccompRetErrno | uint32(unix.ENOSYS)})

	prog := &unix.SockFprog{
		Len:    uint16(len(instrs)),
		Filter: &instrs[0],
	}
	return prog, nil
}
