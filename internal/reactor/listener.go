package reactor

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/yourusername/reactord/internal/rerrors"
)

// listener is a raw non-blocking TCP listening socket, built by hand
// (rather than net.Listen) so SO_REUSEPORT can be set before bind,
// giving every worker its own kernel-load-balanced listener per spec
// §4.G's preferred model.
type listener struct {
	fd int32
}

// listenOptions mirrors the "Socket options set on every socket"
// paragraph of spec §6.
type listenOptions struct {
	IP         string
	Port       int
	Backlog    int
	ReusePort  bool
}

// newListener binds and listens on opts.IP:opts.Port. When opts.ReusePort
// is set, SO_REUSEPORT lets every worker bind the same address/port
// independently; the kernel then load-balances accept()s across them.
func newListener(opts listenOptions) (*listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, rerrors.New(rerrors.KindSocketSetup, "socket", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, rerrors.New(rerrors.KindSocketSetup, "setsockopt(SO_REUSEADDR)", err)
	}
	if opts.ReusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			unix.Close(fd)
			return nil, rerrors.New(rerrors.KindSocketSetup, "setsockopt(SO_REUSEPORT)", err)
		}
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		unix.Close(fd)
		return nil, rerrors.New(rerrors.KindSocketSetup, "setsockopt(TCP_NODELAY)", err)
	}

	ip := net.ParseIP(opts.IP)
	if ip == nil {
		ip = net.IPv4zero
	}
	var addr unix.SockaddrInet4
	copy(addr.Addr[:], ip.To4())
	addr.Port = opts.Port

	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, rerrors.New(rerrors.KindSocketSetup, fmt.Sprintf("bind(%s:%d)", opts.IP, opts.Port), err)
	}

	backlog := opts.Backlog
	if backlog <= 0 {
		backlog = 1024
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, rerrors.New(rerrors.KindSocketSetup, "listen", err)
	}

	return &listener{fd: int32(fd)}, nil
}

// Close closes the underlying listening socket.
func (l *listener) Close() error { return unix.Close(int(l.fd)) }
