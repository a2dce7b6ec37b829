//go:build linux

package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/WillKirkmanM/staticcache/internal/logging"
	"github.com/WillKirkmanM/staticcache/internal/metrics"
	"github.com/WillKirkmanM/staticcache/internal/middleware"
)

// Event loop tuning constants, grounded on
// original_source/src/include/server.h's MAX_EVENTS/LISTEN_BACKLOG/
// MAX_BATCH_ACCEPT constants.
const (
	maxEvents      = 10000
	listenBacklog  = 1024
	maxBatchAccept = 16
)

// connTimeout bounds how long a client fd may sit idle mid-read or
// mid-write before the kernel gives up the syscall with EAGAIN, per
// spec.md §5 ("SO_RCVTIMEO/SO_SNDTIMEO (5s)").
const connTimeout = 5 * time.Second

// acceptor owns the listening socket and an epoll instance, non-blocking
// throughout; the listening fd is level-triggered and every client fd is
// edge/one-shot triggered (spec.md §4.7). Go's
// net.Listener goroutine-per-connection model cannot express the
// one-shot-readiness ownership-transfer contract this component depends
// on, so it talks to the kernel directly via golang.org/x/sys/unix —
// there is no standard-library epoll primitive.
type acceptor struct {
	epfd     int
	listenFD int
	port     int

	logger  *logging.Logger
	limiter *middleware.ConnectionLimiter
	metrics *metrics.Metrics

	onReadable func(fd int, remoteAddr string)

	mu      sync.Mutex
	fdAddrs map[int]string

	stopped atomic.Bool
}

func newAcceptor(port int, logger *logging.Logger, limiter *middleware.ConnectionLimiter, m *metrics.Metrics, onReadable func(fd int, remoteAddr string)) (*acceptor, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("SO_REUSEADDR: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("SO_REUSEPORT: %w", err)
	}

	addr := unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind: %w", err)
	}

	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		unix.Close(fd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll_ctl add listen fd: %w", err)
	}

	return &acceptor{
		epfd:       epfd,
		listenFD:   fd,
		port:       port,
		logger:     logger,
		limiter:    limiter,
		metrics:    m,
		onReadable: onReadable,
		fdAddrs:    make(map[int]string),
	}, nil
}

// run blocks in epoll_wait with no timeout until stop() closes the epoll
// fd, dispatching batch-accepts and readable-connection handoffs.
func (a *acceptor) run() {
	events := make([]unix.EpollEvent, maxEvents)

	for {
		n, err := unix.EpollWait(a.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if a.stopped.Load() {
				return
			}
			a.logger.Error(context.Background(), "epoll_wait failed", err)
			continue
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Fd)

			switch {
			case fd == a.listenFD:
				a.acceptBatch()
			case ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0:
				a.closeFD(fd)
			case ev.Events&unix.EPOLLIN != 0:
				a.mu.Lock()
				remoteAddr := a.fdAddrs[fd]
				a.mu.Unlock()
				a.onReadable(fd, remoteAddr)
			}
		}
	}
}

// acceptBatch accepts up to maxBatchAccept connections per listen-fd
// readiness notification (spec.md §4.7 step 2), arming each for
// readable + edge-triggered + one-shot delivery.
func (a *acceptor) acceptBatch() {
	for i := 0; i < maxBatchAccept; i++ {
		nfd, sa, err := unix.Accept4(a.listenFD, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			a.logger.Error(context.Background(), "accept4 failed", err)
			return
		}

		remoteAddr := sockaddrString(sa)

		if a.limiter != nil && !a.limiter.Allow(remoteAddr) {
			unix.Close(nfd)
			continue
		}

		unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		unix.SetsockoptInt(nfd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
		unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, 60)
		unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, 10)
		unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, 3)

		timeout := unix.NsecToTimeval(connTimeout.Nanoseconds())
		unix.SetsockoptTimeval(nfd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &timeout)
		unix.SetsockoptTimeval(nfd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &timeout)

		if a.metrics != nil {
			a.metrics.IncrementConnections()
		}

		a.mu.Lock()
		a.fdAddrs[nfd] = remoteAddr
		a.mu.Unlock()

		ev := unix.EpollEvent{
			Events: unix.EPOLLIN | unix.EPOLLET | unix.EPOLLONESHOT,
			Fd:     int32(nfd),
		}
		if err := unix.EpollCtl(a.epfd, unix.EPOLL_CTL_ADD, nfd, &ev); err != nil {
			a.logger.Error(context.Background(), "epoll_ctl add client fd failed", err)
			a.closeFD(nfd)
		}
	}
}

// rearm re-registers fd for another one-shot readable notification,
// transferring ownership of the fd back to the acceptor after a worker
// finishes a keep-alive response (spec.md §4.7 rationale for one-shot).
func (a *acceptor) rearm(fd int) {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLET | unix.EPOLLONESHOT,
		Fd:     int32(fd),
	}
	unix.EpollCtl(a.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

// closeFD deregisters and closes a client fd
func (a *acceptor) closeFD(fd int) {
	unix.EpollCtl(a.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	unix.Close(fd)

	a.mu.Lock()
	delete(a.fdAddrs, fd)
	a.mu.Unlock()
}

func (a *acceptor) stop() {
	a.stopped.Store(true)
	unix.Close(a.listenFD)
	unix.Close(a.epfd)
}

func sockaddrString(sa unix.Sockaddr) string {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		ip := net.IP(s.Addr[:])
		return fmt.Sprintf("%s:%d", ip.String(), s.Port)
	case *unix.SockaddrInet6:
		ip := net.IP(s.Addr[:])
		return fmt.Sprintf("[%s]:%d", ip.String(), s.Port)
	default:
		return "unknown"
	}
}
