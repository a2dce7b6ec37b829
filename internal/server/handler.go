//go:build linux

package server

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/WillKirkmanM/staticcache/internal/cache"
	"github.com/WillKirkmanM/staticcache/internal/fsstore"
	"github.com/WillKirkmanM/staticcache/internal/httpparser"
	"github.com/WillKirkmanM/staticcache/internal/logging"
	"github.com/WillKirkmanM/staticcache/internal/metrics"
	"github.com/WillKirkmanM/staticcache/internal/mount"
	"github.com/WillKirkmanM/staticcache/internal/response"
	"golang.org/x/sys/unix"
)

// eagainBackoff is the brief sleep taken when a read or write returns
// EAGAIN with no progress at all, per spec.md §4.8 step 1 / §5's "short
// EAGAIN back-off sleeps" — distinct from the zero-sleep rearm-and-return
// path taken when a partial request has already been buffered.
const eagainBackoff = 1 * time.Millisecond

// connState carries a request-in-progress across one-shot readiness
// events: the parser keeps its partially-fed state and the accumulated
// byte count between the worker that buffers one chunk and the worker
// that eventually buffers the rest, once epoll re-delivers readability on
// the same fd (spec.md §4.7's ownership-transfer contract).
type connState struct {
	parser *httpparser.Parser
	total  int
	start  time.Time
}

// Handler implements the per-connection algorithm of spec.md §4.8: read
// until a full request is parsed, compute a cache key, serve from cache
// or populate it from a mount, and decide whether the connection is
// rearmed for another request or closed.
type Handler struct {
	cache           *cache.Cache
	mounts          mount.Selector
	logger          *logging.Logger
	metrics         *metrics.Metrics
	maxRequestBytes int

	rearm     func(fd int)
	closeConn func(fd int)

	connMu sync.Mutex
	conns  map[int]*connState
}

// NewHandler wires a Handler to the cache, mount selector and acceptor
// callbacks it needs to drive a connection to completion.
func NewHandler(c *cache.Cache, mounts mount.Selector, logger *logging.Logger, m *metrics.Metrics, maxRequestBytes int, rearm, closeConn func(fd int)) *Handler {
	return &Handler{
		cache:           c,
		mounts:          mounts,
		logger:          logger,
		metrics:         m,
		maxRequestBytes: maxRequestBytes,
		rearm:           rearm,
		closeConn:       closeConn,
		conns:           make(map[int]*connState),
	}
}

// stateFor returns the in-progress parse state for fd, creating one on
// first touch (a fresh connection or one whose previous request finished).
func (h *Handler) stateFor(fd int) *connState {
	h.connMu.Lock()
	defer h.connMu.Unlock()

	st, ok := h.conns[fd]
	if !ok {
		st = &connState{parser: httpparser.New(), start: time.Now()}
		h.conns[fd] = st
	}
	return st
}

// clearState drops fd's in-progress parse state, either because the
// request completed (successfully or not) or the connection is closing.
func (h *Handler) clearState(fd int) {
	h.connMu.Lock()
	delete(h.conns, fd)
	h.connMu.Unlock()
}

// Handle drains fd until a full request has been parsed (or the
// connection is done/errored), then serves it. Invoked from a worker
// pool task after the acceptor reports fd readable.
func (h *Handler) Handle(fd int, remoteAddr string) {
	ctx, span := h.logger.StartSpan(context.Background(), "handle_request")
	defer span.End()

	st := h.stateFor(fd)
	start := st.start

	buf := make([]byte, 4096)

	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				if st.total > 0 {
					// Bytes buffered but request not yet complete:
					// return the worker to the pool and rely on the
					// next one-shot re-arm to resume this parse.
					h.rearm(fd)
					return
				}
				time.Sleep(eagainBackoff)
				continue
			}
			h.clearState(fd)
			h.closeConn(fd)
			return
		}

		if n == 0 {
			h.clearState(fd)
			h.closeConn(fd)
			return
		}

		st.total += n
		if st.total > h.maxRequestBytes {
			h.clearState(fd)
			h.writeAndFinish(fd, response.PayloadTooLarge(), false, start, response.StatusPayloadTooLarge)
			return
		}

		phase := st.parser.Feed(buf[:n])
		if phase == httpparser.PhaseError {
			h.logger.ParseError(ctx, remoteAddr, errors.New("malformed request"))
			h.clearState(fd)
			h.writeAndFinish(fd, response.BadRequest(), false, start, response.StatusBadRequest)
			return
		}
		if phase == httpparser.PhaseFinished {
			break
		}
	}

	p := st.parser
	h.clearState(fd)

	if p.Method() != "GET" {
		h.writeAndFinish(fd, response.NotImplemented(), false, start, response.StatusNotImplemented)
		return
	}

	if strings.Contains(p.Path(), "..") {
		h.writeAndFinish(fd, response.BadRequest(), false, start, response.StatusBadRequest)
		return
	}

	ck := h.computeCacheKey(p.Path())
	keepAlive := p.IsKeepAlive()

	// A frame holds the full encoded response installed on the miss path,
	// so a hit writes it as is, including the Connection header of the
	// request that installed it.
	if cached, hit := h.cache.Lookup(ck); hit {
		h.metrics.RecordCacheHit()
		h.logger.CacheEvent(ctx, "hit", ck, -1)
		h.writeAndFinish(fd, cached, keepAlive, start, response.StatusOK)
		return
	}

	h.metrics.RecordCacheMiss()
	h.logger.CacheEvent(ctx, "miss", ck, -1)

	m, err := h.mounts.SelectMount(ck)
	if err != nil {
		h.writeAndFinish(fd, response.InternalServerError(), false, start, response.StatusInternalServerError)
		return
	}

	body, err := h.cache.Populate(ck, func() ([]byte, error) {
		m.IncrementConnections()
		defer m.DecrementConnections()
		return fsstore.ReadFile(filepath.Join(m.GetPath(), ck))
	})

	if err != nil {
		if errors.Is(err, fsstore.ErrNotFound) {
			h.writeAndFinish(fd, response.NotFound(keepAlive), keepAlive, start, response.StatusNotFound)
			return
		}
		h.logger.Error(ctx, "mount read failed", err)
		h.writeAndFinish(fd, response.InternalServerError(), false, start, response.StatusInternalServerError)
		return
	}

	out := response.OK(fsstore.MimeOf(ck), body, keepAlive)
	if len(out) <= cache.MaxFrameBytes {
		if installErr := h.cache.Install(ck, out); installErr == nil {
			h.metrics.RecordCacheInstall()
			h.metrics.SetFramesInUse(h.cache.FramesInUse())
			h.logger.CacheEvent(ctx, "install", ck, -1)
		}
	}

	h.writeAndFinish(fd, out, keepAlive, start, response.StatusOK)
}

// computeCacheKey normalises a request path the way spec.md §4.3/§4.8
// describe: root maps to /index.html, a trailing slash gets index.html
// appended, and a path naming an on-disk directory without a trailing
// slash is treated the same way. The directory probe picks its mount with
// its own SelectMount call, separate from the one on the miss path, so
// with more than one mount the probed root and the root that serves the
// file can differ.
func (h *Handler) computeCacheKey(rawPath string) string {
	if rawPath == "/" {
		return "/index.html"
	}
	if strings.HasSuffix(rawPath, "/") {
		return rawPath + "index.html"
	}

	if probe, err := h.mounts.SelectMount(rawPath); err == nil {
		candidate := filepath.Join(probe.GetPath(), rawPath)
		if fsstore.IsDir(candidate) {
			return rawPath + "/index.html"
		}
	}

	return rawPath
}

// writeAndFinish writes out in full, records request metrics, then
// either rearms fd for another keep-alive request or closes it.
func (h *Handler) writeAndFinish(fd int, out []byte, keepAlive bool, start time.Time, statusCode int) {
	h.metrics.RecordRequest(statusCode, time.Since(start))

	if !h.writeFull(fd, out) {
		h.closeConn(fd)
		return
	}

	if keepAlive {
		h.rearm(fd)
		return
	}
	h.closeConn(fd)
}

// writeFull writes the entire buffer to fd, retrying on EAGAIN and
// partial writes. One of the three points a worker may block (spec.md
// §5), it backs off briefly on EAGAIN rather than spinning. Returns
// false if the write failed outright.
func (h *Handler) writeFull(fd int, data []byte) bool {
	written := 0
	for written < len(data) {
		n, err := unix.Write(fd, data[written:])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				time.Sleep(eagainBackoff)
				continue
			}
			return false
		}
		written += n
	}
	return true
}
