package httpparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParser_SimpleGetNoBody(t *testing.T) {
	assert := assert.New(t)

	p := New()
	phase := p.Feed([]byte("GET /a.html HTTP/1.1\r\nHost: example.com\r\n\r\n"))

	assert.Equal(PhaseFinished, phase)
	assert.Equal("GET", p.Method())
	assert.Equal("/a.html", p.Path())
	assert.Equal("HTTP/1.1", p.Version())
	assert.Equal("example.com", p.Headers()["Host"])
}

func TestParser_KeepAliveHeader(t *testing.T) {
	p := New()
	p.Feed([]byte("GET / HTTP/1.1\r\nConnection: keep-alive\r\n\r\n"))

	assert.True(t, p.IsKeepAlive())
}

func TestParser_MalformedRequestLine(t *testing.T) {
	p := New()
	phase := p.Feed([]byte("GET\r\n\r\n"))

	assert.Equal(t, PhaseError, phase)
}

func TestParser_ContentLengthDrivesBodyPhase(t *testing.T) {
	assert := assert.New(t)

	p := New()
	phase := p.Feed([]byte("POST /submit HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"))

	assert.Equal(PhaseFinished, phase)
	assert.Equal([]byte("hello"), p.Body())
}

func TestParser_IdempotentAcrossPartitions(t *testing.T) {
	assert := assert.New(t)

	raw := "GET /a.html HTTP/1.1\r\nHost: example.com\r\nConnection: keep-alive\r\n\r\n"

	whole := New()
	whole.Feed([]byte(raw))

	byteAtATime := New()
	for i := 0; i < len(raw); i++ {
		byteAtATime.Feed([]byte{raw[i]})
	}

	assert.Equal(whole.Phase(), byteAtATime.Phase())
	assert.Equal(whole.Method(), byteAtATime.Method())
	assert.Equal(whole.Path(), byteAtATime.Path())
	assert.Equal(whole.Version(), byteAtATime.Version())
	assert.Equal(whole.Headers(), byteAtATime.Headers())
}

func TestParser_ResetAllowsReuseAcrossKeepAliveRequests(t *testing.T) {
	assert := assert.New(t)

	p := New()
	p.Feed([]byte("GET /a.html HTTP/1.1\r\nConnection: keep-alive\r\n\r\n"))
	assert.Equal(PhaseFinished, p.Phase())

	p.Reset()
	phase := p.Feed([]byte("GET /b.html HTTP/1.1\r\nConnection: close\r\n\r\n"))

	assert.Equal(PhaseFinished, phase)
	assert.Equal("/b.html", p.Path())
	assert.False(p.IsKeepAlive())
}

func TestParser_EmptyHeaderFieldIsError(t *testing.T) {
	p := New()
	phase := p.Feed([]byte("GET / HTTP/1.1\r\n: badvalue\r\n\r\n"))

	assert.Equal(t, PhaseError, phase)
}
