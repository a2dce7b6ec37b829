package response

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild_OKIncludesContentLengthAndBody(t *testing.T) {
	assert := assert.New(t)

	out := Build(StatusOK, "text/html", []byte("A"), true)
	text := string(out)

	assert.True(strings.HasPrefix(text, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(text, "Content-Length: 1\r\n")
	assert.Contains(text, "Connection: keep-alive\r\n")
	assert.True(strings.HasSuffix(text, "\r\n\r\nA"))
}

func TestBuild_CloseWhenNotKeepAlive(t *testing.T) {
	out := Build(StatusOK, "text/plain", []byte("x"), false)
	assert.Contains(t, string(out), "Connection: close\r\n")
}

func TestBuild_OverflowingHeadersFallsBackToMinimal500(t *testing.T) {
	assert := assert.New(t)

	hugeType := strings.Repeat("x", MaxHeaderBytes*2)
	out := Build(StatusOK, hugeType, []byte("body"), true)

	assert.True(bytes.HasPrefix(out, []byte("HTTP/1.1 500 Internal Server Error\r\n")))
	assert.Contains(string(out), "Content-Length: 0\r\n")
}

func TestNotFound_HasReasonAndBody(t *testing.T) {
	out := NotFound(false)
	text := string(out)

	assert.Contains(t, text, "404 Not Found")
	assert.True(t, strings.HasSuffix(text, "\r\n\r\n404 Not Found"))
}

func TestReasonPhrases(t *testing.T) {
	assert := assert.New(t)

	assert.Contains(string(BadRequest()), "400 Bad Request")
	assert.Contains(string(PayloadTooLarge()), "413 Payload Too Large")
	assert.Contains(string(NotImplemented()), "501 Not Implemented")
	assert.Contains(string(InternalServerError()), "500 Internal Server Error")
}
