package response

import (
	"bytes"
	"fmt"
)

// MaxHeaderBytes bounds the header region the builder will produce,
// mirroring the fixed header_buffer[MAX_HEADER_SIZE] the original server
// builds responses into — overflow there is a snprintf bound check,
// overflow here is a buffer-length check with the same outcome: fall
// back to a minimal 500.
const MaxHeaderBytes = 4096

// ServerName is emitted in every response's Server header
const ServerName = "staticcache"

// KeepAliveHeaderValue is the fixed Keep-Alive header value advertised to
// clients that negotiate a persistent connection
const KeepAliveHeaderValue = "timeout=5, max=100"

const (
	StatusOK                  = 200
	StatusBadRequest           = 400
	StatusNotFound             = 404
	StatusPayloadTooLarge      = 413
	StatusInternalServerError  = 500
	StatusNotImplemented       = 501
)

func reasonPhrase(code int) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "Bad Request"
	case StatusNotFound:
		return "Not Found"
	case StatusPayloadTooLarge:
		return "Payload Too Large"
	case StatusInternalServerError:
		return "Internal Server Error"
	case StatusNotImplemented:
		return "Not Implemented"
	default:
		return "Unknown"
	}
}

// Build constructs the full wire bytes of an HTTP/1.1 response: status
// line, Content-Type/Content-Length/Connection/Server/Keep-Alive headers,
// a blank line, then the body. If the header region would exceed
// MaxHeaderBytes a minimal 500 is returned instead (spec.md §4.5/§7); the
// overflow is not reported to the caller and is not logged.
func Build(statusCode int, contentType string, body []byte, keepAlive bool) []byte {
	var headers bytes.Buffer
	fmt.Fprintf(&headers, "HTTP/1.1 %d %s\r\n", statusCode, reasonPhrase(statusCode))
	fmt.Fprintf(&headers, "Content-Type: %s\r\n", contentType)
	fmt.Fprintf(&headers, "Content-Length: %d\r\n", len(body))

	connection := "close"
	if keepAlive {
		connection = "keep-alive"
	}
	fmt.Fprintf(&headers, "Connection: %s\r\n", connection)
	fmt.Fprintf(&headers, "Server: %s\r\n", ServerName)
	fmt.Fprintf(&headers, "Keep-Alive: %s\r\n", KeepAliveHeaderValue)
	headers.WriteString("\r\n")

	if headers.Len() > MaxHeaderBytes {
		return Minimal500()
	}

	out := make([]byte, 0, headers.Len()+len(body))
	out = append(out, headers.Bytes()...)
	out = append(out, body...)
	return out
}

// Minimal500 builds the smallest possible 500 response: no body, no
// optional headers, used when the normal builder path itself overflows
// or when constructing the header region failed.
func Minimal500() []byte {
	return []byte(fmt.Sprintf(
		"HTTP/1.1 %d %s\r\nContent-Length: 0\r\nConnection: close\r\n\r\n",
		StatusInternalServerError, reasonPhrase(StatusInternalServerError),
	))
}

// NotFound builds a 404 response with a short plain-text body
func NotFound(keepAlive bool) []byte {
	body := []byte("404 Not Found")
	return Build(StatusNotFound, "text/plain", body, keepAlive)
}

// BadRequest builds a 400 response; malformed requests always close
func BadRequest() []byte {
	body := []byte("400 Bad Request")
	return Build(StatusBadRequest, "text/plain", body, false)
}

// PayloadTooLarge builds a 413 response; oversized requests always close
func PayloadTooLarge() []byte {
	body := []byte("413 Payload Too Large")
	return Build(StatusPayloadTooLarge, "text/plain", body, false)
}

// NotImplemented builds a 501 response for non-GET methods; always closes
func NotImplemented() []byte {
	body := []byte("501 Not Implemented")
	return Build(StatusNotImplemented, "text/plain", body, false)
}

// InternalServerError builds a 500 response with a short plain-text body
func InternalServerError() []byte {
	body := []byte("500 Internal Server Error")
	return Build(StatusInternalServerError, "text/plain", body, false)
}

// OK builds a 200 response carrying the given content type and body
func OK(contentType string, body []byte, keepAlive bool) []byte {
	return Build(StatusOK, contentType, body, keepAlive)
}
