package server

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"
)

// statusWriter records the status code and response size for access logging.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// withRequestLogging logs one line per request. Server faults log at error,
// client mistakes at warn, everything else at debug. Health probes are
// skipped to keep the log readable under liveness polling.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		fields := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.Status(),
			"bytes", sw.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		}
		if tenant := r.Header.Get(tenantHeader); tenant != "" {
			fields = append(fields, "tenant", tenant)
		}
		if r.Pattern != "" {
			fields = append(fields, "route", r.Pattern)
		}

		switch {
		case sw.Status() >= 500:
			s.log().Error("request complete", fields...)
		case sw.Status() >= 400:
			s.log().Warn("request complete", fields...)
		default:
			s.log().Debug("request complete", fields...)
		}
	})
}
