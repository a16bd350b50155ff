package middleware

import (
	"bytes"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/composables"
	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/httpapi"
)

type LoggerOptions struct {
	LogRequestBody  bool
	LogResponseBody bool
	MaxBodyLength   int

	// RequestIDHeader is read from the request and echoed on the response.
	RequestIDHeader string
	Repanic         bool
}

func NewLoggerOptions(logRequestBody bool, logResponseBody bool, maxBodyLength int) LoggerOptions {
	return LoggerOptions{
		LogRequestBody:  logRequestBody,
		LogResponseBody: logResponseBody,
		MaxBodyLength:   maxBodyLength,
		RequestIDHeader: "X-Request-ID",
	}
}

func DefaultLoggerOptions() LoggerOptions {
	return NewLoggerOptions(true, false, 512)
}

type responseCaptureWriter struct {
	http.ResponseWriter
	statusCode    int
	statusWritten bool
	body          *bytes.Buffer
	maxBody       int
}

func (w *responseCaptureWriter) WriteHeader(code int) {
	if !w.statusWritten {
		w.statusCode = code
		w.statusWritten = true
		w.ResponseWriter.WriteHeader(code)
	}
}

// Status returns the HTTP status code
func (w *responseCaptureWriter) Status() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}

func (w *responseCaptureWriter) Write(b []byte) (int, error) {
	if !w.statusWritten {
		w.WriteHeader(http.StatusOK)
	}
	if room := w.maxBody - w.body.Len(); room > 0 {
		w.body.Write(b[:min(room, len(b))])
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseCaptureWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func wrapResponseWriter(w http.ResponseWriter, maxBody int) *responseCaptureWriter {
	return &responseCaptureWriter{
		ResponseWriter: w,
		body:           &bytes.Buffer{},
		maxBody:        maxBody,
	}
}

func getRequestID(r *http.Request, header string) string {
	if header != "" && len(r.Header.Get(header)) > 0 {
		return r.Header.Get(header)
	}
	return uuid.New().String()
}

var tracer = otel.Tracer("github.com/me-ChrisHandoko/my-gloria-sub005/pkg/middleware")

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// routeTemplate keeps span names and log fields free of ids.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// captureRequestBody buffers a JSON body so the handler can still read it.
func captureRequestBody(r *http.Request) (string, error) {
	if r.Body == nil || !isMutating(r.Method) || !isJSON(r.Header.Get("Content-Type")) {
		return "", nil
	}
	buf, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(buf))
	return string(buf), nil
}

// WithLogger binds a request id, a request-scoped logger and a server span to
// every request, logs its outcome and turns handler panics into a JSON 500.
func WithLogger(logger *logrus.Logger, opts LoggerOptions) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := getRequestID(r, opts.RequestIDHeader)
			route := routeTemplate(r)

			fieldsLogger := logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"path":       r.URL.Path,
				"route":      route,
				"method":     r.Method,
			})

			if opts.LogRequestBody {
				body, err := captureRequestBody(r)
				if err != nil {
					fieldsLogger.WithError(err).Error("failed to read request-body")
					_ = httpapi.WriteError(w, http.StatusBadRequest, "InvalidRequest", "failed to read request body",
						httpapi.WithRequestID(nil, requestID))
					return
				}
				if body != "" {
					fieldsLogger.WithField("request-body", truncate(body, opts.MaxBodyLength)).Debug("request-body captured")
				}
			}

			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(
				ctx,
				r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.route", route),
					attribute.String("http.user_agent", r.UserAgent()),
					attribute.String("http.request_id", requestID),
				),
			)
			defer span.End()

			if sc := span.SpanContext(); sc.HasTraceID() {
				traceID := sc.TraceID().String()
				w.Header().Set("X-Trace-Id", traceID)
				fieldsLogger = fieldsLogger.WithField("trace_id", traceID)
			}
			if opts.RequestIDHeader != "" {
				w.Header().Set(opts.RequestIDHeader, requestID)
			}

			ctx = composables.WithRequestID(ctx, requestID)
			ctx = composables.WithLogger(ctx, fieldsLogger)

			wrappedWriter := wrapResponseWriter(w, opts.MaxBodyLength)

			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				span.SetStatus(codes.Error, "panic")
				fieldsLogger.WithFields(logrus.Fields{
					"panic":    recovered,
					"stack":    string(debug.Stack()),
					"status":   http.StatusInternalServerError,
					"duration": time.Since(start),
				}).Error("panic recovered in request handler")

				if !wrappedWriter.statusWritten {
					_ = httpapi.WriteError(wrappedWriter, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error", map[string]string{
						httpapi.MetaRequestID: requestID,
						"path":                r.URL.Path,
					})
				}
				if opts.Repanic {
					panic(recovered)
				}
			}()

			next.ServeHTTP(wrappedWriter, r.WithContext(ctx))

			statusCode := wrappedWriter.Status()
			duration := time.Since(start)
			span.SetAttributes(
				attribute.Int64("http.request_duration_ms", duration.Milliseconds()),
				attribute.Int("http.status_code", statusCode),
			)

			entry := fieldsLogger.WithFields(logrus.Fields{
				"duration":     duration,
				"status-code":  statusCode,
				"status-class": statusCode / 100,
			})
			if opts.LogResponseBody && isJSON(wrappedWriter.Header().Get("Content-Type")) {
				entry = entry.WithField("response-body", truncate(wrappedWriter.body.String(), opts.MaxBodyLength))
			}
			if statusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(statusCode))
				entry.Error("request completed")
			} else {
				entry.Info("request completed")
			}
		})
	}
}
