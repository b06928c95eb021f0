package telemetry

import (
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceResty opens a span for every request made by client. Only the path of
// the url is recorded since the store's auth token travels in the query.
func TraceResty(client *resty.Client, tracerName string) {
	tracer := otel.Tracer(tracerName)

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ctx, _ := tracer.Start(req.Context(), fmt.Sprintf("http %s", req.Method))
		req.SetContext(ctx)
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		span := trace.SpanFromContext(res.Request.Context())
		defer span.End()

		attrs := []attribute.KeyValue{
			attribute.String("http.request.method", res.Request.Method),
			attribute.Int("http.response.status_code", res.StatusCode()),
			attribute.Int64("http.response.body.size", res.Size()),
		}
		if raw := res.Request.RawRequest; raw != nil {
			attrs = append(attrs, attribute.String("url.path", raw.URL.Path))
		}
		span.SetAttributes(attrs...)
		if res.IsError() {
			span.SetStatus(codes.Error, res.Status())
		}
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		span := trace.SpanFromContext(req.Context())
		defer span.End()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	})
}
