package obs

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attributes naming the records a request or job works on.
const (
	AttrSurface     = attribute.Key("autoparts.surface")
	AttrCartID      = attribute.Key("autoparts.cart.id")
	AttrItemID      = attribute.Key("autoparts.item.id")
	AttrPromotionID = attribute.Key("autoparts.promotion.id")
	AttrOperation   = attribute.Key("autoparts.operation")
)

// routeParamAttrs maps chi URL parameter names to span attributes.
var routeParamAttrs = map[string]attribute.Key{
	"cartID":      AttrCartID,
	"itemID":      AttrItemID,
	"promotionID": AttrPromotionID,
}

type routePatternKey struct{}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext extracts the route pattern from context if present.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(routePatternKey{}).(string)
	return v
}

// RouteSurface names the API area a route pattern belongs to.
func RouteSurface(pattern string) string {
	p := strings.TrimPrefix(pattern, "/api/v1")
	switch {
	case strings.HasPrefix(p, "/admin/promotions"):
		return "admin.promotions"
	case strings.HasPrefix(p, "/carts"):
		return "cart"
	case strings.HasPrefix(p, "/favorites"):
		return "favorites"
	case strings.HasPrefix(p, "/quote"), strings.HasPrefix(p, "/items"):
		return "pricing"
	case strings.HasPrefix(p, "/health"):
		return "health"
	case p == "/metrics", strings.HasPrefix(p, "/debug"):
		return "ops"
	}
	return "other"
}

// AnnotateSpan adds attrs to the span in ctx when it is recording.
func AnnotateSpan(ctx context.Context, attrs ...attribute.KeyValue) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}
