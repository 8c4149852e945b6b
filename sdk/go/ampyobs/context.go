package ampyobs

import (
	"context"

	"go.uber.org/zap"

	"ampy.local/ampy-b3/go/b3"
)

type originKey struct{}

// Origin records how an inbound request carried its trace context.
type Origin struct {
	Encoding b3.Encoding // encoding that produced the remote parent; empty if none
	Outcome  string      // ok | absent | reject
	Peer     string      // remote address of the caller
}

func WithOrigin(ctx context.Context, o Origin) context.Context {
	return context.WithValue(ctx, originKey{}, o)
}

func OriginFromContext(ctx context.Context) (Origin, bool) {
	v := ctx.Value(originKey{})
	if v == nil {
		return Origin{}, false
	}
	o, ok := v.(Origin)
	return o, ok
}

func (o Origin) toZapFields() []zap.Field {
	out := make([]zap.Field, 0, 3)
	if o.Encoding != "" {
		out = append(out, zap.String("b3_encoding", string(o.Encoding)))
	}
	if o.Outcome != "" {
		out = append(out, zap.String("b3_outcome", o.Outcome))
	}
	if o.Peer != "" {
		out = append(out, zap.String("peer", o.Peer))
	}
	return out
}
