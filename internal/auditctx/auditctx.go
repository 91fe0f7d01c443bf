package auditctx

import "context"

// Operator describes the authenticated gate operator behind a request.
type Operator struct {
	Username  string
	IPAddress string
	UserAgent string
}

type operatorContextKey struct{}

// WithOperator stores operator metadata on the context so services can
// attribute scans without reaching into HTTP state.
func WithOperator(ctx context.Context, operator Operator) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, operatorContextKey{}, operator)
}

// FromContext extracts previously stored operator metadata.
func FromContext(ctx context.Context) (Operator, bool) {
	if ctx == nil {
		return Operator{}, false
	}
	operator, ok := ctx.Value(operatorContextKey{}).(Operator)
	return operator, ok
}
