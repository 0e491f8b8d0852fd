package api

import (
	"context"

	"github.com/ethsafari/opshub-go/internal/identity"
)

type contextKey string

// operatorContextKey carries the authenticated operator through the request.
const operatorContextKey contextKey = "operator"

// WithOperator returns a context carrying the authenticated operator.
func WithOperator(ctx context.Context, op *identity.Operator) context.Context {
	return context.WithValue(ctx, operatorContextKey, op)
}

// OperatorFromContext returns the authenticated operator, or nil.
func OperatorFromContext(ctx context.Context) *identity.Operator {
	op, _ := ctx.Value(operatorContextKey).(*identity.Operator)
	return op
}
