package auditctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOperatorRoundTrip(t *testing.T) {
	ctx := WithOperator(context.Background(), Operator{Username: "gate", IPAddress: "10.0.0.2"})

	operator, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "gate", operator.Username)
	require.Equal(t, "10.0.0.2", operator.IPAddress)
}

func TestFromContextWithoutOperator(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)
}
