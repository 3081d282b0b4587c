package assets

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestInternalCodeUsesFirstEightHexDigits(t *testing.T) {
	id := uuid.MustParse("3fa85f64-5717-4562-b3fc-2c963f66afa6")
	require.Equal(t, "ACT-3FA85F64", InternalCode(id))
}

type codeIndex struct {
	TxRepository
	used map[string]bool
}

func (c codeIndex) CodeInUse(_ context.Context, _ uuid.UUID, code string) (bool, error) {
	return c.used[code], nil
}

func TestNextInternalCodeLengthensOnCollision(t *testing.T) {
	ctx := context.Background()
	tenant := uuid.New()
	id := uuid.MustParse("3fa85f64-5717-4562-b3fc-2c963f66afa6")

	code, err := NextInternalCode(ctx, codeIndex{used: map[string]bool{}}, tenant, id)
	require.NoError(t, err)
	require.Equal(t, "ACT-3FA85F64", code)

	code, err = NextInternalCode(ctx, codeIndex{used: map[string]bool{"ACT-3FA85F64": true}}, tenant, id)
	require.NoError(t, err)
	require.Equal(t, "ACT-3FA85F6457174562", code)

	code, err = NextInternalCode(ctx, codeIndex{used: map[string]bool{
		"ACT-3FA85F64": true, "ACT-3FA85F6457174562": true,
	}}, tenant, id)
	require.NoError(t, err)
	require.Equal(t, "ACT-3FA85F6457174562B3FC2C963F66AFA6", code)
}
