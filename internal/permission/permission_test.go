package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerpay/invoicer/internal/account"
	"github.com/ledgerpay/invoicer/internal/domain/entity"
)

func principal(t *testing.T, raw ...byte) account.Principal {
	t.Helper()
	p, err := account.PrincipalFromRaw(raw)
	require.NoError(t, err)
	return p
}

func TestAccessChecks(t *testing.T) {
	creator := principal(t, 0x01)
	reader := principal(t, 0x02)
	verifier := principal(t, 0x03)
	stranger := principal(t, 0x04)

	inv := &entity.Invoice{
		Creator: creator,
		Permissions: &entity.Permissions{
			CanGet:    []account.Principal{reader},
			CanVerify: []account.Principal{verifier},
		},
	}

	tests := []struct {
		name      string
		caller    account.Principal
		canGet    bool
		canVerify bool
		canRefund bool
	}{
		{"creator", creator, true, true, true},
		{"canGet entry", reader, true, false, false},
		{"canVerify entry implies read", verifier, true, true, false},
		{"stranger", stranger, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.canGet, CanGet(tt.caller, inv))
			assert.Equal(t, tt.canVerify, CanVerify(tt.caller, inv))
			assert.Equal(t, tt.canRefund, CanRefund(tt.caller, inv))
		})
	}
}

func TestAccessChecks_NoPermissionLists(t *testing.T) {
	creator := principal(t, 0x01)
	stranger := principal(t, 0x02)
	inv := &entity.Invoice{Creator: creator}

	assert.True(t, CanGet(creator, inv))
	assert.False(t, CanGet(stranger, inv))
	assert.False(t, CanVerify(stranger, inv))
}

func TestValidateLists(t *testing.T) {
	within := make([]account.Principal, MaxAllowlistSize)
	over := make([]account.Principal, MaxAllowlistSize+1)

	assert.NoError(t, ValidateLists(nil))
	assert.NoError(t, ValidateLists(&entity.Permissions{CanGet: within, CanVerify: within}))

	err := ValidateLists(&entity.Permissions{CanGet: over})
	require.Error(t, err)
	assert.True(t, entity.IsKind(err, entity.KindBadSize))

	err = ValidateLists(&entity.Permissions{CanVerify: over})
	require.Error(t, err)
	assert.True(t, entity.IsKind(err, entity.KindBadSize))
}
