package localstore

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minato/storefront-api/internal/model"
)

func TestDecodeCartState_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "not-json-at-all"},
		{"wrong shape", `"just a string"`},
		{"truncated", `{"lines":[{"product_id":`},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := decodeCartState([]byte(tt.data))
			require.NotNil(t, state)
			assert.Empty(t, state.Lines)
			assert.Empty(t, state.CouponCode)
		})
	}
}

func TestDecodeCartState_RoundTrip(t *testing.T) {
	state := decodeCartState([]byte(`{"lines":[{"product_id":"` + uuid.NewString() + `","quantity":2,"color":"red"}],"coupon_code":"SAVE10"}`))
	require.Len(t, state.Lines, 1)
	assert.Equal(t, 2, state.Lines[0].Quantity)
	assert.Equal(t, "red", state.Lines[0].Color)
	assert.Equal(t, "SAVE10", state.CouponCode)
}

// Absent color and size fields decode to "", matching the canonical line
// identity where absent and empty collapse.
func TestDecodeCartState_AbsentVariantFields(t *testing.T) {
	id := uuid.New()
	state := decodeCartState([]byte(`{"lines":[{"product_id":"` + id.String() + `","quantity":1}]}`))
	require.Len(t, state.Lines, 1)

	explicit := model.CartLine{ProductID: id, Quantity: 1, Color: "", Size: ""}
	assert.True(t, state.Lines[0].SameLine(explicit))
}
