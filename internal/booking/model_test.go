package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBookingRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateBookingRequest
		wantErr error
	}{
		{
			name: "valid",
			req:  CreateBookingRequest{MobileNumber: "9876543210", SlotType: "morning"},
		},
		{
			name: "valid with separators",
			req:  CreateBookingRequest{MobileNumber: "98765 432-10", SlotType: "evening"},
		},
		{
			name:    "too short",
			req:     CreateBookingRequest{MobileNumber: "12345", SlotType: "morning"},
			wantErr: ErrInvalidMobile,
		},
		{
			name:    "too long",
			req:     CreateBookingRequest{MobileNumber: "98765432101", SlotType: "morning"},
			wantErr: ErrInvalidMobile,
		},
		{
			name:    "letters",
			req:     CreateBookingRequest{MobileNumber: "98765abcde", SlotType: "morning"},
			wantErr: ErrInvalidMobile,
		},
		{
			name:    "empty mobile",
			req:     CreateBookingRequest{SlotType: "morning"},
			wantErr: ErrInvalidMobile,
		},
		{
			name:    "unknown slot",
			req:     CreateBookingRequest{MobileNumber: "9876543210", SlotType: "afternoon"},
			wantErr: ErrInvalidSlot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, tt.req.MobileNumber, 10)
		})
	}
}

func TestValidateNormalizesMobile(t *testing.T) {
	req := CreateBookingRequest{MobileNumber: " 98765 432-10 ", SlotType: "morning"}
	require.NoError(t, req.Validate())
	assert.Equal(t, "9876543210", req.MobileNumber)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusWaiting.Terminal())
	assert.True(t, StatusConsulted.Terminal())
	assert.True(t, StatusNoShow.Terminal())
}
