package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlebRadaev/boostmarket/internal/domain"
)

func TestBankNotificationDTO(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected domain.BankNotification
		wantErr  bool
	}{
		{
			name: "Numeric id",
			body: `{"id":92704,"transferType":"in","transferAmount":100000,"content":"NAP ALICE","referenceCode":"FT1"}`,
			expected: domain.BankNotification{
				ProviderID: "92704", Direction: "in", Amount: 100000, Content: "NAP ALICE", Reference: "FT1",
			},
		},
		{
			name: "String id with code",
			body: `{"id":"evt-1","transferType":"in","transferAmount":5,"content":"NAP BOB","code":"1a9f3e"}`,
			expected: domain.BankNotification{
				ProviderID: "evt-1", Direction: "in", Amount: 5, Content: "NAP BOB", Code: "1a9f3e",
			},
		},
		{
			name:    "Object id",
			body:    `{"id":{"x":1}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n BankNotificationDTO
			err := json.Unmarshal([]byte(tt.body), &n)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n.Notification())
		})
	}
}

func TestNewApplicationResponseHidesPayout(t *testing.T) {
	resp := NewApplicationResponse(&domain.BoosterApplication{ID: 1, PayoutCard: "4111111111111111", BankAccount: "123"})
	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "4111111111111111")
	assert.NotContains(t, string(body), "bank_account")
}
