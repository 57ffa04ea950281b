package processor_test

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hustlexp/hustlexp-core/internal/processor"
)

func TestMockClient_VerifyXPTaxPayment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := processor.NewMockClient(ctrl)
	userID := uuid.New()

	client.EXPECT().
		VerifyXPTaxPayment(gomock.Any(), "pi_123", userID).
		Return(int64(500), true, nil)

	var c processor.Client = client
	amount, ok, err := c.VerifyXPTaxPayment(context.Background(), "pi_123", userID)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(500), amount)
}

func TestMockClient_CreateRefund(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := processor.NewMockClient(ctrl)
	escrowID := uuid.New()

	client.EXPECT().
		CreateRefund(gomock.Any(), escrowID, int64(1000), "pi_abc").
		Return(&processor.Refund{ID: "re_1", Status: "succeeded"}, nil)

	refund, err := client.CreateRefund(context.Background(), escrowID, 1000, "pi_abc")
	require.NoError(t, err)
	assert.Equal(t, "re_1", refund.ID)
	assert.Equal(t, "succeeded", refund.Status)
}
