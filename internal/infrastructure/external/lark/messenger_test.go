package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/fbr-submission/internal/domain/entity"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	args := m.Called(ctx, receiveIDType, receiveID, msgType, content)
	return args.String(0), args.Error(1)
}

func completedRun() (*entity.SubmissionRun, []*entity.ProcessResult) {
	run := &entity.SubmissionRun{
		ID:        "3f2a9c1e-0000-4000-8000-000000000001",
		CompanyID: "acme",
		Mode:      entity.ModePost,
		State:     "COMPLETE",
		Total:     3,
		Succeeded: 1,
		Failed:    1,
		Skipped:   1,
	}
	results := []*entity.ProcessResult{
		{InvoiceID: 1, InvoiceNumber: "INV-1", Outcome: entity.OutcomeSuccess, Reference: "FBR-1001"},
		{InvoiceID: 2, InvoiceNumber: "INV-2", Outcome: entity.OutcomeFailed, Error: "duplicate NTN", FailureKind: entity.FailureGatewayRejection},
		{InvoiceID: 3, InvoiceNumber: "INV-3", Outcome: entity.OutcomeSkipped, SkipReason: entity.SkipStoppedByOperator},
	}
	return run, results
}

func TestFormatRunSummary(t *testing.T) {
	run, results := completedRun()

	text := FormatRunSummary(run, results)

	assert.Equal(t, "FBR post run 3f2a9c1e finished for acme\n"+
		"Total 3 | Succeeded 1 | Failed 1 | Skipped 1\n"+
		"- INV-2: duplicate NTN\n"+
		"+ INV-1 -> FBR-1001", text)
}

func TestFormatRunSummary_ValidateOmitsReferences(t *testing.T) {
	run, results := completedRun()
	run.Mode = entity.ModeValidate
	results[0].Reference = ""

	text := FormatRunSummary(run, results)

	assert.NotContains(t, text, "+ INV-1")
	assert.Contains(t, text, "FBR validate run")
}

func TestMessenger_NotifyRunCompleted(t *testing.T) {
	run, results := completedRun()
	sender := new(mockSender)
	sender.On("SendMessage", mock.Anything, "chat_id", "oc_ops", "text", mock.AnythingOfType("string")).
		Return("om_1", nil).
		Run(func(args mock.Arguments) {
			var body map[string]string
			require.NoError(t, json.Unmarshal([]byte(args.String(4)), &body))
			assert.Contains(t, body["text"], "duplicate NTN")
		})

	m := NewMessenger(sender, "oc_ops", zap.NewNop())
	require.NoError(t, m.NotifyRunCompleted(context.Background(), run, results))
	sender.AssertExpectations(t)
}

func TestMessenger_Errors(t *testing.T) {
	run, results := completedRun()

	t.Run("send failure", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("SendMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", errors.New("API error: code=230002"))

		err := NewMessenger(sender, "oc_ops", zap.NewNop()).NotifyRunCompleted(context.Background(), run, results)
		assert.ErrorContains(t, err, "code=230002")
	})

	t.Run("missing chat", func(t *testing.T) {
		sender := new(mockSender)
		err := NewMessenger(sender, "", zap.NewNop()).NotifyRunCompleted(context.Background(), run, results)
		assert.Error(t, err)
		sender.AssertNotCalled(t, "SendMessage")
	})
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{AppID: "cli_x", AppSecret: "s"}.Enabled())
	assert.True(t, Config{AppID: "cli_x", AppSecret: "s", ChatID: "oc_ops"}.Enabled())
}
