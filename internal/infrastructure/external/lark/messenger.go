package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/fbr-submission/internal/application/port"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
)

const (
	receiveIDTypeChat = "chat_id"
	msgTypeText       = "text"

	// maxListedFailures caps the per-invoice lines in one message
	maxListedFailures = 20
)

// MessageSender is the part of the Lark IM API the notifier needs
type MessageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// Messenger implements port.RunNotifier by posting a text summary to a group chat
type Messenger struct {
	sender MessageSender
	chatID string
	logger *zap.Logger
}

// NewMessenger creates a new run summary messenger
func NewMessenger(sender MessageSender, chatID string, logger *zap.Logger) *Messenger {
	return &Messenger{
		sender: sender,
		chatID: chatID,
		logger: logger,
	}
}

// NotifyRunCompleted sends the run summary to the configured chat
func (m *Messenger) NotifyRunCompleted(ctx context.Context, run *entity.SubmissionRun, results []*entity.ProcessResult) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if m.chatID == "" {
		return fmt.Errorf("chat id cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": FormatRunSummary(run, results)})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	messageID, err := m.sender.SendMessage(ctx, receiveIDTypeChat, m.chatID, msgTypeText, string(content))
	if err != nil {
		return fmt.Errorf("failed to send run summary: %w", err)
	}

	m.logger.Info("Run summary sent",
		zap.String("run_id", run.ID),
		zap.String("message_id", messageID))
	return nil
}

// FormatRunSummary renders the plain-text message for a completed run
func FormatRunSummary(run *entity.SubmissionRun, results []*entity.ProcessResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "FBR %s run %s finished for %s\n", run.Mode, shortID(run.ID), run.CompanyID)
	fmt.Fprintf(&b, "Total %d | Succeeded %d | Failed %d | Skipped %d\n",
		run.Total, run.Succeeded, run.Failed, run.Skipped)

	listed := 0
	for _, r := range results {
		if r.Outcome != entity.OutcomeFailed {
			continue
		}
		if listed == maxListedFailures {
			fmt.Fprintf(&b, "... and %d more failures\n", run.Failed-listed)
			break
		}
		fmt.Fprintf(&b, "- %s: %s\n", r.InvoiceNumber, r.Detail())
		listed++
	}

	if run.Mode == entity.ModePost {
		for _, r := range results {
			if r.Outcome == entity.OutcomeSuccess {
				fmt.Fprintf(&b, "+ %s -> %s\n", r.InvoiceNumber, r.Reference)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Verify interface compliance
var (
	_ port.RunNotifier = (*Messenger)(nil)
	_ MessageSender    = (*SDKClient)(nil)
)
