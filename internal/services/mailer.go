package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// JobSendEmail is the job name under which assembled messages are queued.
const JobSendEmail = "email.send"

type jobMailer struct {
	queue  JobQueue
	logger ServiceLogger
}

// NewJobMailer returns a Mailer that hands messages to background workers.
func NewJobMailer(queue JobQueue, logger ServiceLogger) (Mailer, error) {
	if queue == nil {
		return nil, errors.New("mailer: job queue is required")
	}
	return &jobMailer{queue: queue, logger: defaultLogger(logger)}, nil
}

func (m *jobMailer) Enqueue(ctx context.Context, message EmailMessage) error {
	if len(message.Recipients) == 0 {
		return errors.New("mailer: at least one recipient is required")
	}
	if strings.TrimSpace(message.Sender.Address) == "" {
		return errors.New("mailer: sender address is required")
	}
	id, err := m.queue.Enqueue(ctx, Job{Name: JobSendEmail, Args: EmailJobArgs(message)})
	if err != nil {
		return fmt.Errorf("mailer: enqueue: %w", err)
	}
	m.logger(ctx, "email.queued", map[string]any{
		"jobId":      id,
		"recipients": len(message.Recipients),
		"subject":    message.Subject,
	})
	return nil
}

// EmailJobArgs flattens a message into job arguments.
func EmailJobArgs(message EmailMessage) map[string]any {
	recipients := make([]any, 0, len(message.Recipients))
	for _, r := range message.Recipients {
		recipients = append(recipients, r)
	}
	return map[string]any{
		"sender_name":    message.Sender.Name,
		"sender_address": message.Sender.Address,
		"recipients":     recipients,
		"subject":        message.Subject,
		"body":           message.Body,
	}
}

// EmailFromJobArgs restores a message from job arguments that may have
// passed through a JSON round trip.
func EmailFromJobArgs(args map[string]any) (EmailMessage, error) {
	var message EmailMessage
	message.Sender.Name, _ = args["sender_name"].(string)
	message.Sender.Address, _ = args["sender_address"].(string)
	message.Subject, _ = args["subject"].(string)
	message.Body, _ = args["body"].(string)

	switch recipients := args["recipients"].(type) {
	case []string:
		message.Recipients = append(message.Recipients, recipients...)
	case []any:
		for _, r := range recipients {
			if s, ok := r.(string); ok {
				message.Recipients = append(message.Recipients, s)
			}
		}
	}
	if message.Sender.Address == "" || len(message.Recipients) == 0 {
		return EmailMessage{}, errors.New("mailer: job arguments lack sender or recipients")
	}
	return message, nil
}
