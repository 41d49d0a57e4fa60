package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
)

const SendEmailTask = "email:send"

type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Notifier hands an email off for delivery. Implementations must not block on
// delivery itself.
type Notifier interface {
	Notify(ctx context.Context, e Email) error
}

// QueueNotifier enqueues emails for the worker.
type QueueNotifier struct {
	client *asynq.Client
}

func NewQueueNotifier(client *asynq.Client) *QueueNotifier {
	return &QueueNotifier{client: client}
}

func (q *QueueNotifier) Notify(ctx context.Context, e Email) error {
	task, err := NewSendEmailTask(e)
	if err != nil {
		return err
	}
	if _, err := q.client.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.Timeout(time.Minute)); err != nil {
		return fmt.Errorf("enqueue email task: %w", err)
	}
	return nil
}

func NewSendEmailTask(e Email) (*asynq.Task, error) {
	if e.To == "" {
		return nil, fmt.Errorf("email has no recipient")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal email: %w", err)
	}
	return asynq.NewTask(SendEmailTask, data), nil
}

// LogNotifier only records the email; used when no queue is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, e Email) error {
	log.Printf("notify (log only) to=%s subject=%q", e.To, e.Subject)
	return nil
}

// Sender delivers email through an HTTP mail API (Resend-style JSON body).
type Sender struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

func NewSender(endpoint, apiKey, from string) *Sender {
	return &Sender{endpoint: endpoint, apiKey: apiKey, from: from, client: &http.Client{Timeout: 20 * time.Second}}
}

func (s *Sender) Send(ctx context.Context, e Email) error {
	if s.apiKey == "" {
		log.Printf("mail api key missing, dropping email to=%s subject=%q", e.To, e.Subject)
		return nil
	}
	payload, _ := json.Marshal(map[string]any{
		"from":    s.from,
		"to":      []string{e.To},
		"subject": e.Subject,
		"text":    e.Text,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("send mail: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	sender *Sender
}

func NewProcessor(sender *Sender) *Processor {
	return &Processor{sender: sender}
}

func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(SendEmailTask, p.HandleSendEmail)
	return mux
}

func (p *Processor) HandleSendEmail(ctx context.Context, task *asynq.Task) error {
	var e Email
	if err := json.Unmarshal(task.Payload(), &e); err != nil {
		return fmt.Errorf("decode email payload: %w: %w", err, asynq.SkipRetry)
	}
	if err := p.sender.Send(ctx, e); err != nil {
		log.Printf("email send failed to=%s err=%v", e.To, err)
		return err
	}
	log.Printf("email sent to=%s subject=%q", e.To, e.Subject)
	return nil
}
