package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/techfussion/bts/internal/logger"
	"github.com/techfussion/bts/internal/metrics"
)

const (
	queueKey       = "emails"
	failedQueueKey = "emails:failed"
	maxTries       = 3
)

const (
	TypeTicket  = "ticket"
	TypeReceipt = "receipt"
	TypeGeneric = "generic"
)

type EmailJob struct {
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Type    string    `json:"type"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

type Config struct {
	From     string
	FromName string
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
}

// Service queues outgoing mail in Redis; Start drains the queue over SMTP.
type Service struct {
	redis      *redis.Client
	cfg        Config
	retryDelay time.Duration
	send       func(job EmailJob) error
}

func New(cfg Config, rdb *redis.Client) *Service {
	s := &Service{
		redis:      rdb,
		cfg:        cfg,
		retryDelay: 5 * time.Second,
	}
	s.send = s.sendSMTP
	return s
}

func (s *Service) Send(ctx context.Context, to, name, subject, body string) error {
	return s.enqueue(ctx, TypeGeneric, to, name, subject, body)
}

func (s *Service) enqueue(ctx context.Context, kind, to, name, subject, body string) error {
	job := EmailJob{
		To:      to,
		Name:    name,
		Type:    kind,
		Subject: subject,
		Body:    body,
		Created: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		logger.Errorf("Failed to marshal email job: %v", err)
		return err
	}

	if err := s.redis.LPush(ctx, queueKey, string(data)).Err(); err != nil {
		logger.Error("Failed to queue email", "to", to, "type", kind, "error", err)
		metrics.RecordEmail(kind, "queue_failed")
		return err
	}

	logger.Info("Email queued", "subject", subject, "to", to)
	metrics.RecordEmail(kind, "queued")
	return nil
}

func (s *Service) Start(ctx context.Context) {
	logger.Info("Email service started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Email service stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}

	var job EmailJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("Bad email data: %v", err)
		return
	}

	job.Tries++
	logger.Debug("Sending email", "to", job.To, "attempt", job.Tries)
	if err := s.send(job); err != nil {
		logger.Error("Failed to send email", "to", job.To, "attempt", job.Tries, "error", err)

		if job.Tries < maxTries {
			s.requeue(ctx, job)
		} else {
			logger.Errorf("Email to %s failed after %d attempts", job.To, maxTries)
			s.saveFailed(job, err)
		}
		return
	}

	metrics.RecordEmail(job.Type, "sent")
	metrics.SetEmailQueueLength(s.QueueLength(ctx))
	logger.Info("Email sent", "to", job.To, "type", job.Type)
}

func (s *Service) requeue(ctx context.Context, job EmailJob) {
	if s.retryDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(s.retryDelay):
		}
	}

	// ctx may already be cancelled; the job must not be lost on shutdown.
	data, _ := json.Marshal(job)
	if err := s.redis.LPush(context.Background(), queueKey, string(data)).Err(); err != nil {
		logger.Error("Failed to requeue email", "to", job.To, "error", err)
		return
	}
	metrics.RecordEmail(job.Type, "retried")
}

func (s *Service) sendSMTP(job EmailJob) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.cfg.FromName, s.cfg.From)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if s.cfg.SMTPUser != "" && s.cfg.SMTPPass != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	}

	addr := s.cfg.SMTPHost + ":" + s.cfg.SMTPPort
	return smtp.SendMail(addr, auth, s.cfg.From, []string{job.To}, []byte(message))
}

func (s *Service) saveFailed(job EmailJob, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedQueueKey, string(data))
	metrics.RecordEmail(job.Type, "failed")
	logger.Errorf("Email moved to failed queue: %s", job.To)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	return length
}

func (s *Service) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func (s *Service) Close() error {
	return s.redis.Close()
}

func (s *Service) SendTicketConfirmation(ctx context.Context, to, username, reference, ticketNumber, fare string) error {
	subject := "Bus Ticket Confirmed - " + reference
	body := fmt.Sprintf(`Hi %s,

Your bus ticket is confirmed.

Booking reference: %s
Ticket number: %s
Fare: NGN %s

Show the QR code from your dashboard to the driver when boarding.

- %s`, username, reference, ticketNumber, fare, s.cfg.FromName)

	return s.enqueue(ctx, TypeTicket, to, username, subject, body)
}

func (s *Service) SendPaymentReceipt(ctx context.Context, to, username, reference, amount string) error {
	subject := "Wallet Funded - " + reference
	body := fmt.Sprintf(`Hi %s,

We received your payment and credited your wallet.

Payment reference: %s
Amount: NGN %s

- %s`, username, reference, amount, s.cfg.FromName)

	return s.enqueue(ctx, TypeReceipt, to, username, subject, body)
}
