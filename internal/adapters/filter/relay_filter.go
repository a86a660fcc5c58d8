package filter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/textproto"
	"github.com/emersion/go-smtp"
	"github.com/mikey/phishing-analyzer/internal/config"
	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/utils"
	"go.uber.org/zap"
)

const (
	// verdictUnknown is written when a message could not be analyzed
	verdictUnknown = "unknown"

	maxReasonSize   = 512
	analysisTimeout = 2 * time.Minute
)

// RelayFilter is an SMTP content filter. It analyzes every message it
// receives, annotates it with the verdict and hands it back to the MTA.
// Messages are never rejected.
type RelayFilter struct {
	service       *core.AnalysisService
	logger        *zap.Logger
	text          *utils.TextProcessor
	server        *smtp.Server
	listenAddr    string
	headers       config.HeadersConfig
	relayAddr     string
	relayPort     int
	relayEnabled  bool
	subjectPrefix string
	modifySubject bool

	// ctx bounds in-flight analyses and is cancelled by Stop
	ctx    context.Context
	cancel context.CancelFunc

	// forward delivers the annotated message
	forward func(sender string, recipients []string, data []byte) error
}

// NewRelayFilter creates a new SMTP relay filter
func NewRelayFilter(
	service *core.AnalysisService,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
	cfg config.ServerConfig,
) *RelayFilter {
	// If subject prefix is not set but modify subject is enabled, use default prefix
	subjectPrefix := cfg.SubjectPrefix
	if subjectPrefix == "" && cfg.ModifySubject {
		subjectPrefix = "[PHISHING] "
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &RelayFilter{
		ctx:           ctx,
		cancel:        cancel,
		service:       service,
		logger:        logger,
		text:          textProcessor,
		listenAddr:    cfg.ListenAddress,
		headers:       cfg.Headers,
		relayAddr:     cfg.RelayAddress,
		relayPort:     cfg.RelayPort,
		relayEnabled:  cfg.RelayEnabled,
		subjectPrefix: subjectPrefix,
		modifySubject: cfg.ModifySubject,
	}
	f.forward = f.sendToRelay
	return f
}

// Start starts the relay filter service
func (f *RelayFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	f.server.MaxRecipients = 50

	f.logger.Info("Relay filter starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil {
			if !errors.Is(err, smtp.ErrServerClosed) {
				f.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the relay filter service
func (f *RelayFilter) Stop() error {
	f.cancel()
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessMessage analyzes a raw message without relaying it
func (f *RelayFilter) ProcessMessage(ctx context.Context, raw []byte) (*core.Assessment, error) {
	return f.service.AnalyzeMessage(ctx, raw)
}

// annotate returns raw with the analysis headers added. A nil assessment
// marks the message as not analyzed.
func (f *RelayFilter) annotate(raw []byte, assessment *core.Assessment, analysisErr error) []byte {
	verdict := verdictUnknown
	urgencyScore := "0"
	reason := ""
	if assessment != nil {
		verdict = string(assessment.Verdict)
		urgencyScore = strconv.Itoa(assessment.Urgency.Score)
		reason = f.service.Summary(assessment)
	} else if analysisErr != nil {
		reason = "analysis failed: " + analysisErr.Error()
	}
	reason = f.text.ProcessText(reason, maxReasonSize)

	br := bufio.NewReader(bytes.NewReader(raw))
	h, err := textproto.ReadHeader(br)
	if err != nil {
		// Unreadable header block, prepend our fields to the original bytes
		f.logger.Warn("Failed to read message header, prepending analysis headers", zap.Error(err))
		var out bytes.Buffer
		fmt.Fprintf(&out, "%s: %s\r\n", f.headers.Verdict, verdict)
		fmt.Fprintf(&out, "%s: %s\r\n", f.headers.Urgency, urgencyScore)
		fmt.Fprintf(&out, "%s: %s\r\n", f.headers.Reason, reason)
		out.Write(raw)
		return out.Bytes()
	}

	if assessment != nil && assessment.Verdict == core.VerdictMalicious && f.modifySubject && f.subjectPrefix != "" {
		subject := assessment.Message.Subject
		if !strings.HasPrefix(subject, f.subjectPrefix) {
			h.Set("Subject", mime.QEncoding.Encode("utf-8", f.subjectPrefix+subject))
		}
	}

	h.Set(f.headers.Reason, reason)
	h.Set(f.headers.Urgency, urgencyScore)
	h.Set(f.headers.Verdict, verdict)

	var out bytes.Buffer
	if err := textproto.WriteHeader(&out, h); err != nil {
		f.logger.Error("Failed to write message header", zap.Error(err))
		return raw
	}
	// The rest of the reader is the original body, MIME parts included
	if _, err := io.Copy(&out, br); err != nil {
		f.logger.Error("Failed to copy message body", zap.Error(err))
		return raw
	}
	return out.Bytes()
}

// sendToRelay hands the annotated message back to the MTA
func (f *RelayFilter) sendToRelay(sender string, recipients []string, data []byte) error {
	relayAddr := net.JoinHostPort(f.relayAddr, strconv.Itoa(f.relayPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", relayAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}

	if !recipientOK {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// Already delivered
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *RelayFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *RelayFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data analyzes, annotates and relays the message
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(s.filter.ctx, analysisTimeout)
	defer cancel()

	assessment, analysisErr := s.filter.service.AnalyzeMessage(ctx, raw)
	if analysisErr != nil {
		s.filter.logger.Error("Failed to analyze message",
			zap.Error(analysisErr),
			zap.String("envelope_sender", s.sender))
	}

	annotated := s.filter.annotate(raw, assessment, analysisErr)

	if s.filter.relayEnabled {
		if err := s.filter.forward(s.sender, s.recipients, annotated); err != nil {
			s.filter.logger.Error("Failed to relay message",
				zap.Error(err),
				zap.String("envelope_sender", s.sender))
			return err
		}
	} else {
		s.filter.logger.Warn("Relay disabled, annotated message was dropped")
	}

	verdict := verdictUnknown
	if assessment != nil {
		verdict = string(assessment.Verdict)
	}
	s.filter.logger.Info("Processed message",
		zap.String("envelope_sender", s.sender),
		zap.Int("recipients", len(s.recipients)),
		zap.String("verdict", verdict))

	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
