package mailparse

import (
	"bufio"
	"bytes"
	"mime"
	"strings"

	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/textproto"
	"github.com/jhillyerd/enmime"
	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/utils"
	"go.uber.org/zap"
)

// Parser turns raw RFC 5322 messages into core.ParsedMessage values
type Parser struct {
	logger      *zap.Logger
	text        *utils.TextProcessor
	wordDecoder *mime.WordDecoder
	envelopes   *enmime.Parser
}

// NewParser creates a new message parser
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		logger:      logger,
		text:        utils.NewTextProcessor(logger),
		wordDecoder: &mime.WordDecoder{CharsetReader: charset.Reader},
		envelopes:   enmime.NewParser(enmime.DisableTextConversion(true)),
	}
}

// Parse decodes raw into a ParsedMessage or returns a *core.ParseError
func (p *Parser) Parse(raw []byte) (*core.ParsedMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &core.ParseError{Reason: "empty input"}
	}

	headerEnd := headerBoundary(raw)
	if headerEnd < 0 {
		return nil, &core.ParseError{Reason: "no header/body separator"}
	}

	fields, err := p.readHeader(raw[:headerEnd])
	if err != nil {
		return nil, &core.ParseError{Reason: "unreadable header block", Err: err}
	}
	if len(fields) == 0 {
		return nil, &core.ParseError{Reason: "no header fields"}
	}
	headers := core.NewHeaders(fields)

	msg := &core.ParsedMessage{
		Subject:  lookup(headers, "Subject"),
		Sender:   lookup(headers, "From"),
		Receiver: lookup(headers, "To"),
		Date:     lookup(headers, "Date"),
		Body:     p.plainBody(raw),
		Headers:  headers,
	}

	p.logger.Debug("Parsed message",
		zap.Int("header_fields", headers.Len()),
		zap.Int("body_size", len(msg.Body)))

	return msg, nil
}

// readHeader reads every header field, in message order, with values
// unfolded and RFC 2047 decoded
func (p *Parser) readHeader(block []byte) ([]core.HeaderField, error) {
	r := bufio.NewReader(bytes.NewReader(block))
	h, err := textproto.ReadHeader(r)
	if err != nil {
		return nil, err
	}

	var fields []core.HeaderField
	it := h.Fields()
	for it.Next() {
		fields = append(fields, core.HeaderField{
			Name:  p.text.DecodePermissive([]byte(it.Key())),
			Value: p.decodeValue(it.Value()),
		})
	}
	return fields, nil
}

func (p *Parser) decodeValue(v string) string {
	v = unfold(p.text.DecodePermissive([]byte(v)))
	decoded, err := p.wordDecoder.DecodeHeader(v)
	if err != nil {
		p.logger.Debug("Keeping undecodable header value", zap.Error(err))
		return v
	}
	return utils.StripNUL(decoded)
}

// plainBody returns the first inline text/plain part in depth-first order,
// or "" when there is none
func (p *Parser) plainBody(raw []byte) string {
	env, err := p.envelopes.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		p.logger.Debug("Failed to read message body", zap.Error(err))
		return ""
	}
	if env.Root == nil {
		return ""
	}

	part := env.Root.DepthMatchFirst(isInlinePlainText)
	if part == nil {
		return ""
	}
	return p.text.DecodePermissive(part.Content)
}

// isInlinePlainText matches leaf text/plain parts that are not attachments.
// A leaf without a Content-Type is plain text.
func isInlinePlainText(part *enmime.Part) bool {
	if part.FirstChild != nil || part.Disposition == "attachment" {
		return false
	}
	return part.ContentType == "text/plain" || part.ContentType == ""
}

// headerBoundary returns the index just past the blank line that ends the
// header block, or -1 when the message has none
func headerBoundary(raw []byte) int {
	crlf := bytes.Index(raw, []byte("\r\n\r\n"))
	lf := bytes.Index(raw, []byte("\n\n"))

	switch {
	case crlf < 0 && lf < 0:
		return -1
	case lf < 0 || (crlf >= 0 && crlf < lf):
		return crlf + 4
	default:
		return lf + 2
	}
}

func unfold(v string) string {
	if !strings.ContainsAny(v, "\r\n") {
		return v
	}
	v = strings.ReplaceAll(v, "\r\n", "")
	return strings.ReplaceAll(v, "\n", "")
}

func lookup(h core.Headers, name string) *string {
	v, ok := h.Get(name)
	if !ok {
		return nil
	}
	return &v
}
