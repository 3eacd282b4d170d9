package front

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"frontbridge/internal/domain"
	"frontbridge/internal/httpx"
)

// Client talks to Front's channel API: creating inbound messages in the
// inbox and downloading message attachments. All calls carry the channel
// API token as a bearer.
type Client struct {
	incomingURI string
	token       string
	logger      *slog.Logger
	client      *http.Client
}

// ClientConfig configures the Front client.
type ClientConfig struct {
	IncomingURI string
	Token       string
	Timeout     time.Duration // 0 means no timeout
	Logger      *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	return &Client{
		incomingURI: cfg.IncomingURI,
		token:       cfg.Token,
		logger:      cfg.Logger,
		client:      httpx.NewClient(cfg.Timeout),
	}
}

// SendText creates a plain text inbound message in the Front inbox.
func (c *Client) SendText(ctx context.Context, msg InboundMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if err := c.do(ctx, "application/json", bytes.NewReader(body)); err != nil {
		return err
	}
	c.logger.Info("front text message sent", "handle", msg.Sender.Handle)
	return nil
}

// SendAttachment creates an inbound message carrying one attachment. The
// message fields travel as flattened multipart form fields
// (sender[name], metadata[external_id], ...) next to the file part, which
// is what Front's channel API expects for attachments.
func (c *Client) SendAttachment(ctx context.Context, msg InboundMessage, filename string, file io.Reader) error {
	// The file part is piped straight into the request body, so an
	// attachment near the store's size cap never sits in memory whole.
	pr, pw := io.Pipe()
	w := multipart.NewWriter(pw)
	go func() {
		err := writeAttachmentForm(w, msg, filename, file)
		if closeErr := w.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	if err := c.do(ctx, w.FormDataContentType(), pr); err != nil {
		return err
	}
	c.logger.Info("front attachment message sent", "handle", msg.Sender.Handle, "filename", filename)
	return nil
}

func writeAttachmentForm(w *multipart.Writer, msg InboundMessage, filename string, file io.Reader) error {
	part, err := w.CreateFormFile("attachments", filename)
	if err != nil {
		return fmt.Errorf("form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy attachment: %w", err)
	}

	fields := map[string]string{
		"sender[name]":                       msg.Sender.Name,
		"sender[handle]":                     msg.Sender.Handle,
		"body":                               msg.Body,
		"metadata[external_conversation_id]": msg.Metadata.ExternalConversationID,
		"metadata[external_id]":              msg.Metadata.ExternalID,
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("form field %s: %w", k, err)
		}
	}
	return nil
}

// Download opens the byte stream of an attachment hosted by Front. The
// caller owns the returned body and must close it.
func (c *Client) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := httpx.DoWithRetry(ctx, c.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return nil, err
		}
		// Without the channel token the media host answers 401.
		req.Header.Set("Authorization", "Bearer "+c.token)
		return req, nil
	}, c.logger)
	if err != nil {
		return nil, &domain.DownloadError{URL: url, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &domain.DownloadError{URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return resp.Body, nil
}

// do posts one message-creation request. A single attempt, deliberately:
// a retried create that already landed would duplicate the message in
// the inbox. Delivery is at-most-once.
func (c *Client) do(ctx context.Context, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.incomingURI, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &domain.UpstreamError{Provider: "front", Status: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

// --- Front wire types ---

// InboundMessage is the payload for Front's inbound-message creation
// endpoint. The translator builds it; it has no life beyond the send.
type InboundMessage struct {
	Sender   Sender   `json:"sender"`
	Body     string   `json:"body"`
	Metadata Metadata `json:"metadata"`

	// Attachment is set for the media variant. It is delivered as a
	// multipart file part, never as JSON.
	Attachment *AttachmentRef `json:"-"`
}

type Sender struct {
	Name   string `json:"name"`
	Handle string `json:"handle"`
}

// Metadata threads the message back to its channel conversation.
type Metadata struct {
	ExternalConversationID string `json:"external_conversation_id"`
	ExternalID             string `json:"external_id"`
}

// AttachmentRef points at a media file still hosted by the channel
// provider, plus the filename to store and forward it under.
type AttachmentRef struct {
	SourceURL string
	Filename  string
}

// OutboundRequest is the webhook body Front posts when an agent replies
// from the inbox.
type OutboundRequest struct {
	Recipients  []Recipient     `json:"recipients"`
	Text        string          `json:"text"`
	Attachments []Attachment    `json:"attachments"`
	Metadata    RequestMetadata `json:"metadata"`
}

// Recipient is a conversation participant. Only role "to" participants
// are forwarded to the channel.
type Recipient struct {
	Role   string `json:"role"`
	Handle string `json:"handle"`
	Name   string `json:"name,omitempty"`
}

type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

type RequestMetadata struct {
	Headers MessageHeaders `json:"headers"`
}

type MessageHeaders struct {
	InReplyTo string `json:"in_reply_to"`
}
