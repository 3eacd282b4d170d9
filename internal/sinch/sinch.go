package sinch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"frontbridge/internal/domain"
	"frontbridge/internal/httpx"
)

// Client talks to the Sinch Conversation API messages:send endpoint.
// Authentication is HTTP basic with the app's client id and secret.
type Client struct {
	sendURL      string
	appID        string
	clientID     string
	clientSecret string
	logger       *slog.Logger
	client       *http.Client
}

// ClientConfig configures the Sinch client.
type ClientConfig struct {
	SendURL      string
	AppID        string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration // 0 means no timeout
	Logger       *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	return &Client{
		sendURL:      cfg.SendURL,
		appID:        cfg.AppID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		logger:       cfg.Logger,
		client:       httpx.NewClient(cfg.Timeout),
	}
}

// Send delivers one app message to a single contact and returns the
// message id Sinch assigned to it.
func (c *Client) Send(ctx context.Context, contactID string, msg AppMessage) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}

	payload := SendRequest{
		AppID:     c.appID,
		Recipient: Recipient{ContactID: contactID},
		Message:   msg,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	// A single attempt, deliberately: retrying a send that was delivered
	// but answered late would put a duplicate message in front of the
	// end user. Delivery is at-most-once.
	req, err := http.NewRequestWithContext(ctx, "POST", c.sendURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &domain.UpstreamError{Provider: "sinch", Status: resp.StatusCode, Body: string(respBody)}
	}

	var out SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	c.logger.Info("sinch message sent", "contact_id", contactID, "message_id", out.MessageID)
	return out.MessageID, nil
}

// --- Sinch wire types ---

// InboundEvent is the webhook callback body for MESSAGE_INBOUND events.
type InboundEvent struct {
	Message *EventMessage `json:"message"`
}

// EventMessage is the contact message carried by an inbound event.
type EventMessage struct {
	ID              string          `json:"id"`
	ContactID       string          `json:"contact_id"`
	ConversationID  string          `json:"conversation_id"`
	ChannelIdentity ChannelIdentity `json:"channel_identity"`
	ContactMessage  ContactMessage  `json:"contact_message"`
}

// ChannelIdentity names the channel ("sms", "whatsapp", ...) and the
// contact's identity on it (a phone number, typically).
type ChannelIdentity struct {
	Channel  string `json:"channel"`
	Identity string `json:"identity"`
}

// ContactMessage carries exactly one of a text or media payload.
type ContactMessage struct {
	TextMessage  *TextMessage  `json:"text_message,omitempty"`
	MediaMessage *MediaMessage `json:"media_message,omitempty"`
}

type TextMessage struct {
	Text string `json:"text"`
}

type MediaMessage struct {
	URL string `json:"url"`
}

// SendRequest is the messages:send payload.
type SendRequest struct {
	AppID     string     `json:"app_id"`
	Recipient Recipient  `json:"recipient"`
	Message   AppMessage `json:"message"`
}

type Recipient struct {
	ContactID string `json:"contact_id"`
}

// AppMessage is the outbound message union. Exactly one variant must be
// populated; Send rejects anything else.
type AppMessage struct {
	TextMessage  *TextMessage  `json:"text_message,omitempty"`
	MediaMessage *MediaMessage `json:"media_message,omitempty"`
}

func (m AppMessage) validate() error {
	if (m.TextMessage == nil) == (m.MediaMessage == nil) {
		return domain.ErrAmbiguousContent
	}
	return nil
}

type SendResponse struct {
	MessageID    string `json:"message_id"`
	AcceptedTime string `json:"accepted_time,omitempty"`
}
