// Package translate maps messages between the Sinch Conversation API wire
// format and Front's channel API wire format. Everything here is a pure
// function; downloads and sends belong to the relay and the clients.
package translate

import (
	"net/url"
	"path"
	"strings"

	"frontbridge/internal/domain"
	"frontbridge/internal/front"
	"frontbridge/internal/sinch"
)

// mediaBody is the inbox body text used for media messages, which carry
// their content as an attachment rather than as text.
const mediaBody = "Here is an image"

var allowedMediaTypes = []string{"png", "jpg", "jpeg"}

// SinchToFront converts an inbound Sinch conversation message into the
// payload Front's inbound-message endpoint expects. The sender name is
// derived as "{channel}-{identity}" and the Sinch conversation and
// message ids travel in the metadata so replies can be threaded back.
func SinchToFront(msg sinch.EventMessage) (front.InboundMessage, error) {
	var out front.InboundMessage

	switch {
	case msg.ID == "":
		return out, &domain.MissingFieldError{Field: "message.id"}
	case msg.ContactID == "":
		return out, &domain.MissingFieldError{Field: "message.contact_id"}
	case msg.ConversationID == "":
		return out, &domain.MissingFieldError{Field: "message.conversation_id"}
	case msg.ChannelIdentity.Channel == "":
		return out, &domain.MissingFieldError{Field: "message.channel_identity.channel"}
	case msg.ChannelIdentity.Identity == "":
		return out, &domain.MissingFieldError{Field: "message.channel_identity.identity"}
	}

	out = front.InboundMessage{
		Sender: front.Sender{
			Name:   msg.ChannelIdentity.Channel + "-" + msg.ChannelIdentity.Identity,
			Handle: msg.ContactID,
		},
		Metadata: front.Metadata{
			ExternalConversationID: msg.ConversationID,
			ExternalID:             msg.ID,
		},
	}

	text := msg.ContactMessage.TextMessage
	media := msg.ContactMessage.MediaMessage
	switch {
	case text != nil && media != nil, text == nil && media == nil:
		return front.InboundMessage{}, domain.ErrAmbiguousContent
	case text != nil:
		if text.Text == "" {
			return front.InboundMessage{}, &domain.MissingFieldError{Field: "message.contact_message.text_message.text"}
		}
		out.Body = text.Text
	default:
		if media.URL == "" {
			return front.InboundMessage{}, &domain.MissingFieldError{Field: "message.contact_message.media_message.url"}
		}
		ext, err := MediaType(media.URL)
		if err != nil {
			return front.InboundMessage{}, err
		}
		out.Body = mediaBody
		out.Attachment = &front.AttachmentRef{
			SourceURL: media.URL,
			Filename:  "image." + ext,
		}
	}

	return out, nil
}

// ChannelSend is the translated form of a Front outbound request: the
// recipients to deliver to and exactly one of a text or media payload.
type ChannelSend struct {
	Recipients  []front.Recipient
	InReplyTo   string
	Text        string             // text variant
	Attachments []front.Attachment // media variant
}

// IsMedia reports whether the send carries attachments.
func (s ChannelSend) IsMedia() bool { return len(s.Attachments) > 0 }

// FrontToSinch converts a Front outbound request into a ChannelSend.
// Recipients are filtered to role "to" here; callers never see the
// others. A request with both text and attachments, or neither, is
// rejected rather than half-forwarded.
func FrontToSinch(req front.OutboundRequest) (ChannelSend, error) {
	recipients := FilterRecipients(req.Recipients)
	if len(recipients) == 0 {
		return ChannelSend{}, domain.ErrNoRecipients
	}
	if req.Metadata.Headers.InReplyTo == "" {
		return ChannelSend{}, &domain.MissingFieldError{Field: "metadata.headers.in_reply_to"}
	}

	text := strings.TrimSpace(req.Text)
	switch {
	case text != "" && len(req.Attachments) > 0, text == "" && len(req.Attachments) == 0:
		return ChannelSend{}, domain.ErrAmbiguousContent
	case len(req.Attachments) > 0:
		return ChannelSend{
			Recipients:  recipients,
			InReplyTo:   req.Metadata.Headers.InReplyTo,
			Attachments: req.Attachments,
		}, nil
	default:
		return ChannelSend{
			Recipients: recipients,
			InReplyTo:  req.Metadata.Headers.InReplyTo,
			Text:       text,
		}, nil
	}
}

// FilterRecipients keeps only the role="to" participants. Filtering an
// already-filtered list returns it unchanged.
func FilterRecipients(recipients []front.Recipient) []front.Recipient {
	out := make([]front.Recipient, 0, len(recipients))
	for _, r := range recipients {
		if r.Role == "to" {
			out = append(out, r)
		}
	}
	return out
}

// NewSinchText builds the text variant of a Sinch app message.
func NewSinchText(text string) sinch.AppMessage {
	return sinch.AppMessage{TextMessage: &sinch.TextMessage{Text: strings.TrimSpace(text)}}
}

// NewSinchMedia builds the media variant of a Sinch app message.
func NewSinchMedia(url string) sinch.AppMessage {
	return sinch.AppMessage{MediaMessage: &sinch.MediaMessage{URL: url}}
}

// MediaType returns the accepted media extension of a URL, or
// ErrUnsupportedMediaType for anything outside the allow-list.
func MediaType(mediaURL string) (string, error) {
	p := mediaURL
	if u, err := url.Parse(mediaURL); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	for _, allowed := range allowedMediaTypes {
		if ext == allowed {
			return ext, nil
		}
	}
	return "", domain.ErrUnsupportedMediaType
}
