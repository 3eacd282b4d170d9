package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"frontbridge/internal/dispatch"
	"frontbridge/internal/front"
	"frontbridge/internal/metrics"
	"frontbridge/internal/relay"
	"frontbridge/internal/sinch"
	"frontbridge/internal/translate"

	"github.com/google/uuid"
)

// handleSinchInbound receives Sinch conversation events. Translation
// problems are the caller's fault and get a 400; everything after
// translation is fire-and-forget, so Sinch always gets its 200 ack and
// never waits on Front.
func (s *Server) handleSinchInbound(w http.ResponseWriter, r *http.Request) {
	var ev sinch.InboundEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		metrics.InboundWebhooks.WithLabelValues("sinch", "rejected").Inc()
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if ev.Message == nil {
		// Delivery receipts and other non-message events: ack and ignore.
		metrics.InboundWebhooks.WithLabelValues("sinch", "ignored").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	msg, err := translate.SinchToFront(*ev.Message)
	if err != nil {
		metrics.InboundWebhooks.WithLabelValues("sinch", "rejected").Inc()
		s.logger.Warn("sinch event rejected", "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	metrics.InboundWebhooks.WithLabelValues("sinch", "accepted").Inc()
	s.logger.Info("sinch message received",
		"conversation_id", ev.Message.ConversationID,
		"message_id", ev.Message.ID,
		"media", msg.Attachment != nil,
	)

	s.dispatcher.Publish(dispatch.Task{
		Name: "front-send",
		Run: func(ctx context.Context) error {
			return s.deliverToFront(ctx, msg)
		},
	})

	w.WriteHeader(http.StatusOK)
}

// deliverToFront runs on the dispatcher, after the webhook has already
// been acked.
func (s *Server) deliverToFront(ctx context.Context, msg front.InboundMessage) error {
	if msg.Attachment == nil {
		if err := s.frontAPI.SendText(ctx, msg); err != nil {
			metrics.UpstreamSends.WithLabelValues("front", "error").Inc()
			return err
		}
		metrics.UpstreamSends.WithLabelValues("front", "ok").Inc()
		return nil
	}

	att, err := s.relay.Relay(ctx, msg.Attachment.SourceURL, msg.Attachment.Filename, relay.DirectionSinchToFront)
	if err != nil {
		return err
	}

	file, err := s.media.Open(att.Filename)
	if err != nil {
		return fmt.Errorf("open stored attachment: %w", err)
	}
	defer file.Close()

	if err := s.frontAPI.SendAttachment(ctx, msg, att.Filename, file); err != nil {
		metrics.UpstreamSends.WithLabelValues("front", "error").Inc()
		return err
	}
	metrics.UpstreamSends.WithLabelValues("front", "ok").Inc()
	return nil
}

// ackResponse is the JSON body returned to Front for both outcomes.
type ackResponse struct {
	Type                   string `json:"type"`
	ExternalConversationID string `json:"external_conversation_id,omitempty"`
	ExternalID             string `json:"external_id,omitempty"`
	Message                string `json:"message,omitempty"`
}

// handleFrontInbound receives agent replies from Front and delivers them
// to Sinch synchronously, so the ack can carry the id the channel
// assigned to the sent message.
func (s *Server) handleFrontInbound(w http.ResponseWriter, r *http.Request) {
	var req front.OutboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.InboundWebhooks.WithLabelValues("front", "rejected").Inc()
		writeJSON(w, http.StatusBadRequest, ackResponse{Type: "error", Message: "invalid JSON"})
		return
	}

	send, err := translate.FrontToSinch(req)
	if err != nil {
		metrics.InboundWebhooks.WithLabelValues("front", "rejected").Inc()
		s.logger.Warn("front request rejected", "err", err)
		writeJSON(w, http.StatusBadRequest, ackResponse{Type: "error", Message: err.Error()})
		return
	}

	metrics.InboundWebhooks.WithLabelValues("front", "accepted").Inc()
	s.logger.Info("front message received",
		"in_reply_to", send.InReplyTo,
		"recipients", len(send.Recipients),
		"media", send.IsMedia(),
	)

	var externalID string
	if send.IsMedia() {
		externalID, err = s.sendMediaToSinch(r.Context(), send)
	} else {
		externalID, err = s.sendToRecipients(r.Context(), send, translate.NewSinchText(send.Text))
	}
	if err != nil {
		s.logger.Error("sinch delivery failed", "in_reply_to", send.InReplyTo, "err", err)
		writeJSON(w, http.StatusBadGateway, ackResponse{Type: "error", Message: "upstream send failed"})
		return
	}

	writeJSON(w, http.StatusOK, ackResponse{
		Type:                   "success",
		ExternalConversationID: send.InReplyTo,
		ExternalID:             externalID,
	})
}

// sendToRecipients tries each recipient in order and returns the message
// id of the first successful send. Per-recipient failures are logged and
// the next recipient is tried.
func (s *Server) sendToRecipients(ctx context.Context, send translate.ChannelSend, msg sinch.AppMessage) (string, error) {
	var lastErr error
	for _, rc := range send.Recipients {
		id, err := s.sinchAPI.Send(ctx, rc.Handle, msg)
		if err != nil {
			metrics.UpstreamSends.WithLabelValues("sinch", "error").Inc()
			s.logger.Error("sinch send failed", "handle", rc.Handle, "err", err)
			lastErr = err
			continue
		}
		metrics.UpstreamSends.WithLabelValues("sinch", "ok").Inc()
		return id, nil
	}
	return "", lastErr
}

// sendMediaToSinch relays every attachment into the local store and
// sends each one's public URL to the recipients. The fan-out has no
// single Sinch message id, so a generated one correlates the batch.
func (s *Server) sendMediaToSinch(ctx context.Context, send translate.ChannelSend) (string, error) {
	for _, att := range send.Attachments {
		relayed, err := s.relay.Relay(ctx, att.URL, att.Filename, relay.DirectionFrontToSinch)
		if err != nil {
			return "", err
		}
		if _, err := s.sendToRecipients(ctx, send, translate.NewSinchMedia(relayed.URL)); err != nil {
			return "", err
		}
	}
	return uuid.NewString(), nil
}

// handleImage serves previously relayed attachment bytes.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	file, err := s.media.Open(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, id, info.ModTime(), file)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
