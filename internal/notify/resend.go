package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/songon-extension/access-server/internal/config"
)

const resendEndpoint = "https://api.resend.com/emails"

type ResendSender struct {
	client   *http.Client
	endpoint string
	apiKey   string
	from     string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: &http.Client{
			Timeout: config.DeliveryTimeout,
		},
		endpoint: resendEndpoint,
		apiKey:   apiKey,
		from:     from,
	}
}

type resendAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type resendRequest struct {
	From        string             `json:"from"`
	To          []string           `json:"to"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html"`
	Attachments []resendAttachment `json:"attachments,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

func (s *ResendSender) Send(ctx context.Context, email Email) error {
	payload := resendRequest{
		From:    s.from,
		To:      []string{email.To},
		Subject: email.Subject,
		HTML:    email.HTML,
	}
	for _, a := range email.Attachments {
		payload.Attachments = append(payload.Attachments, resendAttachment{
			Filename: a.Filename,
			Content:  base64.StdEncoding.EncodeToString(a.Content),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Dur("elapsed", elapsed).
			Msg("resend request error")
		return fmt.Errorf("resend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Error().
			Int("status", resp.StatusCode).
			Str("response", string(detail)).
			Dur("elapsed", elapsed).
			Msg("resend rejected email")
		return fmt.Errorf("resend failed with status %d", resp.StatusCode)
	}

	var out resendResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)

	log.Info().
		Str("email_id", out.ID).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("email sent via resend")

	return nil
}
