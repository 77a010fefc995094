package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

const smsLocalDefaultURL = "https://app.smslocal.in/api/smsapi"

// ErrMissingAPIKey is returned by SMSLocalClient when no API key is configured.
var ErrMissingAPIKey = errors.New("sms: smslocal API key not configured")

type smsLocalMessage struct {
	Route     string `json:"route"`
	Numbers   string `json:"numbers"`
	Variables string `json:"variables"`
	SenderID  string `json:"sender_id,omitempty"`
}

// SMSLocalClient delivers codes through the SMS Local OTP route.
type SMSLocalClient struct {
	apiKey   string
	endpoint string
	sender   string
	client   *http.Client
}

// NewSMSLocalClient returns an SMS Local sender. An empty endpoint selects the public API.
func NewSMSLocalClient(apiKey, endpoint, sender string) *SMSLocalClient {
	if endpoint == "" {
		endpoint = smsLocalDefaultURL
	}
	return &SMSLocalClient{
		apiKey:   apiKey,
		endpoint: endpoint,
		sender:   sender,
		client:   &http.Client{Timeout: defaultTimeout},
	}
}

// SendCode posts code for phone as an OTP-route message.
func (c *SMSLocalClient) SendCode(ctx context.Context, phone, code string) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	payload, err := json.Marshal(smsLocalMessage{Route: "otp", Numbers: phone, Variables: code, SenderID: c.sender})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return deliver(c.client, "smslocal", req)
}
