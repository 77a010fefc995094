package sms

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// TwilioClient sends verification codes through the Twilio Messages API.
type TwilioClient struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

// NewTwilioClient returns a Twilio-backed Sender.
func NewTwilioClient(accountSID, authToken, from string) *TwilioClient {
	return &TwilioClient{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    twilioBaseURL,
		client:     &http.Client{Timeout: defaultTimeout},
	}
}

// SendCode sends the code as a text message to +phone.
func (c *TwilioClient) SendCode(ctx context.Context, phone, code string) error {
	form := url.Values{
		"To":   {"+" + strings.TrimPrefix(phone, "+")},
		"From": {c.from},
		"Body": {fmt.Sprintf("Your BikeCare verification code is %s. It expires in 5 minutes.", code)},
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("sms: build twilio request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return deliver(c.client, "twilio", req)
}
