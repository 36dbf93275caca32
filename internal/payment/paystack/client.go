package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/techfussion/bts/internal/payment"
)

const DefaultBaseURL = "https://api.paystack.co"

type Client struct {
	baseURL     string
	secretKey   string
	callbackURL string
	http        *http.Client
}

func NewClient(baseURL, secretKey, callbackURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		secretKey:   secretKey,
		callbackURL: callbackURL,
		http:        &http.Client{Timeout: timeout},
	}
}

// envelope is the common shape of every Paystack response.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	GatewayResponse string `json:"gateway_response"`
}

func (c *Client) Initialize(ctx context.Context, email string, amountMinor int64, reference string) (*payment.Authorization, error) {
	body, err := json.Marshal(initializeRequest{
		Email:       email,
		Amount:      amountMinor,
		Reference:   reference,
		CallbackURL: c.callbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode initialize request: %w", err)
	}

	env, err := c.do(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}
	if !env.Status {
		return nil, fmt.Errorf("%w: %s", payment.ErrGatewayRejected, env.Message)
	}

	var data initializeData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: bad initialize payload: %v", payment.ErrGatewayRejected, err)
	}
	if data.AuthorizationURL == "" {
		return nil, fmt.Errorf("%w: missing authorization url", payment.ErrGatewayRejected)
	}

	return &payment.Authorization{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

// Verify reports a declined or unknown transaction as an unsuccessful Verification, not an error.
func (c *Client) Verify(ctx context.Context, reference string) (*payment.Verification, error) {
	env, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}

	v := &payment.Verification{Reference: reference, Message: env.Message}
	if !env.Status {
		return v, nil
	}

	var data verifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: bad verify payload: %v", payment.ErrGatewayUnavailable, err)
	}

	v.Status = data.Status
	v.AmountMinor = data.Amount
	v.Success = data.Status == "success"
	if data.GatewayResponse != "" {
		v.Message = data.GatewayResponse
	}
	return v, nil
}

// do returns ErrGatewayUnavailable for transport errors and undecodable bodies.
// Only 2xx with status=true and 400/404 with status=false pass through; Paystack
// answers a rejected request or an unknown reference with the latter.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	declined := resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound
	if !declined && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		return nil, fmt.Errorf("%w: status %d", payment.ErrGatewayUnavailable, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", payment.ErrGatewayUnavailable, err)
	}
	if env.Status == declined {
		return nil, fmt.Errorf("%w: status %d with status=%t", payment.ErrGatewayUnavailable, resp.StatusCode, env.Status)
	}

	return &env, nil
}
