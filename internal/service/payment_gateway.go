package service

import (
	"context"
	"course_connect_backend/internal/config"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// InitiateRequest 发起支付的请求体
type InitiateRequest struct {
	Amount      int    `json:"amount"`
	Email       string `json:"email,omitempty"`
	UserID      string `json:"userId"`
	ExternalID  string `json:"externalId"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	Message     string `json:"message,omitempty"`
}

type InitiateResponse struct {
	Message       string `json:"message"`
	Link          string `json:"link"`
	TransID       string `json:"transId"`
	DateInitiated string `json:"dateInitiated"`
}

// GatewayStatus 网关返回的交易状态，Raw 保存原始报文写入支付历史
type GatewayStatus struct {
	TransID    string          `json:"transId"`
	Status     string          `json:"status"`
	ExternalID string          `json:"externalId"`
	Amount     float64         `json:"amount"`
	Raw        json.RawMessage `json:"-"`
}

// PaymentGateway 支付网关
type PaymentGateway interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)
	CheckStatus(ctx context.Context, transID string) (*GatewayStatus, error)
}

// HTTPPaymentGateway 基于 resty 的网关客户端
type HTTPPaymentGateway struct {
	Client *resty.Client
}

func NewHTTPPaymentGateway(cfg config.PaymentConfig) *HTTPPaymentGateway {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("apiuser", cfg.APIUser).
		SetHeader("apikey", cfg.APIKey).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)

	return &HTTPPaymentGateway{Client: client}
}

type gatewayError struct {
	Message string `json:"message"`
}

func (g *HTTPPaymentGateway) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	var out InitiateResponse
	var failure gatewayError

	resp, err := g.Client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&failure).
		Post("/initiate-pay")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gateway initiate failed (%d): %s", resp.StatusCode(), failure.Message)
	}
	return &out, nil
}

func (g *HTTPPaymentGateway) CheckStatus(ctx context.Context, transID string) (*GatewayStatus, error) {
	var failure gatewayError

	resp, err := g.Client.R().
		SetContext(ctx).
		SetPathParam("transId", transID).
		SetError(&failure).
		Get("/payment-status/{transId}")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gateway status failed (%d): %s", resp.StatusCode(), failure.Message)
	}

	var status GatewayStatus
	if err := json.Unmarshal(resp.Body(), &status); err != nil {
		return nil, err
	}
	status.Raw = json.RawMessage(resp.Body())
	return &status, nil
}
