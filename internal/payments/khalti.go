package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

var pidxPattern = regexp.MustCompile(`^[A-Za-z0-9]{22}$`)

type KhaltiAdapter struct {
	SecretKey    string
	ReturnURL    string
	WebsiteURL   string
	IsProduction bool
	httpClient   *http.Client
	baseURL      string
}

func NewKhaltiAdapter(secret, returnURL, websiteURL string, isProd bool) *KhaltiAdapter {
	return &KhaltiAdapter{
		SecretKey:    secret,
		ReturnURL:    returnURL,
		WebsiteURL:   websiteURL,
		IsProduction: isProd,
		httpClient:   http.DefaultClient,
	}
}

func (k *KhaltiAdapter) Name() string { return "khalti" }

// ValidReference checks the pidx shape.
func (k *KhaltiAdapter) ValidReference(ref string) bool {
	return pidxPattern.MatchString(ref)
}

func (k *KhaltiAdapter) base() string {
	if k.baseURL != "" {
		return k.baseURL
	}
	if k.IsProduction {
		return "https://khalti.com/api/v2/epayment"
	}
	return "https://dev.khalti.com/api/v2/epayment"
}

func (k *KhaltiAdapter) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, k.base()+path, bytes.NewBuffer(body))
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("Authorization", "key "+k.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := k.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("khalti %s request: %w", strings.Trim(path, "/"), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("khalti %s read: %w", strings.Trim(path, "/"), err)
	}
	return resp.StatusCode, raw, nil
}

// Initiate opens a Khalti payment session. The tenant id travels in
// merchant_extra so Lookup can report ownership.
func (k *KhaltiAdapter) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	payload := map[string]any{
		"return_url":          k.ReturnURL,
		"website_url":         k.WebsiteURL,
		"amount":              req.AmountCents, // paisa
		"purchase_order_id":   req.TransactionID,
		"purchase_order_name": req.ProductName,
		"merchant_extra":      strconv.FormatInt(req.TenantID, 10),
		"customer_info": map[string]string{
			"name":  req.CustomerName,
			"email": req.CustomerEmail,
			"phone": req.CustomerPhone,
		},
	}

	status, raw, err := k.post(ctx, "/initiate/", payload)
	if err != nil {
		return InitiateResult{}, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return InitiateResult{}, &StatusError{Provider: k.Name(), Code: status, Body: string(raw)}
	}

	var res struct {
		Pidx       string `json:"pidx"`
		PaymentURL string `json:"payment_url"`
		ExpiresAt  string `json:"expires_at"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return InitiateResult{}, fmt.Errorf("khalti initiate decode: %w body=%s", err, string(raw))
	}

	return InitiateResult{
		ReferenceID: res.Pidx,
		PaymentURL:  res.PaymentURL,
		Data: map[string]string{
			"pidx":       res.Pidx,
			"expires_at": res.ExpiresAt,
		},
	}, nil
}

func normalizeKhaltiStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed":
		return ProviderStatusCompleted
	case "pending", "initiated":
		return ProviderStatusPending
	case "refunded", "partially refunded":
		return ProviderStatusRefunded
	case "expired":
		return ProviderStatusExpired
	case "user canceled":
		return ProviderStatusCanceled
	default:
		return strings.ToLower(strings.TrimSpace(s))
	}
}

func (k *KhaltiAdapter) Lookup(ctx context.Context, pidx string) (*LookupResult, error) {
	status, raw, err := k.post(ctx, "/lookup/", map[string]string{"pidx": pidx})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrReferenceNotFound
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return nil, &StatusError{Provider: k.Name(), Code: status, Body: string(raw)}
	}

	// Khalti answers 400 for expired and canceled payments with a normal body,
	// so any other status is decoded.
	var res struct {
		Pidx          string `json:"pidx"`
		TotalAmount   int64  `json:"total_amount"`
		Status        string `json:"status"`
		TransactionID any    `json:"transaction_id"`
		MerchantExtra string `json:"merchant_extra"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("khalti lookup decode: http=%d err=%w body=%s", status, err, string(raw))
	}
	if res.Status == "" {
		return nil, &StatusError{Provider: k.Name(), Code: status, Body: string(raw)}
	}

	tenantID, _ := strconv.ParseInt(strings.TrimSpace(res.MerchantExtra), 10, 64)
	return &LookupResult{
		ReferenceID: pidx,
		Status:      normalizeKhaltiStatus(res.Status),
		AmountCents: res.TotalAmount,
		Currency:    "NPR",
		TenantID:    tenantID,
		Raw: map[string]any{
			"http_status": status,
			"body":        json.RawMessage(raw),
		},
	}, nil
}
