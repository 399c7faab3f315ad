// Package paystack implements the payment-provider verification port against
// the Paystack transaction API. Amounts are in kobo, which matches the
// ledger's minor-unit totals.
package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopcore-ng/commerce-core/internal/reconciliation/domain"
)

const DefaultBaseURL = "https://api.paystack.co"

// searchPageSize and maxSearchPages bound the order-number metadata search so
// a single lookup cannot walk the whole transaction history.
const (
	searchPageSize = 50
	maxSearchPages = 3
)

type Client struct {
	log       *slog.Logger
	http      *http.Client
	baseURL   string
	secretKey string
}

func NewClient(log *slog.Logger, baseURL, secretKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		log:       log,
		http:      &http.Client{Timeout: 15 * time.Second},
		baseURL:   baseURL,
		secretKey: secretKey,
	}
}

type verifyResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    transactionData `json:"data"`
}

type listResponse struct {
	Status bool              `json:"status"`
	Data   []transactionData `json:"data"`
}

type transactionData struct {
	Reference string         `json:"reference"`
	Status    string         `json:"status"`
	Amount    int64          `json:"amount"`
	Currency  string         `json:"currency"`
	Metadata  map[string]any `json:"metadata"`
	PaidAt    *time.Time     `json:"paid_at"`
}

func (c *Client) VerifyByReference(ctx context.Context, reference string) (*domain.ProviderTransaction, error) {
	u := fmt.Sprintf("%s/transaction/verify/%s", c.baseURL, url.PathEscape(reference))

	var out verifyResponse
	status, err := c.get(ctx, u, &out)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", reference, err)
	}
	if status == http.StatusNotFound {
		return nil, domain.ErrTransactionNotFound
	}
	// A status:false body on anything but 200 is an API failure (bad key,
	// rate limit), not evidence the transaction is absent.
	if status != http.StatusOK {
		return nil, fmt.Errorf("verify %s: provider returned %d: %s", reference, status, out.Message)
	}
	if !out.Status {
		return nil, domain.ErrTransactionNotFound
	}
	return toTransaction(out.Data), nil
}

// FindByOrderNumber pages through recent transactions looking for one whose
// metadata carries the order number. Bounded; a miss is a not-found, never an
// error.
func (c *Client) FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.ProviderTransaction, error) {
	for page := 1; page <= maxSearchPages; page++ {
		u := fmt.Sprintf("%s/transaction?perPage=%d&page=%d", c.baseURL, searchPageSize, page)

		var out listResponse
		status, err := c.get(ctx, u, &out)
		if err != nil {
			return nil, fmt.Errorf("search order %s: %w", orderNumber, err)
		}
		if status != http.StatusOK || !out.Status {
			return nil, fmt.Errorf("search order %s: provider returned %d", orderNumber, status)
		}
		for _, tx := range out.Data {
			if metadataString(tx.Metadata, "order_number") == orderNumber {
				return toTransaction(tx), nil
			}
		}
		if len(out.Data) < searchPageSize {
			break
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (c *Client) get(ctx context.Context, u string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func toTransaction(d transactionData) *domain.ProviderTransaction {
	meta := make(map[string]string, len(d.Metadata))
	for k := range d.Metadata {
		if s := metadataString(d.Metadata, k); s != "" {
			meta[k] = s
		}
	}
	return &domain.ProviderTransaction{
		Reference:   d.Reference,
		Status:      domain.ProviderStatus(d.Status),
		AmountCents: d.Amount,
		Currency:    d.Currency,
		Metadata:    meta,
		PaidAt:      d.PaidAt,
	}
}

func metadataString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
