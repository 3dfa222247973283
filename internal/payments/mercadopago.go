package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// MercadoPago talks to the hosted-checkout API. All calls carry the bearer
// access token and run under the configured bounded timeout.
type MercadoPago struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

func NewMercadoPago(baseURL, accessToken string, timeout time.Duration) *MercadoPago {
	return &MercadoPago{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type preferenceItem struct {
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type preferenceBody struct {
	Items             []preferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference"`
	NotificationURL   string           `json:"notification_url,omitempty"`
}

type preferenceResponse struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

func (mp *MercadoPago) CreatePreference(ctx context.Context, req PreferenceRequest) (Preference, error) {
	unitPrice, _ := req.Total.Float64()
	body, err := json.Marshal(preferenceBody{
		Items: []preferenceItem{
			{Title: req.Title, Quantity: 1, UnitPrice: unitPrice},
		},
		ExternalReference: req.ExternalReference,
		NotificationURL:   req.NotificationURL,
	})
	if err != nil {
		return Preference{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, mp.baseURL+"/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return Preference{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+mp.accessToken)

	resp, err := mp.httpClient.Do(httpReq)
	if err != nil {
		return Preference{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return Preference{}, fmt.Errorf("payment gateway status %d", resp.StatusCode)
	}

	var decoded preferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Preference{}, err
	}
	return Preference{ID: decoded.ID, RedirectURL: decoded.InitPoint}, nil
}

type paymentResponse struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
}

func (mp *MercadoPago) GetPayment(ctx context.Context, providerPaymentID string) (PaymentInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, mp.baseURL+"/v1/payments/"+providerPaymentID, nil)
	if err != nil {
		return PaymentInfo{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+mp.accessToken)

	resp, err := mp.httpClient.Do(httpReq)
	if err != nil {
		return PaymentInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PaymentInfo{}, fmt.Errorf("payment gateway status %d", resp.StatusCode)
	}

	var decoded paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return PaymentInfo{}, err
	}
	return PaymentInfo{
		ID:                decoded.ID.String(),
		Status:            decoded.Status,
		ExternalReference: decoded.ExternalReference,
	}, nil
}
