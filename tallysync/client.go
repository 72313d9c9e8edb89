package tallysync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Client is the boundary to the external Tally connector. The coordinator
// only depends on this interface; tests inject fakes.
type Client interface {
	FetchCompany(ctx context.Context, companyGuid string) (tallyCompany, error)
	FetchVendors(ctx context.Context, companyGuid string) ([]tallyParty, error)
	FetchCustomers(ctx context.Context, companyGuid string) ([]tallyParty, error)
	FetchVouchers(ctx context.Context, companyGuid string) ([]tallyVoucher, error)
	FetchTransactions(ctx context.Context, companyGuid string) ([]tallyTransaction, error)
}

type connectorClient struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
}

// NewConnectorClient builds the HTTP client for the desktop Tally connector.
//
// Env:
// - TALLY_CONNECTOR_URL (required)
// - TALLY_CONNECTOR_KEY (required)
// - TALLY_CONNECTOR_KEY_HEADER (default X-API-Key)
func NewConnectorClient() (Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("TALLY_CONNECTOR_URL"))
	if baseURL == "" {
		return nil, errors.New("TALLY_CONNECTOR_URL is not set")
	}
	apiKey := strings.TrimSpace(os.Getenv("TALLY_CONNECTOR_KEY"))
	if apiKey == "" {
		return nil, errors.New("TALLY_CONNECTOR_KEY is not set")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("TALLY_CONNECTOR_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	return &connectorClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *connectorClient) get(ctx context.Context, path string, companyGuid string, dest interface{}) error {
	params := url.Values{}
	params.Set("company_guid", companyGuid)
	endpoint := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tally connector error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, dest)
}

func (c *connectorClient) FetchCompany(ctx context.Context, companyGuid string) (tallyCompany, error) {
	var out struct {
		Company tallyCompany `json:"company"`
	}
	if err := c.get(ctx, "/v1/company", companyGuid, &out); err != nil {
		return tallyCompany{}, err
	}
	return out.Company, nil
}

func (c *connectorClient) FetchVendors(ctx context.Context, companyGuid string) ([]tallyParty, error) {
	var out struct {
		Data []tallyParty `json:"data"`
	}
	if err := c.get(ctx, "/v1/vendors", companyGuid, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *connectorClient) FetchCustomers(ctx context.Context, companyGuid string) ([]tallyParty, error) {
	var out struct {
		Data []tallyParty `json:"data"`
	}
	if err := c.get(ctx, "/v1/customers", companyGuid, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *connectorClient) FetchVouchers(ctx context.Context, companyGuid string) ([]tallyVoucher, error) {
	var out struct {
		Data []tallyVoucher `json:"data"`
	}
	if err := c.get(ctx, "/v1/vouchers", companyGuid, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *connectorClient) FetchTransactions(ctx context.Context, companyGuid string) ([]tallyTransaction, error) {
	var out struct {
		Data []tallyTransaction `json:"data"`
	}
	if err := c.get(ctx, "/v1/transactions", companyGuid, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
