package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

const defaultRequestTimeout = 5 * time.Second

// availabilityResponse — ответ stock-service о доступности товара.
type availabilityResponse struct {
	ProductID   string `json:"product_id"`
	BranchID    string `json:"branch_id"`
	RequestedQty int32 `json:"requested_qty"`
	Available   bool   `json:"available"`
}

// Client — HTTP-клиент stock-service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *log.Entry
}

// NewClient создаёт клиент stock-service поверх базового URL.
func NewClient(baseURL string, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.WithField("component", "stock-client")
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		baseURL:    baseURL,
		logger:     logger,
	}
}

// CheckAvailability спрашивает stock-service, доступно ли qty единиц товара
// в филиале. Неизвестный товар (404) трактуется как недоступность.
func (c *Client) CheckAvailability(ctx context.Context, productID string, qty int32, branchID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/api/v1/stock/%s/availability", c.baseURL, url.PathEscape(productID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build stock request: %w", err)
	}
	q := req.URL.Query()
	q.Set("quantity", strconv.FormatInt(int64(qty), 10))
	q.Set("branch_id", branchID)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("stock availability request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		// разбираем ниже
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("stock service returned status %d", resp.StatusCode)
	}

	var body availabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode stock response: %w", err)
	}

	c.logger.WithFields(log.Fields{
		"product_id": productID,
		"branch_id":  branchID,
		"quantity":   qty,
		"available":  body.Available,
	}).Debug("stock availability checked")

	return body.Available, nil
}

var _ domain.StockService = (*Client)(nil)
