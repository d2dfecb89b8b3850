package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Yousefa7medmaher/cart-service/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrProductNotFound = errors.New("product not found")

// UpstreamError marks transport failures, non-2xx replies and malformed
// bodies from the product catalog. It is never swallowed or retried here.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ProductCatalog is the read-only view of the remote catalog the cart
// service depends on.
type ProductCatalog interface {
	FetchProduct(ctx context.Context, productID, token string) (domain.ProductSnapshot, error)
	CheckStock(ctx context.Context, productID string, quantity int, token string) (domain.StockCheckResult, error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*envelope]
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[*envelope](gobreaker.Settings{
			Name:    "product-catalog",
			Timeout: 30 * time.Second,
			// A missing product is a valid answer, not a catalog failure.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrProductNotFound)
			},
		}),
	}
}

// envelope covers the response shapes the catalog is known to emit:
// {success, data: <object>}, {success, data: [<object>, ...]} or a bare
// product object. Data is kept raw until the shape is known.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`

	raw []byte
}

// productPayload tolerates the field aliases used across catalog versions.
type productPayload struct {
	ID    string   `json:"_id"`
	AltID string   `json:"id"`
	Title string   `json:"title"`
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Stock int      `json:"stock"`
	Image string   `json:"image"`
	Imgs  []string `json:"images"`
}

// FetchProduct resolves a product to its canonical snapshot. The bearer token
// is passed through unchanged; this client performs no authentication of its
// own.
func (c *Client) FetchProduct(ctx context.Context, productID, token string) (domain.ProductSnapshot, error) {
	env, err := c.breaker.Execute(func() (*envelope, error) {
		return c.get(ctx, productID, token)
	})
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return domain.ProductSnapshot{}, ErrProductNotFound
		}
		var ue *UpstreamError
		if errors.As(err, &ue) {
			return domain.ProductSnapshot{}, err
		}
		return domain.ProductSnapshot{}, &UpstreamError{Op: "fetch", Err: err}
	}

	return normalize(env, productID)
}

// CheckStock reports whether the catalog can cover quantity units of a
// product. A missing product is an unavailable result, not an error; only
// upstream failures surface as errors. The call has no side effects.
func (c *Client) CheckStock(ctx context.Context, productID string, quantity int, token string) (domain.StockCheckResult, error) {
	snap, err := c.FetchProduct(ctx, productID, token)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return domain.StockCheckResult{Available: false, Reason: "product not found"}, nil
		}
		return domain.StockCheckResult{}, err
	}

	if snap.Stock < quantity {
		return domain.StockCheckResult{
			Available: false,
			Snapshot:  &snap,
			Reason:    fmt.Sprintf("insufficient stock: available %d, requested %d", snap.Stock, quantity),
		}, nil
	}

	return domain.StockCheckResult{Available: true, Snapshot: &snap}, nil
}

func (c *Client) get(ctx context.Context, productID, token string) (*envelope, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &UpstreamError{Op: "fetch", Err: err}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrProductNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Op: "fetch", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &UpstreamError{Op: "read", Err: err}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &UpstreamError{Op: "decode", Err: err}
	}
	env.raw = body

	if env.Success != nil && !*env.Success {
		return nil, ErrProductNotFound
	}

	return &env, nil
}

// normalize collapses the catalog's response shapes into one snapshot.
// A collection always resolves to its first element so repeated lookups for
// the same id are deterministic.
func normalize(env *envelope, productID string) (domain.ProductSnapshot, error) {
	payload := bytes.TrimSpace(env.Data)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		// No wrapper: the body itself is the product object.
		payload = bytes.TrimSpace(env.raw)
	}
	if len(payload) == 0 {
		return domain.ProductSnapshot{}, ErrProductNotFound
	}

	var p productPayload
	if payload[0] == '[' {
		var list []productPayload
		if err := json.Unmarshal(payload, &list); err != nil {
			return domain.ProductSnapshot{}, &UpstreamError{Op: "decode", Err: err}
		}
		if len(list) == 0 {
			return domain.ProductSnapshot{}, ErrProductNotFound
		}
		p = list[0]
	} else {
		if err := json.Unmarshal(payload, &p); err != nil {
			return domain.ProductSnapshot{}, &UpstreamError{Op: "decode", Err: err}
		}
	}

	snap := domain.ProductSnapshot{
		ProductID:   p.ID,
		Price:       p.Price,
		Stock:       p.Stock,
		DisplayName: p.Title,
		ImageRef:    p.Image,
	}
	if snap.ProductID == "" {
		snap.ProductID = p.AltID
	}
	if snap.ProductID == "" {
		snap.ProductID = productID
	}
	if snap.DisplayName == "" {
		snap.DisplayName = p.Name
	}
	if snap.ImageRef == "" && len(p.Imgs) > 0 {
		snap.ImageRef = p.Imgs[0]
	}

	return snap, nil
}
