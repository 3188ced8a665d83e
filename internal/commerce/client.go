package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crystal-bloomery/internal/domain"
)

// Client talks to the commerce platform's storefront cart API. Every
// mutation is a single round trip; there are no retries. Failures are
// classified so callers can tell a dead cart id apart from everything else.
type Client struct {
	httpClient   *http.Client
	endpoint     string
	token        string
	checkoutHost string
	logger       *log.Logger
}

// Config holds the connection settings for the storefront API.
type Config struct {
	Endpoint     string
	Token        string
	CheckoutHost string
}

// New builds a Client with a bounded request timeout.
func New(cfg Config, logger *log.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		endpoint:     cfg.Endpoint,
		token:        cfg.Token,
		checkoutHost: cfg.CheckoutHost,
		logger:       logger,
	}
}

// CartCreated is the result of a successful cart creation.
type CartCreated struct {
	CartID      string
	CheckoutURL string
	LineID      string
}

// RemoteCart is the reconciliation view of a server-side cart.
type RemoteCart struct {
	Exists        bool
	TotalQuantity int
}

const createCartMutation = `
mutation cartCreate($input: CartInput!) {
  cartCreate(input: $input) {
    cart {
      id
      checkoutUrl
      lines(first: 50) {
        edges { node { id merchandise { ... on ProductVariant { id } } } }
      }
    }
    userErrors { code field message }
  }
}`

const addLinesMutation = `
mutation cartLinesAdd($cartId: ID!, $lines: [CartLineInput!]!) {
  cartLinesAdd(cartId: $cartId, lines: $lines) {
    cart {
      id
      lines(first: 50) {
        edges { node { id merchandise { ... on ProductVariant { id } } } }
      }
    }
    userErrors { code field message }
  }
}`

const updateLinesMutation = `
mutation cartLinesUpdate($cartId: ID!, $lines: [CartLineUpdateInput!]!) {
  cartLinesUpdate(cartId: $cartId, lines: $lines) {
    cart { id }
    userErrors { code field message }
  }
}`

const removeLinesMutation = `
mutation cartLinesRemove($cartId: ID!, $lineIds: [ID!]!) {
  cartLinesRemove(cartId: $cartId, lineIds: $lineIds) {
    cart { id }
    userErrors { code field message }
  }
}`

const cartQuery = `
query cart($id: ID!) {
  cart(id: $id) { id totalQuantity }
}`

// CreateCart creates a remote cart seeded with one line. The returned
// checkout URL is already normalized onto the storefront checkout host.
func (c *Client) CreateCart(ctx context.Context, variantID string, quantity int) (CartCreated, error) {
	vars := map[string]interface{}{
		"input": map[string]interface{}{
			"lines": []map[string]interface{}{
				{"merchandiseId": variantID, "quantity": quantity},
			},
		},
	}
	var out struct {
		CartCreate struct {
			Cart       *cartPayload `json:"cart"`
			UserErrors []userError  `json:"userErrors"`
		} `json:"cartCreate"`
	}
	if err := c.do(ctx, createCartMutation, vars, &out); err != nil {
		return CartCreated{}, err
	}
	if err := classifyUserErrors(out.CartCreate.UserErrors); err != nil {
		return CartCreated{}, err
	}
	if out.CartCreate.Cart == nil {
		return CartCreated{}, fmt.Errorf("cart create returned no cart")
	}
	return CartCreated{
		CartID:      out.CartCreate.Cart.ID,
		CheckoutURL: c.normalizeCheckoutURL(out.CartCreate.Cart.CheckoutURL),
		LineID:      out.CartCreate.Cart.lineIDForVariant(variantID),
	}, nil
}

// AddLine adds a new line to an existing cart and returns the server-assigned
// line id. The id may be empty when the response does not include the
// matching line; the cart mutation itself still succeeded.
func (c *Client) AddLine(ctx context.Context, cartID, variantID string, quantity int) (string, error) {
	vars := map[string]interface{}{
		"cartId": cartID,
		"lines": []map[string]interface{}{
			{"merchandiseId": variantID, "quantity": quantity},
		},
	}
	var out struct {
		CartLinesAdd struct {
			Cart       *cartPayload `json:"cart"`
			UserErrors []userError  `json:"userErrors"`
		} `json:"cartLinesAdd"`
	}
	if err := c.do(ctx, addLinesMutation, vars, &out); err != nil {
		return "", err
	}
	if err := classifyUserErrors(out.CartLinesAdd.UserErrors); err != nil {
		return "", err
	}
	if out.CartLinesAdd.Cart == nil {
		return "", domain.ErrCartNotFound
	}
	return out.CartLinesAdd.Cart.lineIDForVariant(variantID), nil
}

// UpdateLineQuantity sets an existing line to the given quantity.
func (c *Client) UpdateLineQuantity(ctx context.Context, cartID, lineID string, quantity int) error {
	vars := map[string]interface{}{
		"cartId": cartID,
		"lines": []map[string]interface{}{
			{"id": lineID, "quantity": quantity},
		},
	}
	var out struct {
		CartLinesUpdate struct {
			Cart       *cartPayload `json:"cart"`
			UserErrors []userError  `json:"userErrors"`
		} `json:"cartLinesUpdate"`
	}
	if err := c.do(ctx, updateLinesMutation, vars, &out); err != nil {
		return err
	}
	if err := classifyUserErrors(out.CartLinesUpdate.UserErrors); err != nil {
		return err
	}
	if out.CartLinesUpdate.Cart == nil {
		return domain.ErrCartNotFound
	}
	return nil
}

// RemoveLine deletes a line from the cart.
func (c *Client) RemoveLine(ctx context.Context, cartID, lineID string) error {
	vars := map[string]interface{}{
		"cartId":  cartID,
		"lineIds": []string{lineID},
	}
	var out struct {
		CartLinesRemove struct {
			Cart       *cartPayload `json:"cart"`
			UserErrors []userError  `json:"userErrors"`
		} `json:"cartLinesRemove"`
	}
	if err := c.do(ctx, removeLinesMutation, vars, &out); err != nil {
		return err
	}
	if err := classifyUserErrors(out.CartLinesRemove.UserErrors); err != nil {
		return err
	}
	if out.CartLinesRemove.Cart == nil {
		return domain.ErrCartNotFound
	}
	return nil
}

// FetchCart reads the cart's current total quantity. A missing cart is not
// an error: Exists is false and the caller decides what to do.
func (c *Client) FetchCart(ctx context.Context, cartID string) (RemoteCart, error) {
	vars := map[string]interface{}{"id": cartID}
	var out struct {
		Cart *struct {
			ID            string `json:"id"`
			TotalQuantity int    `json:"totalQuantity"`
		} `json:"cart"`
	}
	if err := c.do(ctx, cartQuery, vars, &out); err != nil {
		return RemoteCart{}, err
	}
	if out.Cart == nil {
		return RemoteCart{Exists: false}, nil
	}
	return RemoteCart{Exists: true, TotalQuantity: out.Cart.TotalQuantity}, nil
}

type cartPayload struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkoutUrl"`
	Lines       struct {
		Edges []struct {
			Node struct {
				ID          string `json:"id"`
				Merchandise struct {
					ID string `json:"id"`
				} `json:"merchandise"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"lines"`
}

func (p *cartPayload) lineIDForVariant(variantID string) string {
	for _, edge := range p.Lines.Edges {
		if edge.Node.Merchandise.ID == variantID {
			return edge.Node.ID
		}
	}
	return ""
}

type userError struct {
	Code    string   `json:"code"`
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type graphQLError struct {
	Message string `json:"message"`
}

func classifyUserErrors(errs []userError) error {
	if len(errs) == 0 {
		return nil
	}
	for _, e := range errs {
		if isCartMissing(e.Code, e.Message) {
			return domain.ErrCartNotFound
		}
	}
	return fmt.Errorf("cart api user error: %s", errs[0].Message)
}

func isCartMissing(code, message string) bool {
	if strings.EqualFold(code, "INVALID_CART") {
		return true
	}
	msg := strings.ToLower(message)
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found")
}

// normalizeCheckoutURL rewrites the platform-issued checkout URL onto the
// storefront's public checkout host, keeping path and query intact.
func (c *Client) normalizeCheckoutURL(raw string) string {
	if raw == "" || c.checkoutHost == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		c.logger.Printf("unparsable checkout url %q: %v", raw, err)
		return raw
	}
	u.Host = c.checkoutHost
	return u.String()
}

func (c *Client) do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Storefront-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cart api request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cart api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		for _, e := range envelope.Errors {
			if isCartMissing("", e.Message) {
				return domain.ErrCartNotFound
			}
		}
		return fmt.Errorf("cart api error: %s", envelope.Errors[0].Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
