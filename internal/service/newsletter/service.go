package newsletter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidEmail is returned for addresses that fail format validation.
// No request is issued for them.
var ErrInvalidEmail = errors.New("invalid email address")

// Service relays newsletter signups to the email-marketing API.
type Service struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	listID     string
	validate   *validator.Validate
	logger     *log.Logger
}

// Config holds the marketing API connection settings.
type Config struct {
	Endpoint string
	APIKey   string
	ListID   string
}

// New builds a Service.
func New(cfg Config, logger *log.Logger) *Service {
	return &Service{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		listID:   cfg.ListID,
		validate: validator.New(),
		logger:   logger,
	}
}

// Subscribe validates the address and forwards it to the marketing list.
func (s *Service) Subscribe(ctx context.Context, email string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return ErrInvalidEmail
	}

	body, err := json.Marshal(map[string]string{
		"email":   email,
		"list_id": s.listID,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Klaviyo-API-Key "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("subscribe request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !result.Success {
		if result.Error != "" {
			return fmt.Errorf("subscription rejected: %s", result.Error)
		}
		return fmt.Errorf("subscription rejected: status %d", resp.StatusCode)
	}
	return nil
}
