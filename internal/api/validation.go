package api

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jayesh55555/Product-Importer/internal/domain"
)

func validateCreateProduct(req CreateProductRequest) error {
	if strings.TrimSpace(req.SKU) == "" {
		return fmt.Errorf("sku is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

func validateUpdateProduct(req UpdateProductRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if req.Active == nil {
		return fmt.Errorf("active is required")
	}
	return nil
}

func validateCreateWebhook(req CreateWebhookRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("name is required")
	}

	if req.TargetURL == "" {
		return fmt.Errorf("target_url is required")
	}
	if err := validateWebhookURL(req.TargetURL); err != nil {
		return fmt.Errorf("invalid target_url: %w", err)
	}

	if req.EventKind == "" {
		return fmt.Errorf("event_kind is required")
	}
	if !domain.ValidEventKind(domain.EventKind(req.EventKind)) {
		return fmt.Errorf("unknown event_kind %q", req.EventKind)
	}

	return nil
}

func validateWebhookURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
