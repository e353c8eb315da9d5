package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/drstein77/hostfront/internal/models"
)

// DefaultAgreementKeys are shown on the legal page when no keys are asked for.
var DefaultAgreementKeys = []string{"UNIVERSAL_TOS", "DNRA", "HOSTING_SA", "PRIVACY"}

// Agreements fetches legal agreements by key. Vendor HTML is sanitized.
func (s *Service) Agreements(ctx context.Context, keys []string, market string) Result[[]models.Agreement] {
	keys = normalizeKeys(keys)
	if len(keys) == 0 {
		keys = DefaultAgreementKeys
	}

	vendor, err := s.up.Agreements(ctx, keys, market)
	if err != nil {
		s.log.Warn("agreements unavailable, serving fallback", zap.Strings("keys", keys), zap.Error(err))
		return Result[[]models.Agreement]{Data: s.fallbackAgreements(keys), Fallback: true, Err: err}
	}

	out := make([]models.Agreement, 0, len(vendor))
	for _, a := range vendor {
		out = append(out, models.Agreement{
			Key:     a.AgreementKey,
			Title:   strings.TrimSpace(a.Title),
			URL:     a.URL,
			Content: s.policy.Sanitize(a.Content),
		})
	}
	return Result[[]models.Agreement]{Data: out}
}

func (s *Service) fallbackAgreements(keys []string) []models.Agreement {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	out := make([]models.Agreement, 0, len(keys))
	for _, a := range s.fallback.Agreements {
		if want[a.Key] {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return append(out, s.fallback.Agreements...)
	}
	return out
}

func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, part := range strings.Split(k, ",") {
			if part = strings.ToUpper(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
