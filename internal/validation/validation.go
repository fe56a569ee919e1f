// Package validation checks at startup that the services the deployment depends on are reachable.
package validation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/corgi-recs/corgi/internal/logger"
)

// Check probes one dependency
type Check func(ctx context.Context) error

// KnownServices are the names accepted in server.required_services
var KnownServices = []string{"database", "redis", "upstream", "gorse"}

// ServiceValidator handles validation of optional services
type ServiceValidator struct {
	requiredServices []string
	checks           map[string]Check
	timeout          time.Duration
}

// NewServiceValidator creates a validator for the named services
func NewServiceValidator(required []string) *ServiceValidator {
	return &ServiceValidator{
		requiredServices: normalize(required),
		checks:           make(map[string]Check),
		timeout:          10 * time.Second,
	}
}

// WithTimeout bounds each probe
func (sv *ServiceValidator) WithTimeout(d time.Duration) *ServiceValidator {
	sv.timeout = d
	return sv
}

// Register adds the probe for a configured service. Services that are disabled
// in configuration are not registered.
func (sv *ServiceValidator) Register(name string, check Check) {
	sv.checks[strings.ToLower(name)] = check
}

// ValidateServices probes every required service and fails on the first one that is
// not configured or not reachable
func (sv *ServiceValidator) ValidateServices(ctx context.Context) error {
	if len(sv.requiredServices) == 0 {
		logger.Log.Info("No required services configured for validation")
		return nil
	}

	logger.Log.Info("🔍 Validating required services",
		zap.Strings("services", sv.requiredServices),
	)

	for _, serviceName := range sv.requiredServices {
		check, ok := sv.checks[serviceName]
		if !ok {
			return fmt.Errorf("required service %q is not configured", serviceName)
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, sv.timeout)
		err := check(timeoutCtx)
		cancel()
		if err != nil {
			logger.Log.Error("❌ Required service validation failed",
				zap.String("service", serviceName),
				zap.Error(err),
			)
			return fmt.Errorf("required service %q validation failed: %w", serviceName, err)
		}

		logger.Log.Info("✅ Service validated successfully",
			zap.String("service", serviceName),
		)
	}

	logger.Log.Info("✅ All required services validated successfully")
	return nil
}

// Unknown returns the names in required that no validator understands
func Unknown(required []string) []string {
	known := make(map[string]bool, len(KnownServices))
	for _, s := range KnownServices {
		known[s] = true
	}
	var out []string
	for _, s := range normalize(required) {
		if !known[s] {
			out = append(out, s)
		}
	}
	return out
}

func normalize(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
