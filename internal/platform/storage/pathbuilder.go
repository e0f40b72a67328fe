package storage

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ObjectPurpose captures what an object is stored for.
type ObjectPurpose string

const PurposeOrderExport ObjectPurpose = "order-export"

// PathParams provide the identifiers object keys are composed from.
type PathParams struct {
	ShopID      string
	OrderNumber string
	CreatedAt   time.Time
}

// PathBuilder composes the object path for a given purpose.
type PathBuilder func(PathParams) (string, error)

var (
	pathBuilders = map[ObjectPurpose]PathBuilder{
		PurposeOrderExport: buildOrderExportPath,
	}
	pathBuildersMu sync.RWMutex
)

// RegisterPathBuilder overrides or registers a builder for a specific purpose.
func RegisterPathBuilder(purpose ObjectPurpose, builder PathBuilder) {
	pathBuildersMu.Lock()
	defer pathBuildersMu.Unlock()
	if builder == nil {
		delete(pathBuilders, purpose)
		return
	}
	pathBuilders[purpose] = builder
}

// BuildObjectPath resolves the storage object path for the given purpose.
func BuildObjectPath(purpose ObjectPurpose, params PathParams) (string, error) {
	pathBuildersMu.RLock()
	builder, ok := pathBuilders[purpose]
	pathBuildersMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("storage: unsupported object purpose %q", purpose)
	}
	return builder(params)
}

// buildOrderExportPath yields exports/<shop>/<yyyy>/<mm>/<order_number>.xml.
func buildOrderExportPath(params PathParams) (string, error) {
	shopID, err := validateSegment("shopID", params.ShopID)
	if err != nil {
		return "", err
	}
	orderNumber, err := validateSegment("orderNumber", params.OrderNumber)
	if err != nil {
		return "", err
	}
	if params.CreatedAt.IsZero() {
		return "", fmt.Errorf("storage: createdAt is required")
	}
	return fmt.Sprintf("exports/%s/%04d/%02d/%s.xml",
		shopID, params.CreatedAt.Year(), int(params.CreatedAt.Month()), orderNumber), nil
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}
