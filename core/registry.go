package core

import (
	"fmt"
	"sync"
)

type builderRegistry struct {
	mu       sync.RWMutex
	builders map[ReportType]ReportBuilder
}

func NewBuilderRegistry() BuilderRegistry {
	return &builderRegistry{builders: make(map[ReportType]ReportBuilder)}
}

func (r *builderRegistry) Register(builder ReportBuilder) error {
	if builder == nil {
		return fmt.Errorf("core: report builder is nil")
	}
	reportType := builder.Type()
	if err := reportType.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.builders[reportType]; exists {
		return fmt.Errorf("core: report builder already registered: %s", reportType)
	}
	r.builders[reportType] = builder
	return nil
}

func (r *builderRegistry) Get(reportType ReportType) (ReportBuilder, bool) {
	r.mu.RLock()
	builder, ok := r.builders[reportType]
	r.mu.RUnlock()
	return builder, ok
}
