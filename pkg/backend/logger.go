//
//  Copyright © Manetu Inc. All rights reserved.
//

package backend

import (
	"context"

	"github.com/manetu/auditinterceptor/internal/logging"
	"github.com/manetu/auditinterceptor/pkg/pipeline"
	"github.com/manetu/auditinterceptor/pkg/record"
	"go.uber.org/zap"
)

// Logger writes each record as one structured entry of a zap logger
type Logger struct {
	logger *zap.Logger
}

// NewLoggerFactory creates a [Factory] writing to the "auditinterceptor.audit" module logger
func NewLoggerFactory() Factory {
	return FactoryFunc(func() (pipeline.Stage, error) {
		return NewLogger(logging.GetLogger("auditinterceptor.audit").Zap()), nil
	})
}

// NewLogger returns a backend writing to l
func NewLogger(l *zap.Logger) *Logger {
	return &Logger{logger: l}
}

// Name implements pipeline.Named
func (s *Logger) Name() string { return "logger" }

// Process implements pipeline.Stage
func (s *Logger) Process(_ context.Context, rec *record.AuditRecord) (*record.AuditRecord, error) {
	fields := []zap.Field{
		zap.String("operation", rec.Operation.ID),
		zap.String("method", rec.MethodName),
		zap.String("service", rec.ServiceName),
		zap.String("resource", rec.ResourceName),
		zap.String("logType", rec.LogType),
		zap.String("trigger", string(rec.Trigger)),
		zap.Time("timestamp", rec.Timestamp),
	}
	if rec.Principal != "" {
		fields = append(fields, zap.String("principal", rec.Principal))
	}
	if rec.Status != nil {
		fields = append(fields, zap.Int32("code", rec.Status.Code), zap.String("message", rec.Status.Message))
	}
	if len(rec.Labels) > 0 {
		fields = append(fields, zap.Any("labels", rec.Labels))
	}
	if rec.Request != nil {
		fields = append(fields, zap.Any("request", rec.Request.AsInterface()))
	}
	if rec.Response != nil {
		fields = append(fields, zap.Any("response", rec.Response.AsInterface()))
	}
	if len(rec.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", rec.Metadata))
	}

	s.logger.Info("audit", fields...)
	return rec, nil
}

// Close flushes buffered entries
func (s *Logger) Close() {
	_ = s.logger.Sync()
}
