//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package interceptor attaches audit logging to the lifecycle of gRPC calls.
//
// The [Interceptor] provides unary and stream server interceptors that share
// one per-call state machine.  For every call whose method matches a
// selector, it resolves the caller, builds a skeleton record, and emits
// records through the pipeline as messages flow:
//
//	grpc.NewServer(
//	    grpc.ChainUnaryInterceptor(ic.UnaryServerInterceptor()),
//	    grpc.ChainStreamInterceptor(ic.StreamServerInterceptor()),
//	)
//
// Handlers reach the record of their call with [record.FromContext].
//
// Pairing of responses with requests follows message arrival.  When a stream
// sends and receives concurrently, which request a response is attributed
// to depends on scheduling and is not deterministic.
package interceptor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/manetu/auditinterceptor/internal/logging"
	"github.com/manetu/auditinterceptor/pkg/common"
	"github.com/manetu/auditinterceptor/pkg/pipeline"
	"github.com/manetu/auditinterceptor/pkg/principal"
	"github.com/manetu/auditinterceptor/pkg/record"
	"github.com/manetu/auditinterceptor/pkg/selector"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var logger = logging.GetLogger("auditinterceptor.interceptor")

const agent = "interceptor"

// FailMode decides whether audit failures affect the audited call
type FailMode int

const (
	// FailClosed fails the call with codes.Internal when its audit record cannot be produced
	FailClosed FailMode = iota
	// FailOpen logs audit failures and lets the call proceed
	FailOpen
)

func (m FailMode) String() string {
	if m == FailOpen {
		return "open"
	}
	return "closed"
}

// ParseFailMode converts "open" or "closed"
func ParseFailMode(s string) (FailMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return FailOpen, nil
	case "closed", "":
		return FailClosed, nil
	default:
		return FailClosed, common.NewConfigError("unknown fail mode %q", s)
	}
}

// Interceptor audits the calls it intercepts.  It is safe for concurrent use.
type Interceptor struct {
	engine              *selector.Engine
	resolver            *principal.Resolver
	pipeline            *pipeline.Pipeline
	failMode            FailMode
	serviceName         string
	justificationHeader string
	metrics             *Metrics
	now                 func() time.Time
}

// Option configures an [Interceptor]
type Option func(*Interceptor)

// WithFailMode sets the fail mode (default FailClosed)
func WithFailMode(m FailMode) Option {
	return func(i *Interceptor) {
		i.failMode = m
	}
}

// WithServiceName records name as the service of every record instead of the
// gRPC service of the method
func WithServiceName(name string) Option {
	return func(i *Interceptor) {
		i.serviceName = name
	}
}

// WithJustificationHeader sets the metadata key justification tokens are read from
func WithJustificationHeader(key string) Option {
	return func(i *Interceptor) {
		i.justificationHeader = strings.ToLower(key)
	}
}

// WithMetrics enables Prometheus metrics
func WithMetrics(m *Metrics) Option {
	return func(i *Interceptor) {
		i.metrics = m
	}
}

// WithClock overrides the source of record timestamps
func WithClock(now func() time.Time) Option {
	return func(i *Interceptor) {
		i.now = now
	}
}

// New returns an Interceptor.  A nil resolver never identifies callers.
func New(engine *selector.Engine, resolver *principal.Resolver, p *pipeline.Pipeline, opts ...Option) *Interceptor {
	if resolver == nil {
		resolver = principal.NewResolver()
	}

	i := &Interceptor{
		engine:              engine,
		resolver:            resolver,
		pipeline:            p,
		failMode:            FailClosed,
		justificationHeader: "x-justification-token",
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Metrics returns the collectors in use, or nil when metrics are disabled
func (i *Interceptor) Metrics() *Metrics {
	return i.metrics
}

// start returns nil when the method is not audited
func (i *Interceptor) start(ctx context.Context, fullMethod string) (*call, context.Context, error) {
	method := selector.MethodIdentifier(fullMethod)

	sel, ok := i.engine.Resolve(method)
	if !ok {
		return nil, ctx, nil
	}
	i.metrics.callAudited(method)

	md, _ := metadata.FromIncomingContext(ctx)

	who, err := i.resolver.Resolve(md)
	if err != nil {
		if i.failMode == FailClosed {
			logger.Errorf(agent, "start", "%s: principal resolution failed: %v", method, err)
			return nil, ctx, status.Error(codes.Internal, "audit principal resolution failed")
		}
		logger.Warnf(agent, "start", "%s: proceeding without principal: %v", method, err)
	}

	service := i.serviceName
	if service == "" {
		service = selector.ServiceName(fullMethod)
	}

	skeleton := record.New(method, service, i.now())
	skeleton.Principal = who
	skeleton.LogType = sel.LogType
	skeleton.Directive = sel.Directive.String()
	if v := md.Get(i.justificationHeader); len(v) > 0 {
		skeleton.Justification = v[0]
	}

	c := &call{
		ic:       i,
		method:   method,
		selector: sel,
		builder:  record.NewBuilder(skeleton),
	}

	return c, record.NewContext(ctx, c.builder), nil
}

// statusOf returns the status an RPC error carries
func statusOf(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	if s, ok := status.FromError(err); ok {
		return s
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err)
	}
	return status.New(codes.Unknown, err.Error())
}

func panicStatus(r interface{}) *status.Status {
	return status.New(codes.Unknown, fmt.Sprintf("panic: %v", r))
}

// UnaryServerInterceptor returns the unary half of the interceptor
func (i *Interceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		c, ctx, err := i.start(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return handler(ctx, req)
		}

		defer func() {
			if r := recover(); r != nil {
				c.close(ctx, panicStatus(r))
				panic(r)
			}
		}()

		if err := c.onInbound(ctx, req); err != nil {
			c.close(ctx, statusOf(err))
			return nil, err
		}
		c.halfClose()

		resp, err := handler(ctx, req)
		if err != nil {
			c.close(ctx, statusOf(err))
			return nil, err
		}

		if err := c.onOutbound(ctx, resp); err != nil {
			c.close(ctx, statusOf(err))
			return nil, err
		}

		c.close(ctx, statusOf(nil))
		return resp, nil
	}
}

// StreamServerInterceptor returns the stream half of the interceptor
func (i *Interceptor) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		c, ctx, err := i.start(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		if c == nil {
			return handler(srv, ss)
		}

		defer func() {
			if r := recover(); r != nil {
				c.close(ctx, panicStatus(r))
				panic(r)
			}
		}()

		err = handler(srv, &serverStream{ServerStream: ss, ctx: ctx, call: c})
		c.close(ctx, statusOf(err))
		return err
	}
}
