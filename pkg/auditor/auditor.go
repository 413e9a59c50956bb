//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package auditor assembles the audit interceptor from configuration.
//
// # Quick Start
//
// With an audit-config.yaml in the working directory:
//
//	audit:
//	  selectors:
//	    - pattern: "library.v1.Books.*"
//	      directive: AUDIT_REQUEST_AND_RESPONSE
//	      logtype: books
//
// install the interceptors on a server:
//
//	a, err := auditor.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close()
//
//	srv := grpc.NewServer(a.ServerOptions()...)
//
// # Configuration
//
// Everything the configuration describes can be replaced with functional
// options:
//
//	a, err := auditor.New(
//	    options.WithBackend(myCollectorFactory),
//	    options.WithFailMode(options.FailOpen),
//	    options.WithMetrics(prometheus.DefaultRegisterer),
//	)
//
// The pipeline always starts with the built-in validators, followed by the
// justification, label and platform mutators, the optional Rego filter, any
// stages added with options, and finally the backends.
package auditor

import (
	"github.com/manetu/auditinterceptor/internal/logging"
	"github.com/manetu/auditinterceptor/pkg/backend"
	"github.com/manetu/auditinterceptor/pkg/common"
	"github.com/manetu/auditinterceptor/pkg/config"
	"github.com/manetu/auditinterceptor/pkg/interceptor"
	"github.com/manetu/auditinterceptor/pkg/options"
	"github.com/manetu/auditinterceptor/pkg/pipeline"
	"github.com/manetu/auditinterceptor/pkg/principal"
	"github.com/manetu/auditinterceptor/pkg/processor"
	"github.com/manetu/auditinterceptor/pkg/selector"
	"github.com/manetu/auditinterceptor/pkg/token"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
)

var logger = logging.GetLogger("auditinterceptor")

const agent = "auditor"

// Auditor owns an assembled interceptor and its pipeline
type Auditor struct {
	engine      *selector.Engine
	pipeline    *pipeline.Pipeline
	interceptor *interceptor.Interceptor
}

// New loads configuration and assembles an Auditor.  Configuration errors,
// such as an empty selector list, are returned.
func New(opts ...options.AuditorOptionsFunc) (*Auditor, error) {
	err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "error loading config")
	}

	o := &options.AuditorOptions{}
	for _, fn := range opts {
		fn(o)
	}

	selectors := o.Selectors
	if selectors == nil {
		selectors, err = selector.FromConfig(config.VConfig, config.Selectors)
		if err != nil {
			return nil, err
		}
	}
	engine, err := selector.NewEngine(selectors)
	if err != nil {
		return nil, err
	}

	failMode, err := interceptor.ParseFailMode(config.VConfig.GetString(config.FailMode))
	if err != nil {
		return nil, err
	}
	if o.FailMode != nil {
		failMode = *o.FailMode
	}

	specs := o.Specifications
	if specs == nil {
		specs, err = principalSpecifications()
		if err != nil {
			return nil, err
		}
	}

	p, err := newPipeline(o)
	if err != nil {
		return nil, err
	}

	icOpts := []interceptor.Option{
		interceptor.WithFailMode(failMode),
		interceptor.WithServiceName(config.VConfig.GetString(config.ServiceName)),
		interceptor.WithJustificationHeader(config.VConfig.GetString(config.JustificationHeader)),
	}
	if o.Registerer != nil {
		icOpts = append(icOpts, interceptor.WithMetrics(interceptor.NewMetrics(o.Registerer)))
	}
	if o.Clock != nil {
		icOpts = append(icOpts, interceptor.WithClock(o.Clock))
	}

	logger.SysInfof("auditing %d selector(s) in fail-%s mode through %v", len(selectors), failMode, p.Stages())

	return &Auditor{
		engine:      engine,
		pipeline:    p,
		interceptor: interceptor.New(engine, principal.NewResolver(specs...), p, icOpts...),
	}, nil
}

func principalSpecifications() ([]principal.Specification, error) {
	var specs []principal.Specification

	if config.VConfig.GetBool(config.PrincipalJWTEnabled) {
		v, err := tokenVerifier(config.PrincipalJWTPublicKeyFile, config.PrincipalJWTSecret)
		if err != nil {
			return nil, err
		}
		if v == nil {
			logger.SysWarnf("bearer token signatures are not verified; set %s or %s", config.PrincipalJWTSecret, config.PrincipalJWTPublicKeyFile)
		}
		specs = append(specs, principal.NewJWTSpecification(v, config.VConfig.GetStringSlice(config.PrincipalJWTClaims)...))
	}
	if key := config.VConfig.GetString(config.PrincipalHeader); key != "" {
		specs = append(specs, principal.NewHeaderSpecification(key))
	}

	return specs, nil
}

// tokenVerifier builds a verifier from the public key file or secret named
// by the given keys.  Neither being set returns nil.
func tokenVerifier(publicKeyKey, secretKey string) (*token.Verifier, error) {
	if path := config.VConfig.GetString(publicKeyKey); path != "" {
		v, err := token.NewRSAFromFile(path)
		if err != nil {
			return nil, common.NewConfigError("%s: %v", publicKeyKey, err)
		}
		return v, nil
	}
	if secret := config.VConfig.GetString(secretKey); secret != "" {
		return token.NewHMAC([]byte(secret)), nil
	}
	return nil, nil
}

func justificationVerifier() (processor.Verifier, error) {
	v, err := tokenVerifier(config.JustificationPublicKeyFile, config.JustificationSecret)
	if err != nil || v == nil {
		return nil, err
	}
	return processor.NewJWTVerifier(v), nil
}

// configuredBackend returns the factory named by audit.backend.type
func configuredBackend() (backend.Factory, error) {
	var f backend.Factory

	name := config.VConfig.GetString(config.BackendType)
	switch name {
	case "stdout":
		f = backend.NewStdoutFactory(backend.Options{PrettyPrint: config.VConfig.GetBool(config.BackendPretty)})
	case "logger":
		f = backend.NewLoggerFactory()
	case "null":
		return backend.NewNullFactory(), nil
	default:
		return nil, common.NewConfigError("unknown backend type %q", name)
	}

	if retries := config.VConfig.GetUint(config.DeliveryRetries); retries > 1 {
		f = backend.NewResilientFactory(f,
			backend.WithAttempts(retries),
			backend.WithBreakerFailures(config.VConfig.GetUint32(config.DeliveryBreakerFailures)),
		)
	}

	return f, nil
}

func newPipeline(o *options.AuditorOptions) (*pipeline.Pipeline, error) {
	validators := append([]pipeline.Stage{processor.NewRequiredFields(), processor.NewPayload()}, o.Validators...)

	verifier, err := justificationVerifier()
	if err != nil {
		return nil, err
	}
	var mutators []pipeline.Stage
	// tokens are ignored unless something can verify them or they are mandatory
	if required := config.VConfig.GetBool(config.JustificationRequired); verifier != nil || required {
		mutators = append(mutators, processor.NewJustification(verifier, required))
	}
	mutators = append(mutators,
		processor.NewLabels(config.GetLabels()),
		processor.NewPlatform(processor.EnvProvider(), processor.K8sProvider()),
	)
	if module := config.VConfig.GetString(config.FilterRego); module != "" {
		filter, err := processor.NewFilter(module)
		if err != nil {
			return nil, err
		}
		mutators = append(mutators, filter)
	}
	mutators = append(mutators, o.Mutators...)

	factories := o.BackendFactories
	if factories == nil {
		f, err := configuredBackend()
		if err != nil {
			return nil, err
		}
		factories = []backend.Factory{f}
	}

	var backends []pipeline.Stage
	for _, f := range factories {
		b, err := f.NewBackend()
		if err != nil {
			return nil, errors.Wrap(err, "failed to create backend")
		}
		backends = append(backends, b)
	}

	return pipeline.New(
		pipeline.WithValidators(validators...),
		pipeline.WithMutators(mutators...),
		pipeline.WithBackends(backends...),
	)
}

// Interceptor returns the underlying interceptor
func (a *Auditor) Interceptor() *interceptor.Interceptor {
	return a.interceptor
}

// Resolve returns the selector that applies to method, in the
// "package.Service.Method" form
func (a *Auditor) Resolve(method string) (*selector.Selector, bool) {
	return a.engine.Resolve(method)
}

// Stages returns the pipeline stage names in execution order
func (a *Auditor) Stages() []string {
	return a.pipeline.Stages()
}

// UnaryServerInterceptor returns the unary audit interceptor
func (a *Auditor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return a.interceptor.UnaryServerInterceptor()
}

// StreamServerInterceptor returns the stream audit interceptor
func (a *Auditor) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return a.interceptor.StreamServerInterceptor()
}

// ServerOptions returns the options that install both interceptors on a grpc.Server
func (a *Auditor) ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(a.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(a.StreamServerInterceptor()),
	}
}

// Close releases the pipeline's resources.  Calls still in flight may fail to log.
func (a *Auditor) Close() {
	logger.Debug(agent, "close", "closing pipeline")
	a.pipeline.Close()
}
