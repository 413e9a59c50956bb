//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package config provides configuration management for the audit interceptor
// using [Viper] for flexible configuration sources.
//
// Configuration can be provided via:
//   - YAML configuration files
//   - Environment variables with the AUDIT_ prefix
//   - Programmatic defaults
//
// # Configuration File
//
// By default, the interceptor looks for audit-config.yaml in the current
// directory.  Override the location using environment variables:
//
//	AUDIT_CONFIG_PATH=/etc/audit
//	AUDIT_CONFIG_FILENAME=production-config
//
// Example configuration file:
//
//	log:
//	  level: ".:info"
//	audit:
//	  failmode: closed
//	  service:
//	    name: library.example.com
//	  selectors:
//	    - pattern: "*"
//	      directive: AUDIT
//	      logtype: DATA_ACCESS
//	    - pattern: "example.library.v1.Library.Create*"
//	      directive: AUDIT_REQUEST_AND_RESPONSE
//	      logtype: ADMIN_ACTIVITY
//	  labels:
//	    env: prod
//	  env:
//	    pod: HOSTNAME
//
// # Environment Variables
//
// Scalar configuration keys can be set via environment variables with the
// AUDIT_ prefix.  Dots in key names become underscores:
//
//	AUDIT_LOG_LEVEL=.:debug
//	AUDIT_AUDIT_FAILMODE=open
//
// [Viper]: https://github.com/spf13/viper
package config

import (
	"os"
	"strings"
	"sync"

	"github.com/manetu/auditinterceptor/internal/logging"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Environment variable and default path constants for configuration loading.
const (
	// EnvVarPrefix is the prefix for all audit interceptor environment variables.
	// For example, the key "log.level" becomes AUDIT_LOG_LEVEL.
	EnvVarPrefix string = "AUDIT"

	// ConfigPathEnv is the environment variable that specifies the directory
	// containing the configuration file.
	ConfigPathEnv string = "AUDIT_CONFIG_PATH"

	// ConfigFileNameEnv is the environment variable that specifies the
	// configuration file name (without extension).
	ConfigFileNameEnv string = "AUDIT_CONFIG_FILENAME"

	// ConfigDefaultPath is the default directory to search for config files.
	ConfigDefaultPath string = "."

	// ConfigDefaultFilename is the default configuration file name (without extension).
	ConfigDefaultFilename string = "audit-config"
)

// Configuration key constants for use with [VConfig].
const (
	logLevel string = "log.level"

	// Selectors is the ordered list of selector rules, each with a pattern,
	// directive and logtype.
	Selectors string = "audit.selectors"

	// FailMode is either "open" or "closed".  In closed mode an audit failure
	// fails the RPC; in open mode it is logged and the RPC proceeds.
	//
	// Default: "closed"
	FailMode string = "audit.failmode"

	// ServiceName overrides the service name recorded in audit records.  When
	// empty, the gRPC service portion of the method is used.
	ServiceName string = "audit.service.name"

	// Labels is a map of labels added to every record.  Labels already set by
	// handler code are never overwritten.
	Labels string = "audit.labels"

	// AuditEnv defines a mapping from platform metadata keys to environment
	// variable names, resolved once and attached to every record.
	//
	//	audit:
	//	  env:
	//	    pod: HOSTNAME
	//	    region: AWS_REGION
	AuditEnv string = "audit.env"

	// AuditK8sPodinfo is the directory holding a Kubernetes Downward API
	// volume with "labels" and "annotations" files.
	//
	// Default: "/etc/podinfo"
	AuditK8sPodinfo string = "audit.k8s.podinfo"

	// JustificationHeader is the metadata key callers present a justification token under.
	//
	// Default: "x-justification-token"
	JustificationHeader string = "audit.justification.header"

	// JustificationRequired makes the absence of a justification token a processing error.
	JustificationRequired string = "audit.justification.required"

	// JustificationSecret is the HMAC secret used to verify justification tokens.
	JustificationSecret string = "audit.justification.secret"

	// JustificationPublicKeyFile is a PEM file with the RSA public key used to
	// verify justification tokens.  Takes precedence over the secret.
	JustificationPublicKeyFile string = "audit.justification.publickeyfile"

	// PrincipalJWTEnabled enables principal extraction from bearer tokens.
	// Unless [PrincipalJWTSecret] or [PrincipalJWTPublicKeyFile] is set the
	// token signature is not checked, which is only safe behind a proxy that
	// has already authenticated the caller.
	//
	// Default: true
	PrincipalJWTEnabled string = "audit.principal.jwt.enabled"

	// PrincipalJWTClaims is the ordered list of claims consulted for the caller identity.
	//
	// Default: ["email", "sub"]
	PrincipalJWTClaims string = "audit.principal.jwt.claims"

	// PrincipalJWTSecret is the HMAC secret used to verify bearer tokens.
	PrincipalJWTSecret string = "audit.principal.jwt.secret"

	// PrincipalJWTPublicKeyFile is a PEM file with the RSA public key used to
	// verify bearer tokens.  Takes precedence over the secret.
	PrincipalJWTPublicKeyFile string = "audit.principal.jwt.publickeyfile"

	// PrincipalHeader names a trusted metadata key carrying the caller identity,
	// typically injected by an authenticating proxy.  Disabled when empty.
	PrincipalHeader string = "audit.principal.header"

	// FilterRego is an optional Rego module evaluated against every record.
	// Records for which data.audit.filter.allow is false are dropped.
	FilterRego string = "audit.filter.rego"

	// BackendType selects the delivery backend: "stdout", "logger" or "null".
	//
	// Default: "stdout"
	BackendType string = "audit.backend.type"

	// BackendPretty enables indented JSON in the stdout backend.
	BackendPretty string = "audit.backend.pretty"

	// DeliveryRetries is the number of delivery attempts per record.  Values
	// above 1 wrap the backend with retries and a circuit breaker.
	//
	// Default: 1
	DeliveryRetries string = "audit.delivery.retries"

	// DeliveryBreakerFailures is the number of consecutive failed deliveries
	// that opens the circuit breaker.
	//
	// Default: 5
	DeliveryBreakerFailures string = "audit.delivery.breaker.failures"
)

var (
	once     sync.Once
	loadOnce sync.Once
	loadErr  error

	// VConfig is the global Viper configuration instance for the audit interceptor.
	//
	// Use the configuration key constants ([Selectors], [FailMode], etc.) to
	// access specific settings:
	//
	//	if config.VConfig.GetBool(config.JustificationRequired) {
	//	    // every call must carry a justification
	//	}
	//
	// VConfig is initialized automatically when [Load] or [Init] is called.
	VConfig *viper.Viper
	logger  = logging.GetLogger("auditinterceptor.config")
)

// Init initializes the configuration system without loading config files.
//
// This function is safe to call multiple times; subsequent calls are no-ops.
func Init() {
	once.Do(doInitialize)
}

func getConfigPath() string {
	if configPath, ok := os.LookupEnv(ConfigPathEnv); ok {
		return configPath
	}

	return ConfigDefaultPath
}

func getConfigFileName() string {
	if configName, ok := os.LookupEnv(ConfigFileNameEnv); ok {
		return configName
	}

	return ConfigDefaultFilename
}

func doInitialize() {
	VConfig = viper.New()

	// default is './audit-config.yaml' but can be overridden with $(AUDIT_CONFIG_PATH)/$(AUDIT_CONFIG_FILENAME).yaml
	VConfig.AddConfigPath(getConfigPath())
	VConfig.SetConfigName(getConfigFileName())
	VConfig.SetConfigType("yaml")

	// keys such as 'log.level' become 'AUDIT_LOG_LEVEL'
	VConfig.SetEnvPrefix(EnvVarPrefix)
	VConfig.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	VConfig.AutomaticEnv()

	VConfig.SetDefault(logLevel, ".:info")
	VConfig.SetDefault(FailMode, "closed")
	VConfig.SetDefault(AuditK8sPodinfo, "/etc/podinfo")
	VConfig.SetDefault(JustificationHeader, "x-justification-token")
	VConfig.SetDefault(JustificationRequired, false)
	VConfig.SetDefault(PrincipalJWTEnabled, true)
	VConfig.SetDefault(PrincipalJWTClaims, []string{"email", "sub"})
	VConfig.SetDefault(BackendType, "stdout")
	VConfig.SetDefault(BackendPretty, false)
	VConfig.SetDefault(DeliveryRetries, 1)
	VConfig.SetDefault(DeliveryBreakerFailures, 5)
}

// Load initializes configuration and loads settings from files and environment.
//
// Load performs the following steps:
//  1. Calls [Init] if not already called
//  2. Reads the configuration file (if present; missing files are not an error)
//  3. Applies environment variable overrides
//  4. Updates log levels based on configuration
//
// Subsequent calls after the first load are no-ops that return the first result.
func Load() error {
	loadOnce.Do(func() {
		Init()

		// Early log level update from environment variable allows us to debug the config loading.
		if early := os.Getenv("AUDIT_LOG_LEVEL"); early != "" {
			if err := logging.UpdateLogLevels(early); err != nil {
				loadErr = errors.Wrapf(err, "failed updating early log level %s", early)
				return
			}
		}

		logger.SysDebugf("Loading configuration from %s/%s.yaml", getConfigPath(), getConfigFileName())
		if err := VConfig.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				logger.SysWarnf("error reading config; using defaults: %+v", err)
			} else {
				logger.SysDebugf("No config file found at %s/%s.yaml", getConfigPath(), getConfigFileName())
			}
		}

		loglevel := VConfig.GetString(logLevel)
		if err := logging.UpdateLogLevels(loglevel); err != nil {
			loadErr = errors.Wrapf(err, "failed updating log level %s", loglevel)
			return
		}

		if logger.IsDebugEnabled() {
			VConfig.DebugTo(logger.Out())
		}
	})

	return loadErr
}

// ResetConfig clears all configuration and reinitializes with defaults.
//
// WARNING: This function is intended for testing only.
func ResetConfig() {
	VConfig = nil
	once = sync.Once{}
	loadOnce = sync.Once{}
	loadErr = nil
	resetK8sCache()
	Init()
	// ignore any reset errors
	_ = Load()
}

// GetAuditEnv returns the audit.env mapping resolved against the current
// environment.  Variables that are not set resolve to empty strings.
//
//	audit:
//	  env:
//	    pod: HOSTNAME
//	    region: AWS_REGION
//
// With HOSTNAME=pod-123 and AWS_REGION=us-east-1, this returns:
//
//	{"pod": "pod-123", "region": "us-east-1"}
func GetAuditEnv() map[string]string {
	result := make(map[string]string)

	for key, envVarName := range VConfig.GetStringMapString(AuditEnv) {
		result[key] = os.Getenv(envVarName)
	}

	return result
}

// GetLabels returns the configured static record labels
func GetLabels() map[string]string {
	return VConfig.GetStringMapString(Labels)
}
