//
//  Copyright © Manetu Inc. All rights reserved.
//

package test

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/manetu/auditinterceptor/internal/backend"
	"github.com/manetu/auditinterceptor/pkg/auditor"
	"github.com/manetu/auditinterceptor/pkg/config"
	"github.com/manetu/auditinterceptor/pkg/options"
	"github.com/manetu/auditinterceptor/pkg/record"
)

// TestConfigFilename is the name of the test configuration file (without extension).
const TestConfigFilename = "audit-config"

// GetTestdataPath returns the absolute path to the testdata directory at the
// project root, regardless of the working directory of the test.
func GetTestdataPath() string {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		return "testdata"
	}
	// thisFile is internal/test/instance.go
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	return filepath.Join(projectRoot, "testdata")
}

// SetupTestConfig points the configuration at the test configuration and
// reloads it.
func SetupTestConfig() error {
	if err := os.Setenv(config.ConfigPathEnv, GetTestdataPath()); err != nil {
		return err
	}
	if err := os.Setenv(config.ConfigFileNameEnv, TestConfigFilename); err != nil {
		return err
	}
	config.ResetConfig()
	return nil
}

// NewTestAuditor instantiates an auditor suitable for unit-testing.  Records
// that reach the backend are delivered to the returned channel, which holds
// up to depth records.
func NewTestAuditor(depth int, opts ...options.AuditorOptionsFunc) (*auditor.Auditor, chan *record.AuditRecord, error) {
	if err := SetupTestConfig(); err != nil {
		return nil, nil, err
	}

	ch := make(chan *record.AuditRecord, depth)
	opts = append([]options.AuditorOptionsFunc{options.WithBackend(backend.NewChannelFactory(ch))}, opts...)

	a, err := auditor.New(opts...)
	if err != nil {
		return nil, nil, err
	}

	return a, ch, nil
}
