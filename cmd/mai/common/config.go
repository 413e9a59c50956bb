//
//  Copyright © Manetu Inc. All rights reserved.
//

package common

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/manetu/auditinterceptor/pkg/config"
	"github.com/urfave/cli/v3"
)

// ApplyConfigFlag points configuration loading at the file named by the
// global --config flag, if any.  It must run before the configuration is loaded.
func ApplyConfigFlag(cmd *cli.Command) error {
	file := cmd.Root().String("config")
	if file == "" {
		return nil
	}

	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	if err := os.Setenv(config.ConfigPathEnv, filepath.Dir(file)); err != nil {
		return err
	}
	return os.Setenv(config.ConfigFileNameEnv, name)
}
