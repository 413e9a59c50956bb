//
//  Copyright © Manetu Inc. All rights reserved.
//

package resolve

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manetu/auditinterceptor/cmd/mai/common"
	pcommon "github.com/manetu/auditinterceptor/pkg/common"
	"github.com/manetu/auditinterceptor/pkg/config"
	"github.com/manetu/auditinterceptor/pkg/selector"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

// Result describes how one method would be audited
type Result struct {
	Method    string `json:"method"`
	Audited   bool   `json:"audited"`
	Pattern   string `json:"pattern,omitempty"`
	Directive string `json:"directive,omitempty"`
	LogType   string `json:"logtype,omitempty"`
}

// Execute runs the resolve command, printing the selector chosen for each --method.
func Execute(ctx context.Context, cmd *cli.Command) error {
	methods := cmd.StringSlice("method")
	if len(methods) == 0 {
		return fmt.Errorf("no methods specified, use --method/-m")
	}

	selectors, err := loadSelectors(cmd)
	if err != nil {
		return err
	}

	results, err := Methods(selectors, methods)
	if err != nil {
		return err
	}

	return writeResults(os.Stdout, results)
}

func loadSelectors(cmd *cli.Command) ([]selector.Selector, error) {
	if file := cmd.String("selectors"); file != "" {
		data, err := os.ReadFile(file) // #nosec G304 -- operator supplied path
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", file)
		}
		return selector.Parse(data)
	}

	if err := common.ApplyConfigFlag(cmd); err != nil {
		return nil, err
	}
	if err := config.Load(); err != nil {
		return nil, err
	}
	return selector.FromConfig(config.VConfig, config.Selectors)
}

// Methods resolves each method against selectors.  Methods may be given in
// either the "/package.Service/Method" or "package.Service.Method" form.
func Methods(selectors []selector.Selector, methods []string) ([]Result, error) {
	engine, err := selector.NewEngine(selectors)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(methods))
	for _, m := range methods {
		if strings.HasPrefix(m, "/") {
			m = selector.MethodIdentifier(m)
		}

		r := Result{Method: m}
		if sel, ok := engine.Resolve(m); ok {
			r.Audited = true
			r.Pattern = sel.Pattern
			r.Directive = sel.Directive.String()
			r.LogType = sel.LogType
		}
		results = append(results, r)
	}

	return results, nil
}

func writeResults(w io.Writer, results []Result) error {
	return pcommon.PrettyPrint(w, results)
}
