//
//  Copyright © Manetu Inc. All rights reserved.
//

package selector

import (
	"github.com/manetu/auditinterceptor/pkg/common"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Rule is the configuration form of a [Selector]
type Rule struct {
	Pattern   string `yaml:"pattern" mapstructure:"pattern"`
	Directive string `yaml:"directive" mapstructure:"directive"`
	LogType   string `yaml:"logtype" mapstructure:"logtype"`
}

type document struct {
	Selectors []Rule `yaml:"selectors"`
}

// FromRules converts and validates configuration rules, preserving order
func FromRules(rules []Rule) ([]Selector, error) {
	selectors := make([]Selector, 0, len(rules))
	for _, r := range rules {
		d, err := ParseDirective(r.Directive)
		if err != nil {
			return nil, err
		}
		s, err := New(r.Pattern, d, r.LogType)
		if err != nil {
			return nil, err
		}
		selectors = append(selectors, s)
	}

	return selectors, nil
}

// Parse reads a standalone YAML document of the form
//
//	selectors:
//	  - pattern: "*"
//	    directive: AUDIT
//	    logtype: DATA_ACCESS
func Parse(data []byte) ([]Selector, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, common.NewConfigError("invalid selector document: %v", err)
	}

	return FromRules(doc.Selectors)
}

// FromConfig reads the rules stored under key in v
func FromConfig(v *viper.Viper, key string) ([]Selector, error) {
	var rules []Rule
	if err := v.UnmarshalKey(key, &rules); err != nil {
		return nil, common.NewConfigError("invalid selector configuration at %s: %v", key, err)
	}

	return FromRules(rules)
}
