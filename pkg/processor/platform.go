//
//  Copyright © Manetu Inc. All rights reserved.
//

package processor

import (
	"context"
	"sync"

	"github.com/manetu/auditinterceptor/pkg/config"
	"github.com/manetu/auditinterceptor/pkg/record"
	"github.com/mohae/deepcopy"
)

// LabelProvider supplies optional metadata describing the platform the
// service runs on.  It reports false when it has nothing to contribute.
type LabelProvider interface {
	PlatformLabel() (map[string]interface{}, bool)
}

// LabelProviderFunc adapts a function to the LabelProvider interface
type LabelProviderFunc func() (map[string]interface{}, bool)

// PlatformLabel calls f
func (f LabelProviderFunc) PlatformLabel() (map[string]interface{}, bool) { return f() }

// EnvProvider reports the audit.env mapping resolved against the environment
func EnvProvider() LabelProvider {
	return LabelProviderFunc(func() (map[string]interface{}, bool) {
		env := config.GetAuditEnv()
		if len(env) == 0 {
			return nil, false
		}

		values := make(map[string]interface{}, len(env))
		for k, v := range env {
			values[k] = v
		}
		return map[string]interface{}{"env": values}, true
	})
}

// K8sProvider reports the pod labels and annotations published through the
// Kubernetes Downward API
func K8sProvider() LabelProvider {
	return LabelProviderFunc(func() (map[string]interface{}, bool) {
		info := config.GetPodInfo()
		if info == nil {
			return nil, false
		}

		k8s := map[string]interface{}{}
		if len(info.Labels) > 0 {
			k8s["labels"] = toInterfaceMap(info.Labels)
		}
		if len(info.Annotations) > 0 {
			k8s["annotations"] = toInterfaceMap(info.Annotations)
		}
		return map[string]interface{}{"k8s": k8s}, true
	})
}

func toInterfaceMap(m map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Platform attaches the merged output of its providers to every record
// under [record.OriginatingResourceKey].  Providers are consulted once, on
// the first record, and their output is reused for the life of the process.
type Platform struct {
	providers []LabelProvider
	once      sync.Once
	resource  map[string]interface{}
}

// NewPlatform returns a Platform mutator over providers, merged in order
func NewPlatform(providers ...LabelProvider) *Platform {
	return &Platform{providers: providers}
}

// Name implements pipeline.Named
func (p *Platform) Name() string { return "platform" }

func (p *Platform) load() {
	for _, provider := range p.providers {
		label, ok := provider.PlatformLabel()
		if !ok {
			continue
		}
		if p.resource == nil {
			p.resource = map[string]interface{}{}
		}
		for k, v := range label {
			p.resource[k] = v
		}
	}
	logger.Debugf(agent, "platform", "originating resource: %+v", p.resource)
}

// Process implements pipeline.Stage
func (p *Platform) Process(_ context.Context, rec *record.AuditRecord) (*record.AuditRecord, error) {
	p.once.Do(p.load)
	if p.resource == nil {
		return rec, nil
	}

	if rec.Metadata == nil {
		rec.Metadata = map[string]interface{}{}
	}
	if _, ok := rec.Metadata[record.OriginatingResourceKey]; !ok {
		rec.Metadata[record.OriginatingResourceKey] = deepcopy.Copy(p.resource)
	}
	return rec, nil
}
