//
//  Copyright © Manetu Inc. All rights reserved.
//

package processor

import (
	"testing"

	"github.com/manetu/auditinterceptor/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvAndK8sProviders(t *testing.T) {
	t.Setenv(config.ConfigPathEnv, "../config/testdata")
	t.Setenv(config.ConfigFileNameEnv, "audit-config")
	t.Setenv("AUDIT_TEST_POD", "pod-7")
	t.Setenv("AUDIT_AUDIT_K8S_PODINFO", "../config/testdata/podinfo")
	config.ResetConfig()
	defer config.ResetConfig()

	env, ok := EnvProvider().PlatformLabel()
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"env": map[string]interface{}{"pod": "pod-7"}}, env)

	k8s, ok := K8sProvider().PlatformLabel()
	require.True(t, ok)
	pod := k8s["k8s"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"app": "library", "tier": "backend"}, pod["labels"])
	assert.Contains(t, pod, "annotations")
}

func TestProvidersAbsent(t *testing.T) {
	t.Setenv(config.ConfigPathEnv, "../config/testdata")
	t.Setenv(config.ConfigFileNameEnv, "does-not-exist")
	t.Setenv("AUDIT_AUDIT_K8S_PODINFO", "../config/testdata/nowhere")
	config.ResetConfig()
	defer config.ResetConfig()

	_, ok := EnvProvider().PlatformLabel()
	assert.False(t, ok)
	_, ok = K8sProvider().PlatformLabel()
	assert.False(t, ok)
}
