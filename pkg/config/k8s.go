//
//  Copyright © Manetu Inc. All rights reserved.
//

package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// PodInfo is the Kubernetes Downward API view of the running pod.
type PodInfo struct {
	Labels      map[string]string
	Annotations map[string]string
}

var (
	podInfo     *PodInfo
	podInfoOnce sync.Once
)

// resetK8sCache clears cached Downward API data so it will be re-read.
// Intended for testing only.
func resetK8sCache() {
	podInfo = nil
	podInfoOnce = sync.Once{}
}

// parseDownwardAPIFile reads a Kubernetes Downward API file and returns a map
// of key-value pairs. The expected format is one key="value" per line.
// Returns nil if the file does not exist.
func parseDownwardAPIFile(path string) (map[string]string, error) {
	f, err := os.Open(path) // #nosec G304 -- path is constructed from trusted config + fixed filenames
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	result := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || key == "" {
			continue
		}
		result[key] = strings.Trim(value, "\"")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func readPodInfoFile(dir, name string) map[string]string {
	p := filepath.Join(dir, name)
	values, err := parseDownwardAPIFile(p)
	if err != nil {
		logger.SysWarnf("failed to read k8s %s from %s: %v", name, p, err)
		return nil
	}
	return values
}

// GetPodInfo returns the cached Downward API data found under audit.k8s.podinfo,
// or nil when neither the labels nor the annotations file exist (i.e. not
// running in Kubernetes or the volume is not mounted).  The files are read at
// most once per process.
func GetPodInfo() *PodInfo {
	podInfoOnce.Do(func() {
		dir := VConfig.GetString(AuditK8sPodinfo)
		labels := readPodInfoFile(dir, "labels")
		annotations := readPodInfoFile(dir, "annotations")
		if labels == nil && annotations == nil {
			return
		}
		podInfo = &PodInfo{Labels: labels, Annotations: annotations}
	})
	return podInfo
}
