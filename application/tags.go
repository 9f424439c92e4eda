// Package application describes the identity of the instrumented service:
// the application/service/cluster/shard tags stamped on every span and
// derived metric, and the reporting source (hostname).
package application

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
)

// Tag keys treated as single-valued on spans.
const (
	ApplicationKey = "application"
	ServiceKey     = "service"
	ClusterKey     = "cluster"
	ShardKey       = "shard"
	ComponentKey   = "component"
)

// NoneValue stands in for an unset cluster, shard, or component.
const NoneValue = "none"

// sourceFallback is used when hostname resolution fails.
const sourceFallback = "unknown"

// Tags identifies the instrumented application.
type Tags struct {
	Application string            `envconfig:"APP_NAME"`
	Service     string            `envconfig:"APP_SERVICE"`
	Cluster     string            `envconfig:"APP_CLUSTER" default:"none"`
	Shard       string            `envconfig:"APP_SHARD" default:"none"`
	Custom      map[string]string `envconfig:"APP_CUSTOM_TAGS"`
}

// New creates tags for an application and service, the two required fields.
func New(application, service string) (Tags, error) {
	t := Tags{
		Application: application,
		Service:     service,
		Cluster:     NoneValue,
		Shard:       NoneValue,
	}
	return t, t.validate()
}

// Load reads tags from APP_* environment variables.
func Load() (Tags, error) {
	var t Tags
	if err := envconfig.Process("", &t); err != nil {
		return Tags{}, fmt.Errorf("load application tags: %w", err)
	}
	return t, t.validate()
}

func (t Tags) validate() error {
	if t.Application == "" || t.Service == "" {
		return fmt.Errorf("application and service tags are required")
	}
	return nil
}

// Map returns the tags as an ordered-insensitive map, custom tags included.
func (t Tags) Map() map[string]string {
	m := make(map[string]string, 4+len(t.Custom))
	for k, v := range t.Custom {
		m[k] = v
	}
	m[ApplicationKey] = t.Application
	m[ServiceKey] = t.Service
	m[ClusterKey] = t.Cluster
	m[ShardKey] = t.Shard
	return m
}

// Source returns the reporting source: the host name, or a static fallback
// when resolution fails.
func Source() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return sourceFallback
	}
	return host
}
