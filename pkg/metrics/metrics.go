// Copyright The NRI Plugins Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logger "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/log"
)

var log = logger.Get("metrics")

type (
	// Collector is a named prometheus.Collector which can be turned on and
	// off at runtime.
	Collector struct {
		collector prometheus.Collector
		name      string
		group     string
		enabled   bool
		prefixed  bool
	}

	// CollectorOption is an option for a Collector.
	CollectorOption func(*Collector)
)

const (
	// DefaultName is the name of the default group.
	DefaultName = "default"
)

// WithoutPrefix registers the collector without the namespace and group
// prefixes.
func WithoutPrefix() CollectorOption {
	return func(c *Collector) {
		c.prefixed = false
	}
}

// NewCollector wraps the given collector.
func NewCollector(name string, collector prometheus.Collector, options ...CollectorOption) *Collector {
	c := &Collector{
		name:      name,
		collector: collector,
		prefixed:  true,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Name returns the full name of the collector, <group>/<name>.
func (c *Collector) Name() string {
	return c.group + "/" + c.name
}

// Matches returns true if the collector matches the given glob pattern,
// either by group, by name or by full name.
func (c *Collector) Matches(glob string) bool {
	for _, name := range []string{c.group, c.name, c.Name()} {
		if glob == name {
			return true
		}
		ok, err := path.Match(glob, name)
		if err != nil {
			log.Warn("invalid glob pattern %q: %v", glob, err)
			return false
		}
		if ok {
			return true
		}
	}
	return false
}

// IsEnabled returns true if the collector is enabled.
func (c *Collector) IsEnabled() bool {
	return c.enabled
}

// Describe implements the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.collector.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if !c.enabled {
		return
	}
	c.collector.Collect(ch)
}

type (
	// Registry is a collection of collectors, organized in groups.
	Registry struct {
		sync.Mutex
		groups map[string][]*Collector
	}

	// RegisterOptions are options for registering collectors.
	RegisterOptions struct {
		group string
		copts []CollectorOption
	}

	// RegisterOption is an option for registering collectors.
	RegisterOption func(*RegisterOptions)
)

// WithGroup registers a collector in the given group.
func WithGroup(name string) RegisterOption {
	return func(o *RegisterOptions) {
		if name == "" {
			name = DefaultName
		}
		o.group = name
	}
}

// WithCollectorOptions registers a collector with the given options.
func WithCollectorOptions(opts ...CollectorOption) RegisterOption {
	return func(o *RegisterOptions) {
		o.copts = append(o.copts, opts...)
	}
}

// NewRegistry creates a new registry.
func NewRegistry() *Registry {
	return &Registry{
		groups: make(map[string][]*Collector),
	}
}

// Register registers a collector with the registry.
func (r *Registry) Register(name string, collector prometheus.Collector, opts ...RegisterOption) error {
	options := &RegisterOptions{group: DefaultName}
	for _, o := range opts {
		o(options)
	}

	r.Lock()
	defer r.Unlock()

	for _, c := range r.groups[options.group] {
		if c.name == name {
			return fmt.Errorf("collector %s/%s already registered", options.group, name)
		}
	}

	c := NewCollector(name, collector, options.copts...)
	c.group = options.group
	r.groups[c.group] = append(r.groups[c.group], c)
	log.Info("registered collector %q", c.Name())

	return nil
}

// Configure enables the collectors matching any of the given globs and
// disables the rest. It returns an error listing the globs which did not
// match any collector.
func (r *Registry) Configure(enabled []string) error {
	log.Info("configuring collectors, enabled=[%s]", strings.Join(enabled, ","))

	r.Lock()
	defer r.Unlock()

	match := map[string]struct{}{}
	for _, grp := range r.groups {
		for _, c := range grp {
			c.enabled = false
			for _, glob := range enabled {
				if c.Matches(glob) {
					match[glob] = struct{}{}
					c.enabled = true
				}
			}
			log.Debug("collector %q enabled: %v", c.Name(), c.enabled)
		}
	}

	unmatched := []string{}
	for _, glob := range enabled {
		if _, ok := match[glob]; !ok {
			unmatched = append(unmatched, glob)
		}
	}
	if len(unmatched) > 0 {
		return fmt.Errorf("no collectors match globs %s", strings.Join(unmatched, ", "))
	}

	return nil
}

// Collectors returns the full names of the collectors, sorted.
func (r *Registry) Collectors() []string {
	r.Lock()
	defer r.Unlock()

	var names []string
	for _, grp := range r.groups {
		for _, c := range grp {
			names = append(names, c.Name())
		}
	}
	sort.Strings(names)
	return names
}

func prefixedRegisterer(prefix string, reg prometheus.Registerer) prometheus.Registerer {
	if prefix != "" {
		return prometheus.WrapRegistererWithPrefix(prefix+"_", reg)
	}
	return reg
}

type (
	// Gatherer is a prometheus gatherer for the enabled collectors of a
	// registry.
	Gatherer struct {
		*prometheus.Registry
		namespace string
		enabled   []string
	}

	// GathererOption is an option for the gatherer.
	GathererOption func(*Gatherer)
)

// WithNamespace sets the common namespace prefix of gathered metrics.
func WithNamespace(namespace string) GathererOption {
	return func(g *Gatherer) {
		g.namespace = namespace
	}
}

// WithMetrics sets the globs of the collectors to enable.
func WithMetrics(enabled []string) GathererOption {
	return func(g *Gatherer) {
		g.enabled = enabled
	}
}

// NewGatherer configures the registry and creates a gatherer for it.
// Prefixed collectors are gathered as <namespace>_<group>_<metric>.
func (r *Registry) NewGatherer(opts ...GathererOption) (*Gatherer, error) {
	g := &Gatherer{
		Registry: prometheus.NewPedanticRegistry(),
	}
	for _, o := range opts {
		o(g)
	}

	if err := r.Configure(g.enabled); err != nil {
		return nil, err
	}

	r.Lock()
	defer r.Unlock()

	ns := prefixedRegisterer(g.namespace, g.Registry)
	for name, grp := range r.groups {
		prefixed := prefixedRegisterer(name, ns)
		for _, c := range grp {
			reg := prometheus.Registerer(g.Registry)
			if c.prefixed {
				reg = prefixed
			}
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("failed to register collector %q: %w", c.Name(), err)
			}
		}
	}

	return g, nil
}

// Handler returns an HTTP handler serving the metrics of the gatherer.
func (g *Gatherer) Handler() http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

var (
	defaultRegistry = NewRegistry()
)

// Default returns the default registry.
func Default() *Registry {
	return defaultRegistry
}

// Register registers a collector with the default registry.
func Register(name string, collector prometheus.Collector, opts ...RegisterOption) error {
	return Default().Register(name, collector, opts...)
}

// MustRegister registers a collector with the default registry, panicking on error.
func MustRegister(name string, collector prometheus.Collector, opts ...RegisterOption) {
	if err := Register(name, collector, opts...); err != nil {
		panic(err)
	}
}

// NewGatherer creates a new gatherer for the default registry.
func NewGatherer(opts ...GathererOption) (*Gatherer, error) {
	return Default().NewGatherer(opts...)
}
