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

// Package metrics is a thin layer over prometheus collectors. Collectors
// are registered by name in groups, can be enabled and disabled at runtime
// by glob patterns, and are exported with a common namespace prefix.
//
// Simple usage:
//
//	metrics.MustRegister("reclaim", collector, metrics.WithGroup("memory"))
//
//	g, err := metrics.NewGatherer(
//	    metrics.WithNamespace("memd"),
//	    metrics.WithMetrics([]string{"*"}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.Handle("/metrics", g.Handler())
package metrics
