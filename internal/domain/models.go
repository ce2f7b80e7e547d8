package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Key identifies a check by project and name.
type Key struct {
	Project string `json:"project"`
	Name    string `json:"name"`
}

func (k Key) String() string { return k.Project + "/" + k.Name }

// ID is the composite "<project>--<name>" used for diagram nodes and page anchors.
func (k Key) ID() string { return k.Project + "--" + k.Name }

// Check is one catalog entry. It is never mutated after loading.
type Check struct {
	Project         string         `json:"project" yaml:"project"`
	Name            string         `json:"name" yaml:"name"`
	URL             string         `json:"url" yaml:"url"`
	TTL             int            `json:"ttl" yaml:"ttl"` // seconds
	Tags            []string       `json:"tags" yaml:"tags"`
	Description     string         `json:"description" yaml:"description"`
	Documentation   string         `json:"documentation" yaml:"documentation"`
	Troubleshooting string         `json:"troubleshooting" yaml:"troubleshooting"`
	Parameters      map[string]any `json:"parameters" yaml:"parameters"`
}

func (c Check) Key() Key { return Key{Project: c.Project, Name: c.Name} }

func (c Check) Interval() time.Duration { return time.Duration(c.TTL) * time.Second }

// DisplayParameters lists ttl and the check parameters as "k = v" lines, sorted by key.
func (c Check) DisplayParameters() []string {
	all := make(map[string]any, len(c.Parameters)+1)
	all["ttl"] = c.TTL
	for k, v := range c.Parameters {
		all[k] = v
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s = %v", k, all[k]))
	}
	return out
}

// Tooltip is the text shown when hovering the check's diagram node.
func (c Check) Tooltip() string {
	return strings.TrimRight(fmt.Sprintf("%s/%s:\n%s", c.Project, c.Name, c.Description), "\n")
}

// Result is the outcome of one fetch attempt.
type Result struct {
	Success  bool       `json:"success"`
	Data     any        `json:"data"`
	Duration float64    `json:"duration"`           // seconds
	Datetime *time.Time `json:"datetime,omitempty"` // when the upstream check last ran
}

// FailureResult is the synthetic result recorded when a fetch could not complete.
func FailureResult(err error) Result {
	return Result{Success: false, Data: err.Error(), Duration: 0}
}
