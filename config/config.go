// Package config loads the agent's task file. Each entry under tasks is
// keyed by its topic suffix and binds a probe, an interval and a publish
// policy:
//
//	topic_prefix: edge-01/beacon
//	tasks:
//	  sys/load:
//	    probe: loadavg
//	    interval: 10s
//	    qos: 1
//	  sys/mem:
//	    probe: meminfo
//	    interval: 1m
//	    json: true
//	    record: true
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ecociel/beacon/task"
)

type File struct {
	TopicPrefix *string              `yaml:"topic_prefix"`
	Tasks       map[string]TaskEntry `yaml:"tasks"`
}

type TaskEntry struct {
	Probe    string `yaml:"probe"`
	Interval string `yaml:"interval"`
	QoS      int    `yaml:"qos"`
	Record   bool   `yaml:"record"`
	// Pointers distinguish "unset" from an explicit false/empty value:
	// json defaults to the agent-wide flag, test defaults to true and
	// topic_prefix falls back to the file-level then host-derived prefix.
	JSON        *bool   `yaml:"json"`
	Test        *bool   `yaml:"test"`
	TopicPrefix *string `yaml:"topic_prefix"`
}

// TaskDef is one fully resolved task definition.
type TaskDef struct {
	Spec   task.Spec
	Probe  string
	Record bool
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for name, entry := range f.Tasks {
		if entry.Probe == "" {
			return nil, fmt.Errorf("task %s: missing probe", name)
		}
		if entry.Interval == "" {
			return nil, fmt.Errorf("task %s: missing interval", name)
		}
	}
	return &f, nil
}

// Defs resolves every task entry against the agent-wide defaults, sorted by
// topic suffix so registration order is deterministic.
func (f *File) Defs(defaultPrefix string, defaultJSON bool) []TaskDef {
	names := make([]string, 0, len(f.Tasks))
	for name := range f.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]TaskDef, 0, len(names))
	for _, name := range names {
		entry := f.Tasks[name]

		prefix := defaultPrefix
		if f.TopicPrefix != nil {
			prefix = *f.TopicPrefix
		}
		if entry.TopicPrefix != nil {
			prefix = *entry.TopicPrefix
		}

		jsonMode := defaultJSON
		if entry.JSON != nil {
			jsonMode = *entry.JSON
		}

		test := true
		if entry.Test != nil {
			test = *entry.Test
		}

		defs = append(defs, TaskDef{
			Spec: task.Spec{
				Name:        name,
				TopicPrefix: prefix,
				Interval:    entry.Interval,
				QoS:         entry.QoS,
				JSON:        jsonMode,
				Test:        test,
			},
			Probe:  entry.Probe,
			Record: entry.Record,
		})
	}
	return defs
}

// DefaultTopicPrefix is the host-derived namespace used when no prefix is
// configured.
func DefaultTopicPrefix() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "beacon"
	}
	return host + "/beacon"
}
