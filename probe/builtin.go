package probe

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/ecociel/beacon/domain"
)

// RegisterBuiltins adds the probes shipped with the agent. The /proc probes
// return an evaluation error on non-Linux hosts; tasks referencing them are
// still created and keep retrying, matching the policy for any other failing
// probe.
func RegisterBuiltins(r *Registry) {
	r.Register("hostname", hostname)
	r.Register("numcpu", numCPU)
	r.Register("time.unix", unixTime)
	r.Register("uptime", uptime)
	r.Register("loadavg", loadavg)
	r.Register("meminfo", meminfo)
}

func hostname(ctx context.Context) (domain.Result, error) {
	name, err := os.Hostname()
	if err != nil {
		return domain.Absent(), err
	}
	return domain.Str(name), nil
}

func numCPU(ctx context.Context) (domain.Result, error) {
	return domain.Int(int64(runtime.NumCPU())), nil
}

func unixTime(ctx context.Context) (domain.Result, error) {
	return domain.Int(time.Now().Unix()), nil
}

// uptime reads /proc/uptime and returns the first field, seconds since boot.
func uptime(ctx context.Context) (domain.Result, error) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return domain.Absent(), err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 1 {
		return domain.Absent(), fmt.Errorf("malformed /proc/uptime: %q", data)
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return domain.Absent(), fmt.Errorf("parse /proc/uptime: %w", err)
	}
	return domain.Float(secs), nil
}

// loadavg returns the 1/5/15 minute load averages as a named record.
func loadavg(ctx context.Context) (domain.Result, error) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return domain.Absent(), err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return domain.Absent(), fmt.Errorf("malformed /proc/loadavg: %q", data)
	}
	vals := make([]float64, 3)
	for i := 0; i < 3; i++ {
		vals[i], err = strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return domain.Absent(), fmt.Errorf("parse /proc/loadavg: %w", err)
		}
	}
	return domain.Rec(
		domain.Field{Key: "load1", Value: domain.Float(vals[0])},
		domain.Field{Key: "load5", Value: domain.Float(vals[1])},
		domain.Field{Key: "load15", Value: domain.Float(vals[2])},
	), nil
}

// meminfoKeys is the subset of /proc/meminfo published, in publish order.
var meminfoKeys = []string{"MemTotal", "MemFree", "MemAvailable", "Buffers", "Cached", "SwapTotal", "SwapFree"}

// meminfo returns selected /proc/meminfo fields as a mapping, values in kB.
func meminfo(ctx context.Context) (domain.Result, error) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return domain.Absent(), err
	}
	byKey := make(map[string]int64)
	for _, line := range strings.Split(string(data), "\n") {
		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 1 {
			continue
		}
		kb, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		byKey[name] = kb
	}
	var out []domain.Field
	for _, key := range meminfoKeys {
		if kb, ok := byKey[key]; ok {
			out = append(out, domain.Field{Key: key, Value: domain.Int(kb)})
		}
	}
	if len(out) == 0 {
		return domain.Absent(), fmt.Errorf("no known fields in /proc/meminfo")
	}
	return domain.Map(out...), nil
}
