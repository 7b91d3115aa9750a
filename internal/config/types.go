package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Paintersrp/procvisor/internal/runtime"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// Manifest mirrors the procvisor.yaml document structure.
type Manifest struct {
	Version   string                  `yaml:"version"`
	Workdir   string                  `yaml:"workdir"`
	Defaults  Defaults                `yaml:"defaults"`
	Processes map[string]*ProcessSpec `yaml:"processes"`
}

// Defaults captures settings applied to every process that does not
// override them.
type Defaults struct {
	ReadyTimeout Duration `yaml:"readyTimeout"`
	InheritEnv   *bool    `yaml:"inheritEnv"`
	WaitMode     string   `yaml:"waitMode"`
}

// ProcessSpec describes one supervised process.
type ProcessSpec struct {
	Command       []string          `yaml:"command"`
	Env           map[string]string `yaml:"env"`
	EnvFromFile   string            `yaml:"envFromFile"`
	InheritEnv    *bool             `yaml:"inheritEnv"`
	Workdir       string            `yaml:"workdir"`
	AlwaysRestart bool              `yaml:"alwaysRestart"`
	ReadyTimeout  Duration          `yaml:"readyTimeout"`
	WaitMode      string            `yaml:"waitMode"`
	Ready         *ProbeSpec        `yaml:"ready"`

	// ResolvedWorkdir is the absolute working directory computed by Load.
	ResolvedWorkdir string `yaml:"-"`
}

// ProbeSpec configures a readiness check. When several probes are set the
// process is ready as soon as any of them succeeds.
type ProbeSpec struct {
	HTTP    *HTTPProbeSpec `yaml:"http"`
	TCP     *TCPProbeSpec  `yaml:"tcp"`
	Command *CommandProbe  `yaml:"cmd"`
}

// HTTPProbeSpec defines an HTTP probe.
type HTTPProbeSpec struct {
	URL          string `yaml:"url"`
	ExpectStatus []int  `yaml:"expectStatus"`
}

// TCPProbeSpec defines a TCP probe.
type TCPProbeSpec struct {
	Address string `yaml:"address"`
}

// CommandProbe defines a command probe.
type CommandProbe struct {
	Command []string `yaml:"command"`
}

// InheritsEnv reports whether the host environment is merged under Env.
// Processes inherit unless told otherwise.
func (p *ProcessSpec) InheritsEnv() bool {
	if p == nil || p.InheritEnv == nil {
		return true
	}
	return *p.InheritEnv
}

// Clone returns a deep copy of the process spec.
func (p *ProcessSpec) Clone() *ProcessSpec {
	if p == nil {
		return nil
	}
	dup := *p
	if len(p.Command) > 0 {
		dup.Command = append([]string(nil), p.Command...)
	}
	if len(p.Env) > 0 {
		dup.Env = make(map[string]string, len(p.Env))
		for k, v := range p.Env {
			dup.Env[k] = v
		}
	}
	if p.InheritEnv != nil {
		inherit := *p.InheritEnv
		dup.InheritEnv = &inherit
	}
	dup.Ready = p.Ready.Clone()
	return &dup
}

// Clone returns a deep copy of the probe spec.
func (p *ProbeSpec) Clone() *ProbeSpec {
	if p == nil {
		return nil
	}
	dup := &ProbeSpec{}
	if p.HTTP != nil {
		dup.HTTP = &HTTPProbeSpec{URL: p.HTTP.URL, ExpectStatus: append([]int(nil), p.HTTP.ExpectStatus...)}
	}
	if p.TCP != nil {
		dup.TCP = &TCPProbeSpec{Address: p.TCP.Address}
	}
	if p.Command != nil {
		dup.Command = &CommandProbe{Command: append([]string(nil), p.Command.Command...)}
	}
	return dup
}

// ApplyDefaults merges defaults onto processes.
func (m *Manifest) ApplyDefaults() error {
	for name, proc := range m.Processes {
		if proc == nil {
			return fmt.Errorf("process %q is null", name)
		}
		if !proc.ReadyTimeout.IsSet() && m.Defaults.ReadyTimeout.IsSet() {
			proc.ReadyTimeout = m.Defaults.ReadyTimeout
		}
		if proc.InheritEnv == nil && m.Defaults.InheritEnv != nil {
			inherit := *m.Defaults.InheritEnv
			proc.InheritEnv = &inherit
		}
		proc.WaitMode = strings.TrimSpace(proc.WaitMode)
		if proc.WaitMode == "" {
			proc.WaitMode = m.Defaults.WaitMode
		}
	}
	return nil
}

// Validate enforces manifest invariants.
func (m *Manifest) Validate() error {
	if m.Version == "" {
		return fmt.Errorf("%s: is required", fieldPath("version"))
	}
	if len(m.Processes) == 0 {
		return fmt.Errorf("%s: must define at least one process", fieldPath("processes"))
	}
	if _, err := runtime.ParseWaitMode(m.Defaults.WaitMode); err != nil {
		return fmt.Errorf("%s: %w", fieldPath("defaults", "waitMode"), err)
	}
	if m.Defaults.ReadyTimeout.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", fieldPath("defaults", "readyTimeout"))
	}
	for _, name := range m.ProcessNames() {
		if err := validateProcess(name, m.Processes[name]); err != nil {
			return err
		}
	}
	return nil
}

func validateProcess(name string, proc *ProcessSpec) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s: process name must be non-empty", fieldPath("processes"))
	}
	if proc == nil {
		return fmt.Errorf("%s: is null", processField(name))
	}
	if len(proc.Command) == 0 || strings.TrimSpace(proc.Command[0]) == "" {
		return fmt.Errorf("%s: is required", processField(name, "command"))
	}
	if proc.ReadyTimeout.Duration < 0 {
		return fmt.Errorf("%s: must be non-negative", processField(name, "readyTimeout"))
	}
	if _, err := runtime.ParseWaitMode(proc.WaitMode); err != nil {
		return fmt.Errorf("%s: %w", processField(name, "waitMode"), err)
	}
	for key := range proc.Env {
		if key == "" || strings.ContainsAny(key, "=\x00") {
			return fmt.Errorf("%s: invalid variable name %q", processField(name, "env"), key)
		}
	}
	if proc.Ready != nil {
		if err := validateProbe(name, proc.Ready); err != nil {
			return err
		}
	}
	return nil
}

func validateProbe(name string, spec *ProbeSpec) error {
	if spec.HTTP == nil && spec.TCP == nil && spec.Command == nil {
		return fmt.Errorf("%s: must define http, tcp or cmd", processField(name, "ready"))
	}
	if spec.HTTP != nil {
		url := strings.TrimSpace(spec.HTTP.URL)
		if url == "" {
			return fmt.Errorf("%s: is required", processField(name, "ready", "http", "url"))
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("%s: must be an http or https URL", processField(name, "ready", "http", "url"))
		}
		for _, code := range spec.HTTP.ExpectStatus {
			if code < 100 || code > 599 {
				return fmt.Errorf("%s: invalid status %d", processField(name, "ready", "http", "expectStatus"), code)
			}
		}
	}
	if spec.TCP != nil && strings.TrimSpace(spec.TCP.Address) == "" {
		return fmt.Errorf("%s: is required", processField(name, "ready", "tcp", "address"))
	}
	if spec.Command != nil && len(spec.Command.Command) == 0 {
		return fmt.Errorf("%s: is required", processField(name, "ready", "cmd", "command"))
	}
	return nil
}

// ProcessNames returns the manifest's process names in sorted order.
func (m *Manifest) ProcessNames() []string {
	names := make([]string, 0, len(m.Processes))
	for name := range m.Processes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fieldPath(parts ...string) string {
	return strings.Join(parts, ".")
}

func processField(name string, parts ...string) string {
	return fieldPath(append([]string{"processes", name}, parts...)...)
}
