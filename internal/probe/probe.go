// Package probe implements readiness checks for supervised processes: the
// HTTP, TCP and command predicates, the doubling-and-clamped backoff policy,
// and the bounded polling loop that drives them.
package probe

import (
	"context"
	"errors"
	"fmt"

	"github.com/Paintersrp/procvisor/internal/config"
)

// Prober performs a single readiness check. A nil error means ready.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) error

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context) error {
	return f(ctx)
}

// New constructs a Prober for the supplied specification. A nil spec yields a
// nil Prober.
func New(spec *config.ProbeSpec) (Prober, error) {
	if spec == nil {
		return nil, nil
	}
	var probes []namedProber
	if spec.HTTP != nil {
		probes = append(probes, namedProber{alias: "http", probe: HTTP(spec.HTTP.URL, spec.HTTP.ExpectStatus...)})
	}
	if spec.TCP != nil {
		probes = append(probes, namedProber{alias: "tcp", probe: TCP(spec.TCP.Address)})
	}
	if spec.Command != nil {
		prober, err := Command(spec.Command.Command...)
		if err != nil {
			return nil, err
		}
		probes = append(probes, namedProber{alias: "cmd", probe: prober})
	}

	switch len(probes) {
	case 0:
		return nil, errors.New("probe: missing configuration")
	case 1:
		return probes[0].probe, nil
	default:
		return &anyProber{terms: probes}, nil
	}
}

// Any returns a Prober that succeeds as soon as one of probers succeeds.
func Any(probers ...Prober) Prober {
	terms := make([]namedProber, 0, len(probers))
	for i, p := range probers {
		if p == nil {
			continue
		}
		terms = append(terms, namedProber{alias: fmt.Sprintf("probe[%d]", i), probe: p})
	}
	return &anyProber{terms: terms}
}

// Check adapts a Prober into a CheckFunc for Poll.
func Check(p Prober) CheckFunc {
	return func(ctx context.Context) (bool, error) {
		if err := p.Probe(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
}

type namedProber struct {
	alias string
	probe Prober
}

type anyProber struct {
	terms []namedProber
}

func (m *anyProber) Probe(ctx context.Context) error {
	if len(m.terms) == 0 {
		return errors.New("no probes executed")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		alias string
		err   error
	}

	results := make(chan result, len(m.terms))
	for _, term := range m.terms {
		go func(alias string, prober Prober) {
			results <- result{alias: alias, err: prober.Probe(ctx)}
		}(term.alias, term.probe)
	}

	var errs []error
	for range m.terms {
		select {
		case <-ctx.Done():
			if len(errs) == 0 {
				return ctx.Err()
			}
			return errors.Join(errs...)
		case res := <-results:
			if res.err == nil {
				return nil
			}
			errs = append(errs, fmt.Errorf("%s: %w", res.alias, res.err))
		}
	}
	return errors.Join(errs...)
}
