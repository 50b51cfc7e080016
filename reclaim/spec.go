package reclaim

import (
	"fmt"
	"sort"

	"github.com/nathants/lambda-reclaim/lib"
)

const (
	DefaultInfraSetName   = "lambda-reclaim"
	DefaultPrefix         = "my-cache-test"
	DefaultCount          = 200
	DefaultMemoryMB       = 1024
	DefaultTimeoutSeconds = 3
	DefaultEntrypoint     = "function/main.go"

	minMemoryMB       = 128
	maxMemoryMB       = 10240
	minTimeoutSeconds = 1
	maxTimeoutSeconds = 900
)

// FunctionSpec is the configuration shared by every provisioned function.
type FunctionSpec struct {
	Name           string `json:"name"    diff:"-"`
	Runtime        string `json:"runtime" diff:"runtime"`
	MemoryMB       int    `json:"memory"  diff:"memory"`
	TimeoutSeconds int    `json:"timeout" diff:"timeout"`
	Entrypoint     string `json:"entrypoint,omitempty" diff:"-"`
}

func FunctionName(prefix string, i int) string {
	return fmt.Sprintf("%s-%03d", prefix, i)
}

func FunctionNames(prefix string, count int) []string {
	names := make([]string, 0, count)
	for i := 0; i < count; i++ {
		names = append(names, FunctionName(prefix, i))
	}
	return names
}

// Declare returns count copies of template named prefix-000 .. prefix-(count-1).
func Declare(prefix string, count int, template FunctionSpec) ([]FunctionSpec, error) {
	if prefix == "" {
		return nil, fmt.Errorf("prefix cannot be empty")
	}
	if count <= 0 {
		return nil, fmt.Errorf("count should be positive, got: %d", count)
	}
	if template.MemoryMB < minMemoryMB || template.MemoryMB > maxMemoryMB {
		return nil, fmt.Errorf("memory should be in [%d, %d], got: %d", minMemoryMB, maxMemoryMB, template.MemoryMB)
	}
	if template.TimeoutSeconds < minTimeoutSeconds || template.TimeoutSeconds > maxTimeoutSeconds {
		return nil, fmt.Errorf("timeout should be in [%d, %d], got: %d", minTimeoutSeconds, maxTimeoutSeconds, template.TimeoutSeconds)
	}
	runtime, _, err := lib.LambdaRuntimeFor(template.Entrypoint)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	specs := make([]FunctionSpec, 0, count)
	for _, name := range FunctionNames(prefix, count) {
		if seen[name] {
			return nil, fmt.Errorf("duplicate function name: %s", name)
		}
		seen[name] = true
		spec := template
		spec.Name = name
		spec.Runtime = runtime
		specs = append(specs, spec)
	}
	return specs, nil
}

// InfraSet renders specs as a libaws infraset.
func InfraSet(name string, specs []FunctionSpec) (*lib.InfraSet, error) {
	if name == "" {
		return nil, fmt.Errorf("infraset name cannot be empty")
	}
	infraSet := &lib.InfraSet{
		Name:   name,
		Lambda: map[string]*lib.InfraLambda{},
	}
	for _, spec := range specs {
		if _, ok := infraSet.Lambda[spec.Name]; ok {
			return nil, fmt.Errorf("duplicate function name: %s", spec.Name)
		}
		infraSet.Lambda[spec.Name] = &lib.InfraLambda{
			Entrypoint: spec.Entrypoint,
			Attr: []string{
				lib.AttrMemory(spec.MemoryMB),
				lib.AttrTimeout(spec.TimeoutSeconds),
			},
		}
	}
	return infraSet, nil
}

// SpecsFromInfra reads specs back from a parsed infraset, sorted by name.
func SpecsFromInfra(infraSet *lib.InfraSet) ([]FunctionSpec, error) {
	var specs []FunctionSpec
	for name, infraLambda := range infraSet.Lambda {
		memory, err := infraLambda.Memory()
		if err != nil {
			return nil, fmt.Errorf("lambda %s memory: %w", name, err)
		}
		timeout, err := infraLambda.Timeout()
		if err != nil {
			return nil, fmt.Errorf("lambda %s timeout: %w", name, err)
		}
		specs = append(specs, FunctionSpec{
			Name:           name,
			Runtime:        infraLambda.Runtime(),
			MemoryMB:       memory,
			TimeoutSeconds: timeout,
			Entrypoint:     infraLambda.Entrypoint,
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs, nil
}

func SpecNames(specs []FunctionSpec) []string {
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.Name)
	}
	return names
}
