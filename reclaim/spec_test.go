package reclaim

import (
	"os"
	"path"
	"testing"

	"github.com/nathants/lambda-reclaim/lib"
)

func template() FunctionSpec {
	return FunctionSpec{
		MemoryMB:       DefaultMemoryMB,
		TimeoutSeconds: DefaultTimeoutSeconds,
		Entrypoint:     DefaultEntrypoint,
	}
}

func TestDeclare(t *testing.T) {
	specs, err := Declare(DefaultPrefix, DefaultCount, template())
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 200 {
		t.Fatalf("got: %d, want: 200", len(specs))
	}
	if specs[0].Name != "my-cache-test-000" || specs[199].Name != "my-cache-test-199" {
		t.Errorf("got: %s .. %s", specs[0].Name, specs[199].Name)
	}
	seen := map[string]bool{}
	for _, spec := range specs {
		if seen[spec.Name] {
			t.Errorf("duplicate: %s", spec.Name)
		}
		seen[spec.Name] = true
		if spec.Runtime != lib.LambdaRuntimeGo || spec.MemoryMB != 1024 || spec.TimeoutSeconds != 3 {
			t.Errorf("got: %+v", spec)
		}
	}
}

func TestDeclareInvalid(t *testing.T) {
	type test struct {
		name   string
		prefix string
		count  int
		modify func(*FunctionSpec)
	}
	tests := []test{
		{"empty prefix", "", 1, func(*FunctionSpec) {}},
		{"zero count", "p", 0, func(*FunctionSpec) {}},
		{"low memory", "p", 1, func(s *FunctionSpec) { s.MemoryMB = 64 }},
		{"high memory", "p", 1, func(s *FunctionSpec) { s.MemoryMB = 20000 }},
		{"zero timeout", "p", 1, func(s *FunctionSpec) { s.TimeoutSeconds = 0 }},
		{"long timeout", "p", 1, func(s *FunctionSpec) { s.TimeoutSeconds = 901 }},
		{"bad entrypoint", "p", 1, func(s *FunctionSpec) { s.Entrypoint = "main.rs" }},
	}
	for _, test := range tests {
		tmpl := template()
		test.modify(&tmpl)
		_, err := Declare(test.prefix, test.count, tmpl)
		if err == nil {
			t.Errorf("%s: expected error", test.name)
		}
	}
}

func TestInfraSetRoundTrip(t *testing.T) {
	specs, err := Declare("exp", 12, template())
	if err != nil {
		t.Fatal(err)
	}
	infraSet, err := InfraSet(DefaultInfraSetName, specs)
	if err != nil {
		t.Fatal(err)
	}
	data, err := lib.InfraMarshal(infraSet)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	pth := path.Join(dir, "infra.yaml")
	err = os.WriteFile(pth, data, 0644)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := lib.InfraParse(pth)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Name != DefaultInfraSetName {
		t.Errorf("got: %s, want: %s", parsed.Name, DefaultInfraSetName)
	}
	got, err := SpecsFromInfra(parsed)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(specs) {
		t.Fatalf("got: %d, want: %d", len(got), len(specs))
	}
	for i := range specs {
		want := specs[i]
		want.Entrypoint = path.Join(dir, DefaultEntrypoint)
		if got[i] != want {
			t.Errorf("got: %+v, want: %+v", got[i], want)
		}
	}
	names := lib.InfraLambdaNames(parsed)
	if names[0] != "exp-000" || names[11] != "exp-011" {
		t.Errorf("got: %v", names)
	}
}

func TestInfraSetRejectsDuplicates(t *testing.T) {
	spec := template()
	spec.Name = "dup"
	_, err := InfraSet("x", []FunctionSpec{spec, spec})
	if err == nil {
		t.Error("expected error")
	}
}
