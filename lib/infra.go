package lib

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	infraKeyName   = "name"
	infraKeyLambda = "lambda"
)

// InfraSet is the subset of the libaws infra.yaml format that declares lambdas.
type InfraSet struct {
	Name   string                  `yaml:"name,omitempty"`
	Lambda map[string]*InfraLambda `yaml:"lambda,omitempty"`
}

const (
	infraKeyLambdaName       = "name"
	infraKeyLambdaEntrypoint = "entrypoint"
	infraKeyLambdaPolicy     = "policy"
	infraKeyLambdaAllow      = "allow"
	infraKeyLambdaAttr       = "attr"
	infraKeyLambdaRequire    = "require"
	infraKeyLambdaEnv        = "env"
	infraKeyLambdaInclude    = "include"
)

type InfraLambda struct {
	dir          string // parent dir of infra.yaml file
	runtime      string
	handler      string
	infraSetName string

	Name       string   `json:"name,omitempty"       yaml:"name,omitempty"`
	Entrypoint string   `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`
	Policy     []string `json:"policy,omitempty"     yaml:"policy,omitempty"`
	Allow      []string `json:"allow,omitempty"      yaml:"allow,omitempty"`
	Attr       []string `json:"attr,omitempty"       yaml:"attr,omitempty"`
	Require    []string `json:"require,omitempty"    yaml:"require,omitempty"`
	Env        []string `json:"env,omitempty"        yaml:"env,omitempty"`
	Include    []string `json:"include,omitempty"    yaml:"include,omitempty"`
}

func (l *InfraLambda) Runtime() string {
	return l.runtime
}

func (l *InfraLambda) Handler() string {
	return l.handler
}

// AttrInt returns the integer value of attr key, or defaultValue when unset.
func (l *InfraLambda) AttrInt(key string, defaultValue int) (int, error) {
	for _, attr := range l.Attr {
		k, v, err := SplitOnce(attr, "=")
		if err != nil {
			return 0, err
		}
		if k == key {
			return strconv.Atoi(v)
		}
	}
	return defaultValue, nil
}

func (l *InfraLambda) Memory() (int, error) {
	return l.AttrInt(lambdaAttrMemory, LambdaAttrMemoryDefault)
}

func (l *InfraLambda) Timeout() (int, error) {
	return l.AttrInt(lambdaAttrTimeout, LambdaAttrTimeoutDefault)
}

func AttrMemory(mb int) string {
	return fmt.Sprintf("%s=%d", lambdaAttrMemory, mb)
}

func AttrTimeout(seconds int) string {
	return fmt.Sprintf("%s=%d", lambdaAttrTimeout, seconds)
}

// LambdaRuntimeFor maps an entrypoint to the runtime and handler libaws deploys it with.
func LambdaRuntimeFor(entrypoint string) (runtime, handler string, err error) {
	switch {
	case strings.HasSuffix(entrypoint, ".go"):
		return LambdaRuntimeGo, "main", nil
	case strings.HasSuffix(entrypoint, ".py"):
		return LambdaRuntimePython, strings.TrimSuffix(path.Base(entrypoint), ".py") + ".main", nil
	case strings.Contains(entrypoint, ".dkr.ecr."):
		return "", "main", nil
	default:
		return "", "", fmt.Errorf("unknown entrypoint type: %s", entrypoint)
	}
}

func resolveEnvVars(s string, ignore []string) (string, error) {
	for _, variable := range regexp.MustCompile(`(\$\{[^\}]+})`).FindAllString(s, -1) {
		variableName := variable[2 : len(variable)-1]
		variableValue := os.Getenv(variableName)
		if Contains(ignore, variableName) {
			continue
		}
		if variableValue == "" {
			err := fmt.Errorf("missing environment variable: %s", variableName)
			Logger.Println("error:", err)
			return "", err
		}
		s = strings.Replace(s, variable, variableValue, 1)
	}
	return s, nil
}

func infraParseValidateLambda(val interface{}) error {
	_, ok := val.(map[string]interface{})
	if !ok {
		err := fmt.Errorf("infraLambda should be type: map[string]interface{}, got: %#v", val)
		Logger.Println("error:", err)
		return err
	}
	for name, lambda := range val.(map[string]interface{}) {
		_, ok := lambda.(map[string]interface{})
		if !ok {
			err := fmt.Errorf("infraLambda should be type: map[string]interface{}, got: %s %#v", name, lambda)
			Logger.Println("error:", err)
			return err
		}
		for k, v := range lambda.(map[string]interface{}) {
			switch k {
			case infraKeyLambdaName:
				_, ok := v.(string)
				if !ok {
					err := fmt.Errorf("infraLambda key %s should be type: string, got: %#v", k, v)
					Logger.Println("error:", err)
					return err
				}
			case infraKeyLambdaEntrypoint:
				x, ok := v.(string)
				if !ok {
					err := fmt.Errorf("infraLambda key %s should be type: string, got: %#v", k, v)
					Logger.Println("error:", err)
					return err
				}
				_, _, err := LambdaRuntimeFor(x)
				if err != nil {
					err := fmt.Errorf("infraLambda key %s should be *.py, *.go, or ecr container uri, got: %#v", k, v)
					Logger.Println("error:", err)
					return err
				}
			case infraKeyLambdaPolicy, infraKeyLambdaAllow, infraKeyLambdaInclude, infraKeyLambdaRequire, infraKeyLambdaEnv, infraKeyLambdaAttr:
				xs, ok := v.([]interface{})
				if !ok {
					err := fmt.Errorf("infraLambda key %s should be type: []string, got: %#v", k, v)
					Logger.Println("error:", err)
					return err
				}
				for _, x := range xs {
					_, ok := x.(string)
					if !ok {
						err := fmt.Errorf("infraLambda key %s should be type: []string, got: %#v", k, v)
						Logger.Println("error:", err)
						return err
					}
				}
			default:
				err := fmt.Errorf("unknown infraLambda key: %s: %v", k, v)
				Logger.Println("error:", err)
				return err
			}
		}
	}
	return nil
}

func InfraParse(yamlPath string) (*InfraSet, error) {
	data, err := os.ReadFile(yamlPath)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	resolved, err := resolveEnvVars(string(data), nil)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	data = []byte(resolved)
	val := make(map[string]interface{})
	err = yaml.Unmarshal(data, &val)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	for k, v := range val {
		switch k {
		case infraKeyName:
			if v == "" {
				err := fmt.Errorf("infraSet name cannot be empty")
				Logger.Println("error:", err)
				return nil, err
			}
		case infraKeyLambda:
			err := infraParseValidateLambda(v)
			if err != nil {
				Logger.Println("error:", err)
				return nil, err
			}
		default:
			err := fmt.Errorf("unknown infra key: %s: %v", k, v)
			Logger.Println("error:", err)
			return nil, err
		}
	}
	infraSet := &InfraSet{}
	err = yaml.Unmarshal(data, &infraSet)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	yamlPath, err = filepath.Abs(yamlPath)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	for lambdaName, infraLambda := range infraSet.Lambda {
		infraLambda.Name = lambdaName
		infraLambda.infraSetName = infraSet.Name
		infraLambda.dir = path.Dir(yamlPath)
		if infraLambda.Entrypoint == "" {
			err := fmt.Errorf("missing entrypoint for lambda: %s", lambdaName)
			Logger.Println("error:", err)
			return nil, err
		}
		infraLambda.runtime, infraLambda.handler, err = LambdaRuntimeFor(infraLambda.Entrypoint)
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		if !strings.Contains(infraLambda.Entrypoint, ".dkr.ecr.") {
			infraLambda.Entrypoint = path.Join(infraLambda.dir, infraLambda.Entrypoint)
		}
		for _, attr := range infraLambda.Attr {
			k, v, err := SplitOnce(attr, "=")
			if err != nil {
				Logger.Println("error:", err)
				return nil, err
			}
			validAttrs := []string{lambdaAttrConcurrency, lambdaAttrMemory, lambdaAttrTimeout, lambdaAttrLogsTTLDays}
			if !Contains(validAttrs, k) {
				err := fmt.Errorf("unknown attr: %s", k)
				Logger.Println("error:", err)
				return nil, err
			}
			if !IsDigit(v) {
				err := fmt.Errorf("conf value should be digits: %s %s", k, v)
				Logger.Println("error:", err)
				return nil, err
			}
		}
	}
	return infraSet, nil
}

// InfraMarshal renders infraSet as infra.yaml. Lambda keys are sorted by yaml.v3.
func InfraMarshal(infraSet *InfraSet) ([]byte, error) {
	if infraSet.Name == "" {
		err := fmt.Errorf("infraSet name cannot be empty")
		Logger.Println("error:", err)
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	err := enc.Encode(infraSet)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	err = enc.Close()
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	return buf.Bytes(), nil
}

// InfraLambdaNames returns the declared lambda names in sorted order.
func InfraLambdaNames(infraSet *InfraSet) []string {
	var names []string
	for name := range infraSet.Lambda {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
