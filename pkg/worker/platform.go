package worker

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/denisbrodbeck/machineid"
	"github.com/spf13/viper"
	"github.com/srand/capataz/pkg/utils"
)

const (
	PropertyArch     = "node.arch"
	PropertyOS       = "node.os"
	PropertyCPUs     = "node.cpus"
	PropertyID       = "node.id"
	PropertyHostname = "worker.hostname"

	// Overrides the platform name reported with results.
	PropertyName = "platform.name"
)

type Property struct {
	Key   string
	Value string
}

// The properties of the machine a drudger runs on.
type Platform struct {
	Properties []Property
}

func NewPlatform() *Platform {
	return &Platform{}
}

// NewPlatformWithDefaults creates a new platform with default properties
// like the architecture, operating system, number of cpus and a unique id.
func NewPlatformWithDefaults() *Platform {
	p := NewPlatform()
	p.AddProperty(PropertyArch, runtime.GOARCH)
	p.AddProperty(PropertyOS, runtime.GOOS)
	p.AddProperty(PropertyCPUs, fmt.Sprint(runtime.NumCPU()))
	if id, err := machineid.ProtectedID("capataz-drudger"); err == nil {
		p.AddProperty(PropertyID, id)
	}
	if hostname, err := os.Hostname(); err == nil {
		p.AddProperty(PropertyHostname, hostname)
	}
	return p
}

func (p *Platform) AddProperty(key, value string) {
	p.Properties = append(p.Properties, Property{Key: key, Value: value})
}

// LoadConfig loads platform properties from the "platform" key.
// The value is a list of key=value strings, or a comma separated
// string of them when set from the environment.
func (p *Platform) LoadConfig(v *viper.Viper) error {
	for _, config := range v.GetStringSlice("platform") {
		key, value, ok := strings.Cut(config, "=")
		if !ok {
			return fmt.Errorf("%w: invalid platform property: %s", utils.ErrParse, config)
		}
		p.AddProperty(strings.TrimSpace(key), value)
	}
	return nil
}

// Map returns a map of all properties of the platform.
func (p *Platform) Map() map[string][]string {
	d := map[string][]string{}
	for _, property := range p.Properties {
		d[property.Key] = append(d[property.Key], property.Value)
	}
	return d
}

// Returns the last value of a property.
func (p *Platform) Get(key string) (string, bool) {
	values, ok := p.Map()[key]
	if !ok {
		return "", false
	}
	return values[len(values)-1], true
}

// Returns the name reported as client platform with every result,
// os/arch unless overridden.
func (p *Platform) Name() string {
	if name, ok := p.Get(PropertyName); ok {
		return name
	}

	system, _ := p.Get(PropertyOS)
	arch, _ := p.Get(PropertyArch)
	if system == "" && arch == "" {
		return runtime.GOOS + "/" + runtime.GOARCH
	}
	return system + "/" + arch
}

// String returns a string representation of the platform.
func (p *Platform) String() string {
	lines := make([]string, 0, len(p.Properties))
	for _, prop := range p.Properties {
		lines = append(lines, fmt.Sprintf("%s=%s", prop.Key, prop.Value))
	}
	sort.Strings(lines)

	data := bytes.Buffer{}
	for _, line := range lines {
		fmt.Fprintln(&data, line)
	}
	return data.String()
}
