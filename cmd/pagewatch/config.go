package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gitlab.com/stephen-fox/pagewatch/asmkit"
	"gitlab.com/stephen-fox/pagewatch/memory"
	"gitlab.com/stephen-fox/pagewatch/patchscript"
	"gopkg.in/yaml.v3"
)

const defaultPollInterval = 250 * time.Millisecond

// config is the union of the config file and the command line
// options. Options that are explicitly set override the file.
type config struct {
	PID          int           `yaml:"pid"`
	Module       string        `yaml:"module"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Syntax       string        `yaml:"syntax"`
	Arch         string        `yaml:"arch"`
	Boundary     string        `yaml:"boundary"`
	Protections  []string      `yaml:"protections"`
	Repeat       bool          `yaml:"repeat"`
	Verbose      bool          `yaml:"verbose"`

	// moduleSet is true when the module does not need to be
	// prompted for.
	moduleSet bool
}

func defaultConfig() config {
	return config{
		PollInterval: defaultPollInterval,
		Syntax:       string(patchscript.SyntaxC),
		Boundary:     memory.BoundaryInclude.String(),
	}
}

func loadConfigFile(filePath string) (config, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return config{}, err
	}
	defer f.Close()

	cfg, err := loadConfig(f)
	if err != nil {
		return config{}, fmt.Errorf("failed to parse config file %q - %w", filePath, err)
	}

	return cfg, nil
}

// loadConfig decodes a YAML config. Keys that are not present keep
// their default values. Unknown keys are rejected.
func loadConfig(r io.Reader) (config, error) {
	cfg := defaultConfig()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	err := decoder.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return config{}, err
	}

	cfg.moduleSet = cfg.Module != ""

	return cfg, cfg.validate()
}

func (o config) validate() error {
	if o.PID < 0 {
		return fmt.Errorf("pid cannot be negative - it is %d", o.PID)
	}

	if o.PollInterval < 0 {
		return fmt.Errorf("poll interval cannot be negative - it is %s", o.PollInterval)
	}

	_, err := o.syntax()
	if err != nil {
		return err
	}

	_, err = o.enumerator(nil)
	if err != nil {
		return err
	}

	_, err = o.disassembler()
	if err != nil {
		return err
	}

	return nil
}

func (o config) syntax() (patchscript.Syntax, error) {
	return patchscript.ParseSyntax(o.Syntax)
}

func (o config) enumerator(optLogger *log.Logger) (memory.Enumerator, error) {
	boundary, err := memory.ParseBoundaryPolicy(o.Boundary)
	if err != nil {
		return memory.Enumerator{}, err
	}

	var protections []memory.Protection
	for _, str := range o.Protections {
		p, err := memory.ParseProtection(str)
		if err != nil {
			return memory.Enumerator{}, err
		}

		protections = append(protections, p)
	}

	return memory.Enumerator{
		Protections: protections,
		Boundary:    boundary,
		Logger:      optLogger,
	}, nil
}

// disassembler returns nil if no architecture is configured.
func (o config) disassembler() (*asmkit.Disassembler, error) {
	if o.Arch == "" {
		return nil, nil
	}

	disassConfig, err := asmkit.ConfigForPlatform(o.Arch)
	if err != nil {
		return nil, err
	}

	return asmkit.NewDisassembler(disassConfig)
}
