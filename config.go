package loreboot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// EnvFile is loaded from the app root before anything else.
const EnvFile = ".env"

// DefaultEnvDirectory holds per-variable files in container deployments.
const DefaultEnvDirectory = "/conf/env"

// LoadEnvFile loads variables from <root>/.env once the process is running
// inside the app virtualenv. Variables already present in the environment are
// not overridden.
func (e *Environment) LoadEnvFile() error {
	if !e.Launched() {
		return nil
	}
	path := filepath.Join(e.Root, EnvFile)
	if !fileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading %s: %v", path, err)
	}
	return nil
}

// LoadEnvDirectory exports every plain file under $ENV_DIRECTORY (default
// /conf/env) as an environment variable named after the file. A missing
// directory is not an error.
func LoadEnvDirectory() error {
	dir := os.Getenv(EnvDirectory)
	if dir == "" {
		dir = DefaultEnvDirectory
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("error reading %s: %v", filepath.Join(dir, entry.Name()), err)
		}
		if err := os.Setenv(entry.Name(), strings.TrimRight(string(data), "\r\n")); err != nil {
			return fmt.Errorf("error setting %s: %v", entry.Name(), err)
		}
	}
	return nil
}

// Config loads a named INI config from disk with environment variable
// expansion, exposed as a viper instance. An environment-specific config
// under config/<envname>/ takes precedence over config/. Returns (nil, nil)
// when neither exists.
//
// The file is parsed with ini.v1 directly; viper dropped its built-in INI
// decoder in v1.20.
func (e *Environment) Config(name string) (*viper.Viper, error) {
	path := filepath.Join(e.Root, "config", e.Name, name)
	if !fileExists(path) {
		path = filepath.Join(e.Root, "config", name)
	}
	if !fileExists(path) {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %v", path, err)
	}

	f, err := ini.Load([]byte(os.ExpandEnv(string(raw))))
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %v", path, err)
	}

	v := viper.New()
	for _, section := range f.Sections() {
		prefix := section.Name() + "."
		if section.Name() == ini.DefaultSection {
			// Keys above the first section header are top level.
			prefix = ""
		}
		for _, key := range section.Keys() {
			v.Set(prefix+key.Name(), key.Value())
		}
	}
	return v, nil
}

// AWSConfig loads config/aws.cfg.
func (e *Environment) AWSConfig() (*viper.Viper, error) {
	return e.Config("aws.cfg")
}

// DatabaseConfig loads config/database.cfg.
func (e *Environment) DatabaseConfig() (*viper.Viper, error) {
	return e.Config("database.cfg")
}

// RedisConfig loads config/redis.cfg.
func (e *Environment) RedisConfig() (*viper.Viper, error) {
	return e.Config("redis.cfg")
}

// Environment name styles for log output: development green, test blue,
// production red, anything else yellow.
var (
	developmentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	testStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	productionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	unknownStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// NameStyle returns the style associated with the environment name.
func (e *Environment) NameStyle() lipgloss.Style {
	switch e.Name {
	case Development:
		return developmentStyle
	case Test:
		return testStyle
	case Production:
		return productionStyle
	}
	return unknownStyle
}

// StyledName renders the environment name color coded for terminal output.
func (e *Environment) StyledName() string {
	return e.NameStyle().Render(e.Name)
}
