package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix scopes environment overrides, e.g. HJORTRON_LOG_FILE.
const envPrefix = "HJORTRON"

// searchPath lists the directories probed for config.yaml when no
// explicit file is set.
var searchPath = []string{".", "$HOME/.config/hjortron", "$HOME/.hjortron"}

// Config is the root configuration for Hjortron.
type Config struct {
	Terminal TerminalConfig `mapstructure:"terminal" yaml:"terminal" json:"terminal"`
	View     ViewConfig     `mapstructure:"view" yaml:"view" json:"view"`
	LogFile  string         `mapstructure:"log_file" yaml:"log_file" json:"log_file"`
}

// TerminalConfig configures the local terminal session.
type TerminalConfig struct {
	Shell           string   `mapstructure:"shell" yaml:"shell" json:"shell"`
	Term            string   `mapstructure:"term" yaml:"term" json:"term"`
	Cols            int      `mapstructure:"cols" yaml:"cols" json:"cols"`
	Rows            int      `mapstructure:"rows" yaml:"rows" json:"rows"`
	ScrollbackLines int      `mapstructure:"scrollback_lines" yaml:"scrollback_lines" json:"scrollback_lines"`
	WorkingDir      string   `mapstructure:"working_dir" yaml:"working_dir" json:"working_dir"`
	Env             []string `mapstructure:"env" yaml:"env" json:"env"`
}

// ViewConfig configures the embedded viewer server.
type ViewConfig struct {
	Listen      string `mapstructure:"listen" yaml:"listen" json:"listen"`
	Password    string `mapstructure:"password" yaml:"password" json:"password"`
	BufferLines int    `mapstructure:"buffer_lines" yaml:"buffer_lines" json:"buffer_lines"`
}

// Loader resolves configuration from file, environment, and whatever
// defaults the caller binds on its Viper instance.
type Loader struct {
	v    *viper.Viper
	file string
}

// NewLoader returns a Loader with env overrides and the standard
// config search path wired.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	for _, dir := range searchPath {
		v.AddConfigPath(dir)
	}
	return &Loader{v: v}
}

// Viper exposes the underlying instance for flag binding and defaults.
func (l *Loader) Viper() *viper.Viper { return l.v }

// SetConfigFile pins loading to one file instead of the search path.
func (l *Loader) SetConfigFile(path string) {
	l.file = strings.TrimSpace(path)
}

// ReadInConfig reads the config file when one resolves. No file on the
// search path is fine; an explicit file that cannot be read is not.
func (l *Loader) ReadInConfig() error {
	if l.file != "" {
		l.v.SetConfigFile(l.file)
	}
	err := l.v.ReadInConfig()
	if err == nil || errors.As(err, new(viper.ConfigFileNotFoundError)) {
		return nil
	}
	return err
}

// Load reads configuration and unmarshals the merged result.
func (l *Loader) Load() (Config, error) {
	var cfg Config
	if err := l.ReadInConfig(); err != nil {
		return cfg, err
	}
	err := l.v.Unmarshal(&cfg)
	return cfg, err
}
