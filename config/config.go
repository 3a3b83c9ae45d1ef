package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chaos-io/chromakey/chroma"
	"github.com/chaos-io/chromakey/rembg"
)

type Config struct {
	Background string `yaml:"background"`
	Threshold  int    `yaml:"threshold"`
	Feather    int    `yaml:"feather"`
	AutoDetect bool   `yaml:"auto_detect"`
	Suffix     string `yaml:"suffix"`

	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
	Watch  WatchConfig  `yaml:"watch"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type WatchConfig struct {
	Schedule string `yaml:"schedule"`
}

func Default() Config {
	return Config{
		Background: chroma.White.Hex(),
		Threshold:  chroma.DefaultThreshold,
		Feather:    chroma.DefaultFeather,
		Suffix:     rembg.DefaultSuffix,
		Log:        LogConfig{Level: "info", Format: "text"},
		Server:     ServerConfig{Addr: ":8080"},
		Watch:      WatchConfig{Schedule: "@every 1m"},
	}
}

// Load 读取 YAML 配置，未出现的字段保留默认值；path 为空时直接返回默认配置
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Options 转换为不可变的去背景参数并校验
func (c Config) Options() (chroma.Options, error) {
	bg, err := chroma.ParseHex(c.Background)
	if err != nil {
		return chroma.Options{}, err
	}

	opts := chroma.Options{
		Background: bg,
		Threshold:  c.Threshold,
		Feather:    c.Feather,
		AutoDetect: c.AutoDetect,
	}
	if err := opts.Validate(); err != nil {
		return chroma.Options{}, err
	}
	return opts, nil
}

func (c Config) Validate() error {
	_, err := c.Options()
	if c.Suffix == "" {
		err = errors.Join(err, errors.New("suffix must not be empty"))
	}
	return err
}

// Overrides 命令行参数的值，只有 set 中出现的字段才会覆盖配置文件
type Overrides struct {
	Background string
	Threshold  int
	Feather    int
	AutoDetect bool
	Addr       string
	Schedule   string
	Verbose    bool
}

// Apply set 的 key 为 flag 名（color / threshold / feather / auto / addr / schedule / v）
func (c Config) Apply(o Overrides, set map[string]bool) Config {
	if set["color"] {
		c.Background = o.Background
	}
	if set["threshold"] {
		c.Threshold = o.Threshold
	}
	if set["feather"] {
		c.Feather = o.Feather
	}
	if set["auto"] {
		c.AutoDetect = o.AutoDetect
	}
	if set["addr"] && o.Addr != "" {
		c.Server.Addr = o.Addr
	}
	if set["schedule"] && o.Schedule != "" {
		c.Watch.Schedule = o.Schedule
	}
	if set["v"] && o.Verbose {
		c.Log.Level = "debug"
	}
	return c
}
