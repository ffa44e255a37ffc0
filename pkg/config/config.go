// Package config 加载 Actor 运行时配置
//
// 加载顺序（后者覆盖前者）：
//  1. [Default] 给出的默认值
//  2. YAML 配置文件（路径为空时跳过）
//  3. 环境变量，前缀 ACTOR_，层级用双下划线分隔，
//     例如 ACTOR_SUPERVISOR__MAX_RESTARTS=5、ACTOR_ACTOR__ASK_TIMEOUT=2s
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/lwmacct/251217-go-pkg-actor/pkg/actor"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "ACTOR_"

// Config 运行时配置
type Config struct {
	Actor      ActorConfig      `koanf:"actor"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Log        LogConfig        `koanf:"log"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

// ActorConfig Actor 默认属性
type ActorConfig struct {
	MailboxCapacity int           `koanf:"mailbox_capacity"`
	AskTimeout      time.Duration `koanf:"ask_timeout"`
	// DrainPolicy "abort" 或 "finish"
	DrainPolicy  string        `koanf:"drain_policy"`
	TickInterval time.Duration `koanf:"tick_interval"`
}

// SupervisorConfig 默认重启策略
type SupervisorConfig struct {
	MaxRestarts       int           `koanf:"max_restarts"`
	BackoffBase       time.Duration `koanf:"backoff_base"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
	BackoffCap        time.Duration `koanf:"backoff_cap"`
	ResetWindow       time.Duration `koanf:"reset_window"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level debug / info / warn / error
	Level string `koanf:"level"`
	// Format text / json
	Format string `koanf:"format"`
}

// MetricsConfig 指标配置，Addr 为空时不启动 HTTP 端点
type MetricsConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// Default 默认配置，与 actor.DefaultProps / actor.DefaultPolicy 一致
func Default() *Config {
	props := actor.DefaultProps("default")
	policy := actor.DefaultPolicy()
	return &Config{
		Actor: ActorConfig{
			MailboxCapacity: props.MailboxSize,
			AskTimeout:      props.AskTimeout,
			DrainPolicy:     props.DrainPolicy.String(),
		},
		Supervisor: SupervisorConfig{
			MaxRestarts:       policy.MaxRestarts,
			BackoffBase:       policy.BackoffBase,
			BackoffMultiplier: policy.BackoffMultiplier,
			BackoffCap:        policy.BackoffCap,
			ResetWindow:       policy.ResetWindow,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}

// Load 按默认值、配置文件、环境变量的顺序加载配置
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey ACTOR_SUPERVISOR__MAX_RESTARTS -> supervisor.max_restarts
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate 检查配置
func (c *Config) Validate() error {
	var errs []error
	if c.Actor.MailboxCapacity < 1 {
		errs = append(errs, fmt.Errorf("actor.mailbox_capacity must be >= 1, got %d", c.Actor.MailboxCapacity))
	}
	if c.Actor.AskTimeout <= 0 {
		errs = append(errs, fmt.Errorf("actor.ask_timeout must be > 0, got %v", c.Actor.AskTimeout))
	}
	if _, err := actor.ParseDrainPolicy(c.Actor.DrainPolicy); err != nil {
		errs = append(errs, fmt.Errorf("actor.drain_policy: %w", err))
	}
	if err := c.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("supervisor: %w", err))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Props 按配置创建 Actor 属性
func (c *Config) Props(name string) *actor.Props {
	drain, _ := actor.ParseDrainPolicy(c.Actor.DrainPolicy)
	return actor.DefaultProps(name).
		WithMailboxSize(c.Actor.MailboxCapacity).
		WithAskTimeout(c.Actor.AskTimeout).
		WithDrainPolicy(drain).
		WithTick(c.Actor.TickInterval)
}

// Policy 按配置创建重启策略
func (c *Config) Policy() actor.Policy {
	return actor.Policy{
		MaxRestarts:       c.Supervisor.MaxRestarts,
		BackoffBase:       c.Supervisor.BackoffBase,
		BackoffMultiplier: c.Supervisor.BackoffMultiplier,
		BackoffCap:        c.Supervisor.BackoffCap,
		ResetWindow:       c.Supervisor.ResetWindow,
		Decider:           actor.DefaultDecider,
	}
}

// Logger 按配置创建日志器，w 为 nil 时写到 stderr
func (c *Config) Logger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
