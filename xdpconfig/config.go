// Package xdpconfig loads arena and socket defaults from a config
// file and environment variables.
package xdpconfig

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ArenaDefaults mirrors arena.Builder's tunables.
type ArenaDefaults struct {
	ChunkSize           uint32 `mapstructure:"chunk_size"`
	FrameHeadroom       uint32 `mapstructure:"frame_headroom"`
	NumChunks           uint32 `mapstructure:"num_chunks"`
	FillQueueSize       uint32 `mapstructure:"fill_queue_size"`
	CompletionQueueSize uint32 `mapstructure:"completion_queue_size"`
}

// SocketDefaults mirrors xsocket.Builder's tunables.
type SocketDefaults struct {
	RxSize      uint32 `mapstructure:"rx_size"`
	TxSize      uint32 `mapstructure:"tx_size"`
	Mode        string `mapstructure:"mode"`         // "generic", "driver", "hardware"
	ZeroCopy    bool   `mapstructure:"zero_copy"`
	Cooperate   bool   `mapstructure:"cooperate"`
	BusyPolling bool   `mapstructure:"busy_polling"`
}

// Defaults holds everything xdpconfig loads.
type Defaults struct {
	Arena     ArenaDefaults  `mapstructure:"arena"`
	Socket    SocketDefaults `mapstructure:"socket"`
	LogLevel  string         `mapstructure:"log_level"`
	StatsAddr string         `mapstructure:"stats_addr"`
}

// Load starts from built-in defaults, overrides them with configPath
// (if non-empty), and overrides both with XDPCORE_-prefixed
// environment variables.
func Load(configPath string) (*Defaults, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("XDPCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("xdpconfig: read config file: %w", err)
		}
	}

	var d Defaults
	if err := v.Unmarshal(&d); err != nil {
		return nil, fmt.Errorf("xdpconfig: unmarshal: %w", err)
	}
	return &d, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("arena.chunk_size", 4096)
	v.SetDefault("arena.frame_headroom", 256)
	v.SetDefault("arena.num_chunks", 4096)
	v.SetDefault("arena.fill_queue_size", 2048)
	v.SetDefault("arena.completion_queue_size", 2048)

	v.SetDefault("socket.rx_size", 2048)
	v.SetDefault("socket.tx_size", 2048)
	v.SetDefault("socket.mode", "driver")
	v.SetDefault("socket.zero_copy", true)
	v.SetDefault("socket.cooperate", true)
	v.SetDefault("socket.busy_polling", false)

	v.SetDefault("log_level", "info")
	v.SetDefault("stats_addr", ":9090")
}
