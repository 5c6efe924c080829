package hashlink

import (
	"github.com/BurntSushi/toml"
	"tlog.app/go/errors"
)

type (
	// Settings choose what is stored. They never change how many bytes are read.
	Settings struct {
		StoreDebugInfo       bool `toml:"store_debug_info"`
		StoreFunctionAssigns bool `toml:"store_function_assigns"`

		// OpcodeArenaSize is the opcode arguments arena size in int32 slots.
		OpcodeArenaSize int `toml:"opcode_arena_size"`
	}
)

var DefaultSettings = Settings{
	StoreDebugInfo:       true,
	StoreFunctionAssigns: true,
	OpcodeArenaSize:      DefaultArenaSize,
}

// LoadSettings reads a toml file over DefaultSettings.
func LoadSettings(name string) (s Settings, err error) {
	s = DefaultSettings

	md, err := toml.DecodeFile(name, &s)
	if err != nil {
		return s, errors.Wrap(err, "decode %v", name)
	}

	if keys := md.Undecoded(); len(keys) != 0 {
		return s, errors.New("%v: unknown keys: %v", name, keys)
	}

	if s.OpcodeArenaSize < 0 {
		return s, errors.New("%v: negative opcode_arena_size: %d", name, s.OpcodeArenaSize)
	}

	return s, nil
}
