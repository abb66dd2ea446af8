// Package config loads the node's YAML configuration, grounded on
// ipfs/parser.go's parseConfig: a bounded read, best-effort YAML parse,
// and a defaultConfig fallback on any error rather than a hard failure.
package config

import (
	"bufio"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/go-yaml/yaml"
)

// configMaxSize bounds a single config.yaml read, mirroring
// ipfs/parser.go's 1024-byte buffer (scaled up; this config carries more
// fields than KelvinWu602-immutable-storage's host/timeout pair).
const configMaxSize = 64 * 1024

// Config is the node's full ambient configuration.
type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`
	BootstrapPeers  []string      `yaml:"bootstrap_peers"`
	StorageRoot     string        `yaml:"storage_root"`
	Strategy        string        `yaml:"strategy"` // local-only | network-only | p2p-only | hybrid
	ChunkSize       int64         `yaml:"chunk_size"`
	MinReplicas     int           `yaml:"min_replicas"`
	RPCTimeout      time.Duration `yaml:"rpc_timeout"`
	StaleAfter      time.Duration `yaml:"stale_after"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	RepublishEvery  time.Duration `yaml:"republish_every"`
	AnnounceEvery   time.Duration `yaml:"announce_every"`
	EnableSigning   bool          `yaml:"enable_signing"`
	Redis           RedisConfig   `yaml:"redis"`
}

// RedisConfig configures the optional cache.RedisCache backend.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the configuration used when config.yaml is unspecified
// or malformed, mirroring ipfs/parser.go's defaultConfig fallback.
func Default() Config {
	root, err := homedir.Expand("~/.kadstore")
	if err != nil {
		root = "./.kadstore"
	}
	return Config{
		ListenAddr:      "0.0.0.0:4001",
		StorageRoot:     root,
		Strategy:        "local-only",
		ChunkSize:       1 << 20,
		MinReplicas:     3,
		RPCTimeout:      30 * time.Second,
		StaleAfter:      time.Hour,
		RefreshInterval: time.Hour,
		RepublishEvery:  time.Hour,
		AnnounceEvery:   60 * time.Second,
	}
}

// Load reads and parses path, returning Default on any error (file
// missing, unreadable, or malformed YAML) rather than failing startup.
func Load(path string) Config {
	file, err := os.Open(path)
	if err != nil {
		log.Println("[config]: using defaults, could not open", path, err)
		return Default()
	}
	defer file.Close()
	return parse(file)
}

func parse(r io.Reader) Config {
	def := Default()
	br := bufio.NewReader(r)
	buf := make([]byte, configMaxSize)
	n, err := br.Read(buf)
	if err != nil && err != io.EOF {
		log.Println("[config]: using defaults, read error:", err)
		return def
	}
	cfg := def
	if err := yaml.Unmarshal(buf[:n], &cfg); err != nil {
		log.Println("[config]: using defaults, malformed yaml:", err)
		return def
	}
	if cfg.StorageRoot == "" {
		cfg.StorageRoot = def.StorageRoot
	}
	cfg.StorageRoot = filepath.Clean(cfg.StorageRoot)
	return cfg
}
