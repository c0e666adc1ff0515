package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ConfigDir  = ".tuberdash"
	ConfigFile = "config.yaml"
	LogFile    = "tuberdash.log"

	ServePidFile  = "serve.pid"
	ServeLogFile  = "serve.log"
	ServeDataFile = "devserver.json"

	DefaultPrefix  = "/tuber"
	DefaultTimeout = 30 * time.Second
)

// Environment overrides, named after the variables the tuber CLI reads.
const (
	EnvGraphqlHost = "TUBER_GRAPHQL_HOST"
	EnvPrefix      = "TUBER_ADMINSERVER_PREFIX"
	EnvToken       = "TUBER_TOKEN"
	EnvDebug       = "TUBER_DEBUG"

	// EnvServeDaemon marks the detached child started by `serve --daemon`.
	EnvServeDaemon = "TUBERDASH_SERVE_DAEMON"
)

// Cluster holds the connection settings of one tuber admin server.
type Cluster struct {
	URL     string        `yaml:"url"`
	Prefix  string        `yaml:"prefix,omitempty"`
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// File is the top-level structure stored in config.yaml.
type File struct {
	Current  string              `yaml:"current,omitempty"`
	Clusters map[string]*Cluster `yaml:"clusters"`
}

// Overrides are values given on the command line. Empty fields fall back to
// the environment and then to the current cluster.
type Overrides struct {
	Cluster string
	Host    string
	Token   string
	Debug   bool
}

// Settings are the resolved connection settings.
type Settings struct {
	Cluster  string
	Endpoint string
	Token    string
	Timeout  time.Duration
	Debug    bool
}

// Endpoint joins host and prefix into the GraphQL endpoint URL.
func Endpoint(host, prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimRight(host, "/") + strings.TrimRight(prefix, "/") + "/graphql"
}

// Resolve combines overrides, environment and the store into Settings.
func Resolve(s *Store, o Overrides) (Settings, error) {
	name := o.Cluster
	if name == "" {
		name = s.CurrentName()
	}

	var c Cluster
	if name != "" {
		found := s.Cluster(name)
		if found == nil && o.Cluster != "" {
			return Settings{}, fmt.Errorf("cluster %q not found", name)
		}
		if found != nil {
			c = *found
		}
	}

	host := firstNonEmpty(o.Host, os.Getenv(EnvGraphqlHost), c.URL)
	if host == "" {
		return Settings{}, fmt.Errorf("no cluster configured: run 'tuberdash cluster add' or set %s", EnvGraphqlHost)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return Settings{
		Cluster:  name,
		Endpoint: Endpoint(host, firstNonEmpty(os.Getenv(EnvPrefix), c.Prefix)),
		Token:    firstNonEmpty(o.Token, os.Getenv(EnvToken), c.Token),
		Timeout:  timeout,
		Debug:    DebugEnabled(o.Debug),
	}, nil
}

// DebugEnabled reports whether debug logging is on through the flag or
// the environment.
func DebugEnabled(flag bool) bool {
	return flag || envBool(EnvDebug)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func envBool(name string) bool {
	b, err := strconv.ParseBool(os.Getenv(name))
	return err == nil && b
}
