// Package config resolves the core's runtime configuration -- classpath
// roots, the bootstrap loader's search path, the max call-frame depth, and
// logging options -- from flags, environment variables and an optional
// config file, layered through viper the way a cobra-fronted tool typically
// does.
package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "GOJVM"

// Config is the resolved configuration, read once at startup.
type Config struct {
	// BootstrapJmod is the path to the JDK-style jmod archive the bootstrap
	// JmodLoader reads from. Mirrors the teacher's JAVA_BASE_JMOD
	// environment variable, generalized into the viper-backed surface.
	BootstrapJmod string

	// ClasspathRoots are directories searched, in order, by a chain of
	// DirLoaders layered on top of the bootstrap loader.
	ClasspathRoots []string

	// MaxFrameDepth bounds recursive ExecuteMethod nesting (invokespecial
	// call chains, <clinit> triggering <clinit>): a runaway constructor
	// chain fails with a RuntimeError instead of exhausting the Go stack.
	MaxFrameDepth int

	// LogLevel is a zerolog level name ("debug", "info", "warn", "error").
	LogLevel string
	// LogJSON selects structured JSON log output over the human-readable
	// console writer.
	LogJSON bool
}

// RegisterFlags adds this package's flags to fs, for a cobra command's
// PersistentFlags to bind before calling Load.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("bootstrap-jmod", "", "path to the bootstrap JDK jmod archive")
	fs.StringSlice("classpath", nil, "classpath directories, searched in order")
	fs.Int("max-frame-depth", 256, "maximum recursive call depth before aborting")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Bool("log-json", false, "emit structured JSON logs instead of console output")
}

// Load binds fs's flags into viper, layers in GOJVM_-prefixed environment
// variables and an optional config file named gojvm.yaml (searched on the
// current directory and $HOME), and returns the resolved Config.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("gojvm")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, err
		}
	}

	if err := v.BindPFlags(fs); err != nil {
		return Config{}, err
	}

	return Config{
		BootstrapJmod:  v.GetString("bootstrap-jmod"),
		ClasspathRoots: v.GetStringSlice("classpath"),
		MaxFrameDepth:  v.GetInt("max-frame-depth"),
		LogLevel:       v.GetString("log-level"),
		LogJSON:        v.GetBool("log-json"),
	}, nil
}
