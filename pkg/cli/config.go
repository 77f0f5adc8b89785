package cli

// Config holds the global CLI flags
type Config struct {
	ConfigFile  string
	ProjectRoot string
	Verbosity   string
	LogFile     string
	Version     string
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		ProjectRoot: ".",
		Verbosity:   "info",
	}
}

// Viper keys. Each is also readable from UBERPACK_<KEY> with dashes
// replaced by underscores.
const (
	keyRoot       = "root"
	keyVerbosity  = "verbosity"
	keyLogFile    = "log-file"
	keyArchiver   = "archiver"
	keyJarCommand = "jar-command"
	keyNotify     = "notify"
	keyNoSort     = "no-sort"
	keyIgnore     = "ignore"
)

// stateDirName is the per-project directory holding the last run record
const stateDirName = ".uberpack"
