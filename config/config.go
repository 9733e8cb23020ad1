package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes the environment variable mirroring each flag:
// -token-secret is read from QFORM_TOKEN_SECRET.
const EnvPrefix = "QFORM_"

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

// SeedDefault installs the built-in sample forms.
const SeedDefault = "default"

type Config struct {
	Addr           string
	Backend        string
	DBUrl          string
	MongoURI       string
	MongoDB        string
	TokenSecret    string
	TokenTTL       time.Duration
	StreamTTL      time.Duration
	AdminUser      string
	AdminPassword  string
	Seed           string
	SingleResponse bool
	TrustProxy     bool
	Debug          bool
}

// ParseFlags loads a .env file from the working directory, when there is one,
// and parses the command line.
func ParseFlags() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse(os.Args[1:])
}

// Parse reads args. Flags missing from args fall back to their environment
// variable, then to the built-in default.
func Parse(args []string) (cfg Config, err error) {
	flags := flag.NewFlagSet("qform", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var host string
	flags.StringVar(&host, "host", "0.0.0.0", "listen host name")
	var port uint
	flags.UintVar(&port, "port", 80, "listen port number")
	flags.StringVar(&cfg.Backend, "store", StoreSQLite, "storage backend: memory, sqlite or mongo")
	flags.StringVar(&cfg.DBUrl, "db-url", "qform.sqlite", "path to SQLite3 DB file")
	flags.StringVar(&cfg.MongoURI, "mongo-uri", "mongodb://localhost:27017", "MongoDB connection string")
	flags.StringVar(&cfg.MongoDB, "mongo-db", "form_builder", "MongoDB database name")
	flags.StringVar(&cfg.TokenSecret, "token-secret", "", "secret key for token encryption and decryption")
	var ttl uint
	flags.UintVar(&ttl, "token-ttl", 120, "token TTL in seconds")
	var streamTTL uint
	flags.UintVar(&streamTTL, "stream-ttl", 60, "analytics stream ticket TTL in seconds")
	flags.StringVar(&cfg.AdminUser, "admin-user", "admin", "administrator user name")
	flags.StringVar(&cfg.AdminPassword, "admin-password", "", "administrator password; the user is created or updated at startup")
	flags.StringVar(&cfg.Seed, "seed", "", `sample forms to install: "default" or a YAML file path`)
	flags.BoolVar(&cfg.SingleResponse, "single-response", false, "accept one response per form from each IP address")
	flags.BoolVar(&cfg.TrustProxy, "trust-proxy", false, "take the client address from X-Real-IP / X-Forwarded-For")
	flags.BoolVar(&cfg.Debug, "debug", false, "log at DEBUG level")

	if err = flags.Parse(args); err != nil {
		return
	}
	if err = applyEnv(flags); err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.TokenTTL = time.Duration(ttl) * time.Second
	cfg.StreamTTL = time.Duration(streamTTL) * time.Second

	err = cfg.check()
	return
}

func EnvName(flagName string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func applyEnv(flags *flag.FlagSet) error {
	given := map[string]bool{}
	flags.Visit(func(f *flag.Flag) { given[f.Name] = true })

	var result *multierror.Error
	flags.VisitAll(func(f *flag.Flag) {
		if given[f.Name] {
			return
		}
		value, ok := os.LookupEnv(EnvName(f.Name))
		if !ok {
			return
		}
		if err := flags.Set(f.Name, value); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", EnvName(f.Name), err))
		}
	})
	return result.ErrorOrNil()
}

func (cfg Config) check() error {
	var result *multierror.Error
	if cfg.TokenSecret == "" {
		result = multierror.Append(result, errors.New("missing parameter -token-secret"))
	}
	switch cfg.Backend {
	case StoreMemory, StoreSQLite, StoreMongo:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown store %q", cfg.Backend))
	}
	if cfg.TokenTTL <= 0 {
		result = multierror.Append(result, errors.New("-token-ttl must be positive"))
	}
	if cfg.StreamTTL <= 0 {
		result = multierror.Append(result, errors.New("-stream-ttl must be positive"))
	}
	return result.ErrorOrNil()
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
