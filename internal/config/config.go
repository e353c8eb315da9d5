package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Options struct {
	runAddr        string
	logLevel       string
	dataBaseDSN    string
	migrationsPath string

	resellerURL     string
	plid            string
	apiKey          string
	apiSecret       string
	checkoutURL     string
	upstreamTO      string
	upstreamRetry   string
	catalogTTL      string
	sessionSecret   string
	sessionTTL      string
	cookieSecure    string
	corsOrigins     string
	defaultCurrency string
	defaultMarket   string
}

func NewOptions() *Options {
	return new(Options)
}

// ParseFlags handles command line arguments
// and stores their values in the corresponding variables.
func (o *Options) ParseFlags() {
	// Load environment variables from the .env file
	loadEnvFile()

	fs := flag.CommandLine
	o.register(fs)

	// parse the arguments passed to the server into registered variables
	flag.Parse()
}

// ParseArgs is ParseFlags over an explicit argument list and flag set.
func (o *Options) ParseArgs(args []string) error {
	fs := flag.NewFlagSet("hostfront", flag.ContinueOnError)
	o.register(fs)
	return fs.Parse(args)
}

func (o *Options) register(fs *flag.FlagSet) {
	// Override variable values with values from command line flags
	fs.StringVar(&o.runAddr, "a", getEnvOrDefault("RUN_ADDRESS", ":8080"), "address and port to run server")
	fs.StringVar(&o.logLevel, "l", getEnvOrDefault("LOG_LEVEL", "debug"), "log level")
	fs.StringVar(&o.dataBaseDSN, "d", getEnvOrDefault("DATABASE_URI", ""), "database connection string")
	fs.StringVar(&o.migrationsPath, "m", getEnvOrDefault("MIGRATIONS_PATH", "migrations"), "directory with sql migrations")

	fs.StringVar(&o.resellerURL, "r", getEnvOrDefault("RESELLER_API_URL", "https://www.secureserver.net"), "reseller API base url")
	fs.StringVar(&o.plid, "p", getEnvOrDefault("RESELLER_PLID", ""), "reseller private label id")
	fs.StringVar(&o.apiKey, "k", getEnvOrDefault("RESELLER_API_KEY", ""), "reseller API key")
	fs.StringVar(&o.apiSecret, "s", getEnvOrDefault("RESELLER_API_SECRET", ""), "reseller API secret")
	fs.StringVar(&o.checkoutURL, "c", getEnvOrDefault("CHECKOUT_URL", "https://cart.secureserver.net"), "vendor checkout url")
	fs.StringVar(&o.upstreamTO, "t", getEnvOrDefault("UPSTREAM_TIMEOUT", "10s"), "timeout of a single upstream request")
	fs.StringVar(&o.upstreamRetry, "n", getEnvOrDefault("UPSTREAM_RETRIES", "3"), "upstream attempts per call")
	fs.StringVar(&o.catalogTTL, "ttl", getEnvOrDefault("CATALOG_TTL", "5m"), "catalog cache ttl")

	fs.StringVar(&o.sessionSecret, "secret", getEnvOrDefault("SESSION_SECRET", ""), "session cookie signing secret")
	fs.StringVar(&o.sessionTTL, "session-ttl", getEnvOrDefault("SESSION_TTL", "720h"), "session lifetime")
	fs.StringVar(&o.cookieSecure, "secure", getEnvOrDefault("COOKIE_SECURE", "false"), "mark cookies Secure")
	fs.StringVar(&o.corsOrigins, "origins", getEnvOrDefault("CORS_ORIGINS", "*"), "comma separated allowed origins")
	fs.StringVar(&o.defaultCurrency, "currency", getEnvOrDefault("DEFAULT_CURRENCY", "USD"), "default currency")
	fs.StringVar(&o.defaultMarket, "market", getEnvOrDefault("DEFAULT_MARKET", "en-US"), "default market id")
}

// Validate reports configuration that cannot work at all.
func (o *Options) Validate() error {
	var errs []error
	for name, raw := range map[string]string{"reseller url": o.resellerURL, "checkout url": o.checkoutURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid %s %q", name, raw))
		}
	}
	if n, err := strconv.Atoi(o.upstreamRetry); err != nil || n < 1 {
		errs = append(errs, fmt.Errorf("upstream retries must be a positive integer, got %q", o.upstreamRetry))
	}
	return errors.Join(errs...)
}

func (o *Options) RunAddr() string {
	return o.runAddr
}

func (o *Options) LogLevel() string {
	return o.logLevel
}

func (o *Options) DataBaseDSN() string {
	return o.dataBaseDSN
}

func (o *Options) MigrationsPath() string {
	return o.migrationsPath
}

func (o *Options) ResellerURL() string {
	return strings.TrimRight(o.resellerURL, "/")
}

func (o *Options) PLID() string {
	return o.plid
}

func (o *Options) APIKey() string {
	return o.apiKey
}

func (o *Options) APISecret() string {
	return o.apiSecret
}

func (o *Options) CheckoutURL() string {
	return strings.TrimRight(o.checkoutURL, "/")
}

func (o *Options) UpstreamTimeout() time.Duration {
	return parseDuration(o.upstreamTO, 10*time.Second)
}

func (o *Options) UpstreamRetries() int {
	n, err := strconv.Atoi(o.upstreamRetry)
	if err != nil || n < 1 {
		return 3
	}
	return n
}

func (o *Options) CatalogTTL() time.Duration {
	return parseDuration(o.catalogTTL, 5*time.Minute)
}

func (o *Options) SessionSecret() string {
	return o.sessionSecret
}

func (o *Options) SessionTTL() time.Duration {
	return parseDuration(o.sessionTTL, 720*time.Hour)
}

func (o *Options) CookieSecure() bool {
	v, err := strconv.ParseBool(o.cookieSecure)
	return err == nil && v
}

func (o *Options) CORSOrigins() []string {
	var out []string
	for _, s := range strings.Split(o.corsOrigins, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func (o *Options) DefaultCurrency() string {
	return strings.ToUpper(o.defaultCurrency)
}

func (o *Options) DefaultMarket() string {
	return o.defaultMarket
}

func parseDuration(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// getEnvOrDefault reads an environment variable or returns a default value if the variable is not set or is empty.
func getEnvOrDefault(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// loadEnvFile loads environment variables from a .env file
func loadEnvFile() {
	// Determine the path to the .env file relative to the current working directory
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	envPath := filepath.Join(cwd, ".env")
	if _, err := os.Stat(envPath); err != nil {
		envPath = filepath.Join(cwd, "..", "..", ".env")
	}

	// Load environment variables from the .env file
	err = godotenv.Load(envPath)
	if err != nil {
		log.Printf("No .env file found at %s, proceeding without it", envPath)
	} else {
		log.Printf(".env file loaded from %s", envPath)
	}
}
