// Package config loads the TimeGate server configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nainya/timegate/pkg/memento"
)

// Below are the default values of the TimeGate config.
const (
	DefaultHTTPPort          = 8080
	DefaultObservabilityPort = 9090
	DefaultRPCPort           = 50051

	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 10 * time.Second

	DefaultLogLevel = "info"

	DefaultStoreBackend  = "sqlite"
	DefaultSQLitePath    = "./data/timegate.db"
	DefaultMongoURI      = "mongodb://localhost:27017"
	DefaultMongoDatabase = "timegate"
	DefaultRemoteAddr    = "localhost:50051"

	DefaultMongoConnectionTimeout = 5 * time.Second
	DefaultMongoPingTimeout       = 5 * time.Second
	DefaultShutdownTimeout        = 10 * time.Second

	DefaultNegotiation = "redirect"
	DefaultBaseURI     = "http://localhost:8080"
	DefaultErrorPages  = "traditional"
)

// Store backends
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRemote = "remote"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// durations are kept as strings so the file stays readable
	if err := v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// HTTP is the public Memento listener
type HTTP struct {
	Port         int    `yaml:"Port" validate:"min=1,max=65535"`
	ReadTimeout  string `yaml:"ReadTimeout" validate:"duration"`
	WriteTimeout string `yaml:"WriteTimeout" validate:"duration"`
}

// Observability is the metrics, health and pprof listener
type Observability struct {
	Enabled bool `yaml:"Enabled"`
	Port    int  `yaml:"Port" validate:"min=1,max=65535"`
}

// RPC is the gRPC revision lookup service
type RPC struct {
	Enabled bool `yaml:"Enabled"`
	Port    int  `yaml:"Port" validate:"min=1,max=65535"`
}

// Log configures the process logger
type Log struct {
	Level  string `yaml:"Level" validate:"oneof=debug info warn error"`
	Pretty bool   `yaml:"Pretty"`
}

// Store selects and configures the version store
type Store struct {
	Backend       string `yaml:"Backend" validate:"oneof=sqlite memory mongo remote"`
	SQLitePath    string `yaml:"SQLitePath" validate:"required_if=Backend sqlite"`
	MongoURI      string `yaml:"MongoURI" validate:"required_if=Backend mongo"`
	MongoDatabase string `yaml:"MongoDatabase" validate:"required_if=Backend mongo"`
	RemoteAddr    string `yaml:"RemoteAddr" validate:"required_if=Backend remote"`
}

// Memento configures negotiation
type Memento struct {
	Negotiation          string   `yaml:"Negotiation" validate:"oneof=inline redirect 200 302"`
	RecommendedRelations bool     `yaml:"RecommendedRelations"`
	ExcludeNamespaces    []string `yaml:"ExcludeNamespaces"`
	ExcludeCategories    []string `yaml:"ExcludeCategories"`
	BaseURI              string   `yaml:"BaseURI" validate:"required,url"`
	ErrorPages           string   `yaml:"ErrorPages" validate:"oneof=traditional friendly"`
}

// Config is the configuration for creating a TimeGate server.
type Config struct {
	HTTP          *HTTP          `yaml:"HTTP" validate:"required"`
	Observability *Observability `yaml:"Observability" validate:"required"`
	RPC           *RPC           `yaml:"RPC" validate:"required"`
	Log           *Log           `yaml:"Log" validate:"required"`
	Store         *Store         `yaml:"Store" validate:"required"`
	Memento       *Memento       `yaml:"Memento" validate:"required"`
}

// NewConfig returns a Config struct that contains reasonable defaults
// for most of the configurations.
func NewConfig() *Config {
	conf := &Config{
		HTTP:          &HTTP{},
		Observability: &Observability{Enabled: true},
		RPC:           &RPC{},
		Log:           &Log{},
		Store:         &Store{},
		Memento:       &Memento{RecommendedRelations: true},
	}
	conf.ensureDefaultValue()
	return conf
}

// NewConfigFromFile returns a Config struct for the given conf file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w", err)
		}

		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: invalid value %v (%s)",
				strings.TrimPrefix(fe.Namespace(), "Config."), fe.Value(), fe.Tag()))
		}
		return fmt.Errorf("validate config: %s", strings.Join(msgs, "; "))
	}

	return nil
}

// ReadTimeout returns the parsed HTTP read timeout
func (c *Config) ReadTimeout() time.Duration {
	d, _ := time.ParseDuration(c.HTTP.ReadTimeout)
	return d
}

// WriteTimeout returns the parsed HTTP write timeout
func (c *Config) WriteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.HTTP.WriteTimeout)
	return d
}

// ToMemento converts the Memento section into the immutable value handed to
// the controllers.
func (c *Config) ToMemento() (memento.Config, error) {
	mode, err := memento.ParseNegotiationMode(c.Memento.Negotiation)
	if err != nil {
		return memento.Config{}, err
	}

	return memento.Config{
		Negotiation:          mode,
		RecommendedRelations: c.Memento.RecommendedRelations,
		ExcludeNamespaces:    append([]string(nil), c.Memento.ExcludeNamespaces...),
		ExcludeCategories:    append([]string(nil), c.Memento.ExcludeCategories...),
		BaseURI:              c.Memento.BaseURI,
		ErrorPages:           memento.ErrorPageStyle(c.Memento.ErrorPages),
	}, nil
}

// ensureDefaultValue sets the value of the option to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	if c.HTTP == nil {
		c.HTTP = &HTTP{}
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}
	if c.HTTP.ReadTimeout == "" {
		c.HTTP.ReadTimeout = DefaultReadTimeout.String()
	}
	if c.HTTP.WriteTimeout == "" {
		c.HTTP.WriteTimeout = DefaultWriteTimeout.String()
	}

	if c.Observability == nil {
		c.Observability = &Observability{}
	}
	if c.Observability.Port == 0 {
		c.Observability.Port = DefaultObservabilityPort
	}

	if c.RPC == nil {
		c.RPC = &RPC{}
	}
	if c.RPC.Port == 0 {
		c.RPC.Port = DefaultRPCPort
	}

	if c.Log == nil {
		c.Log = &Log{}
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}

	if c.Store == nil {
		c.Store = &Store{}
	}
	if c.Store.Backend == "" {
		c.Store.Backend = DefaultStoreBackend
	}
	if c.Store.Backend == BackendSQLite && c.Store.SQLitePath == "" {
		c.Store.SQLitePath = DefaultSQLitePath
	}
	if c.Store.Backend == BackendMongo {
		if c.Store.MongoURI == "" {
			c.Store.MongoURI = DefaultMongoURI
		}
		if c.Store.MongoDatabase == "" {
			c.Store.MongoDatabase = DefaultMongoDatabase
		}
	}
	if c.Store.Backend == BackendRemote && c.Store.RemoteAddr == "" {
		c.Store.RemoteAddr = DefaultRemoteAddr
	}

	if c.Memento == nil {
		c.Memento = &Memento{}
	}
	if c.Memento.Negotiation == "" {
		c.Memento.Negotiation = DefaultNegotiation
	}
	if c.Memento.BaseURI == "" {
		c.Memento.BaseURI = DefaultBaseURI
	}
	if c.Memento.ErrorPages == "" {
		c.Memento.ErrorPages = DefaultErrorPages
	}
}
