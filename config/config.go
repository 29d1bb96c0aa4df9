/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/suparena/dataprovider/datastore/ddb"
	"github.com/suparena/dataprovider/errors"
	"github.com/suparena/dataprovider/logging"
	"gopkg.in/yaml.v3"
)

// Backends a provider can run against.
const (
	BackendGraphQL  = "graphql"
	BackendDynamoDB = "dynamodb"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DATAPROVIDER_"

// Config is the complete configuration of a data provider process.
type Config struct {
	Log          logging.Config     `yaml:"log"`
	Server       ServerConfig       `yaml:"server"`
	Backend      string             `yaml:"backend"`
	GraphQL      GraphQLConfig      `yaml:"graphql"`
	AdminQueries AdminQueriesConfig `yaml:"adminQueries"`
	DynamoDB     DynamoDBConfig     `yaml:"dynamodb"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	CORSOrigin      string        `yaml:"corsOrigin"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// GraphQLConfig points at a GraphQL endpoint and holds the operation
// documents, keyed by operation name.
type GraphQLConfig struct {
	Endpoint  string            `yaml:"endpoint"`
	APIKey    string            `yaml:"apiKey"`
	Token     string            `yaml:"token"`
	Timeout   time.Duration     `yaml:"timeout"`
	Queries   map[string]string `yaml:"queries"`
	Mutations map[string]string `yaml:"mutations"`
}

// AdminQueriesConfig points at the identity admin REST endpoint. An empty
// endpoint disables the cognitoUsers and cognitoGroups resources.
type AdminQueriesConfig struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
}

// DynamoDBConfig extends the executor config with an external table
// mapping file, resolved relative to the config file.
type DynamoDBConfig struct {
	ddb.Config `yaml:",inline"`
	TablesFile string `yaml:"tablesFile"`
}

// Default returns the configuration used for unset fields.
func Default() *Config {
	return &Config{
		Log:     logging.Config{Level: "info", Format: logging.FormatJSON},
		Server:  ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Backend: BackendGraphQL,
		GraphQL: GraphQLConfig{Timeout: 30 * time.Second},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides and validates the result. Variables from envFiles
// (default ".env") are loaded first without replacing the existing
// environment; missing env files are ignored. An empty path skips the YAML
// document.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(raw); err != nil {
			return nil, err
		}
		if err := cfg.loadTables(filepath.Dir(path)); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(raw []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !stderrors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func (c *Config) loadTables(dir string) error {
	if c.DynamoDB.TablesFile == "" {
		return nil
	}
	path := c.DynamoDB.TablesFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open table mapping: %w", err)
	}
	defer f.Close()

	tables, err := ddb.LoadTables(f)
	if err != nil {
		return err
	}
	c.DynamoDB.Tables = append(c.DynamoDB.Tables, tables...)
	return nil
}

// ApplyEnv overrides endpoints, secrets and levels from DATAPROVIDER_*
// variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"BACKEND", &c.Backend},
		{"LOG_LEVEL", &c.Log.Level},
		{"LOG_FORMAT", &c.Log.Format},
		{"SERVER_ADDR", &c.Server.Addr},
		{"CORS_ORIGIN", &c.Server.CORSOrigin},
		{"GRAPHQL_ENDPOINT", &c.GraphQL.Endpoint},
		{"GRAPHQL_API_KEY", &c.GraphQL.APIKey},
		{"GRAPHQL_TOKEN", &c.GraphQL.Token},
		{"ADMIN_ENDPOINT", &c.AdminQueries.Endpoint},
		{"ADMIN_TOKEN", &c.AdminQueries.Token},
		{"DYNAMODB_REGION", &c.DynamoDB.Region},
		{"DYNAMODB_ENDPOINT", &c.DynamoDB.Endpoint},
		{"DYNAMODB_ACCESS_KEY", &c.DynamoDB.AccessKey},
		{"DYNAMODB_SECRET_KEY", &c.DynamoDB.SecretKey},
	}
	for _, o := range overrides {
		if v, ok := lookup(EnvPrefix + o.key); ok {
			*o.dst = v
		}
	}
}

// Validate checks that the selected backend is reachable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendGraphQL:
		if c.GraphQL.Endpoint == "" {
			return errors.NewValidationError("graphql.endpoint", "required for the graphql backend")
		}
	case BackendDynamoDB:
		if c.DynamoDB.Region == "" {
			return errors.NewValidationError("dynamodb.region", "required for the dynamodb backend")
		}
		if len(c.DynamoDB.Tables) == 0 {
			return errors.NewValidationError("dynamodb.tables", "required for the dynamodb backend")
		}
		if err := c.DynamoDB.Config.Validate(); err != nil {
			return err
		}
	default:
		return errors.NewValidationError("backend", fmt.Sprintf("unknown backend %q", c.Backend))
	}

	if c.Server.Addr == "" {
		return errors.NewValidationError("server.addr", "must not be empty")
	}
	return nil
}
