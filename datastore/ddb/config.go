/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"fmt"
	"io"

	"github.com/suparena/dataprovider/errors"
	"gopkg.in/yaml.v3"
)

// DefaultKey is the key attribute of a table when TableConfig.Key is empty.
const DefaultKey = "id"

// Config holds the connection settings and the table mapping.
type Config struct {
	Region string `yaml:"region"`
	// Endpoint overrides the service endpoint, e.g. http://localhost:8000
	// for DynamoDB Local.
	Endpoint  string        `yaml:"endpoint"`
	AccessKey string        `yaml:"accessKey"`
	SecretKey string        `yaml:"secretKey"`
	Tables    []TableConfig `yaml:"tables"`
}

// TableConfig maps a resource onto a table.
type TableConfig struct {
	// Resource is the plural resource name, e.g. "posts".
	Resource string `yaml:"resource"`
	// Table is the DynamoDB table name.
	Table string `yaml:"table"`
	// Key is the hash key attribute of the table (default "id").
	Key     string        `yaml:"key"`
	Indexes []IndexConfig `yaml:"indexes"`
}

// IndexConfig binds a list query to a secondary index.
type IndexConfig struct {
	// Query is the operation name filters use, e.g. "postsByBlog".
	Query string `yaml:"query"`
	// IndexName is the GSI name. Empty queries the table itself.
	IndexName string `yaml:"index"`
	// PartitionKey is the hash key attribute of the index.
	PartitionKey string `yaml:"partitionKey"`
	// SortKey is the range key attribute of the index, if any.
	SortKey string `yaml:"sortKey"`
	// SortKeyFields names the parts of a composite sort key in stored
	// order. Composite operands are joined with "#" in this order.
	SortKeyFields []string `yaml:"sortKeyFields"`
}

// KeyName returns the key attribute, defaulting to DefaultKey.
func (t TableConfig) KeyName() string {
	if t.Key == "" {
		return DefaultKey
	}
	return t.Key
}

// Validate checks the table mapping.
func (c Config) Validate() error {
	resources := make(map[string]bool, len(c.Tables))
	queries := make(map[string]bool)
	for i, t := range c.Tables {
		if t.Resource == "" {
			return errors.NewValidationError(fmt.Sprintf("tables[%d].resource", i), "must not be empty")
		}
		if t.Table == "" {
			return errors.NewValidationError(fmt.Sprintf("tables[%d].table", i), "must not be empty")
		}
		if resources[t.Resource] {
			return errors.NewValidationError(fmt.Sprintf("tables[%d].resource", i), fmt.Sprintf("duplicate resource %q", t.Resource))
		}
		resources[t.Resource] = true

		for j, idx := range t.Indexes {
			field := fmt.Sprintf("tables[%d].indexes[%d]", i, j)
			if idx.Query == "" {
				return errors.NewValidationError(field+".query", "must not be empty")
			}
			if idx.PartitionKey == "" {
				return errors.NewValidationError(field+".partitionKey", "must not be empty")
			}
			if len(idx.SortKeyFields) > 0 && idx.SortKey == "" {
				return errors.NewValidationError(field+".sortKeyFields", "requires sortKey")
			}
			if queries[idx.Query] {
				return errors.NewValidationError(field+".query", fmt.Sprintf("duplicate query %q", idx.Query))
			}
			queries[idx.Query] = true
		}
	}
	return nil
}

// LoadTables reads a YAML list of table mappings.
func LoadTables(r io.Reader) ([]TableConfig, error) {
	var tables []TableConfig
	if err := yaml.NewDecoder(r).Decode(&tables); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode table mapping: %w", err)
	}
	return tables, nil
}
