// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package schema supplies the schema description handed to the SQL generator.
// The description is an opaque prompt fragment: it is rendered from a Document
// (embedded default, YAML file or live database introspection) and never
// validated against the database.
package schema

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider returns the current schema description.
type Provider interface {
	Describe(ctx context.Context) (string, error)
}

// Document is the structured form of a schema description.
type Document struct {
	Dialect string  `yaml:"dialect"`
	Tables  []Table `yaml:"tables"`
}

// Table describes one table and its columns in database order.
type Table struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Columns     []Column `yaml:"columns"`
}

// Column describes one column. Values lists the allowed values of an
// enumeration-like column.
type Column struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Values      []string `yaml:"values,omitempty"`
}

// Parse decodes a YAML document and checks that every table and column is named.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parse schema: %w", err)
	}
	if len(doc.Tables) == 0 {
		return Document{}, fmt.Errorf("parse schema: no tables defined")
	}
	for i, t := range doc.Tables {
		if strings.TrimSpace(t.Name) == "" {
			return Document{}, fmt.Errorf("parse schema: table %d has no name", i+1)
		}
		for j, c := range t.Columns {
			if strings.TrimSpace(c.Name) == "" {
				return Document{}, fmt.Errorf("parse schema: column %d of %s has no name", j+1, t.Name)
			}
		}
	}
	return doc, nil
}

// Render produces the text block sent to the generator. Output is stable for a
// given document.
func (d Document) Render() string {
	var b strings.Builder
	if d.Dialect != "" {
		fmt.Fprintf(&b, "Dialect: %s\n", d.Dialect)
	}
	for _, t := range d.Tables {
		b.WriteString("\nTable ")
		b.WriteString(t.Name)
		if t.Description != "" {
			b.WriteString(": ")
			b.WriteString(t.Description)
		}
		b.WriteString("\n")
		for _, c := range t.Columns {
			b.WriteString("  - ")
			b.WriteString(c.Name)
			if c.Type != "" {
				fmt.Fprintf(&b, " (%s)", c.Type)
			}
			if c.Description != "" {
				b.WriteString(": ")
				b.WriteString(c.Description)
			}
			if len(c.Values) > 0 {
				fmt.Fprintf(&b, " [allowed values: %s]", strings.Join(c.Values, ", "))
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimLeft(b.String(), "\n")
}

// Static is a fixed description.
type Static string

func (s Static) Describe(context.Context) (string, error) { return string(s), nil }

//go:embed default.yaml
var defaultYAML []byte

// Default returns the built-in description of the customer, product and order
// tables.
func Default() Static {
	doc, err := Parse(defaultYAML)
	if err != nil {
		panic(err)
	}
	return Static(doc.Render())
}
