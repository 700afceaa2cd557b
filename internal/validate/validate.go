// SPDX-License-Identifier: Apache-2.0

// Package validate checks operator-supplied input against a JSON Schema
// before it reaches a system of record.
package validate

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed branch_schema.json
var branchSchemaJSON string

var branchSchema = mustCompile("branch_schema.json", branchSchemaJSON)

func mustCompile(url, schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schema))
	if err != nil {
		panic(fmt.Sprintf("validate: parse embedded schema: %v", err))
	}
	if err := c.AddResource(url, doc); err != nil {
		panic(fmt.Sprintf("validate: add embedded schema resource: %v", err))
	}
	sch, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("validate: compile embedded schema: %v", err))
	}
	return sch
}

// BranchInput validates a branch-registration payload (id, code,
// provider_tag, connection_descriptor) before it is written to the branch
// registry. It is the CLI's only line of defense against a malformed
// connection descriptor reaching a provider strategy's Open.
func BranchInput(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("validate: invalid json: %w", err)
	}
	if err := branchSchema.Validate(v); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}
