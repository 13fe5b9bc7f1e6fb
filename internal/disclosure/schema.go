package disclosure

import (
	"intransparent/internal/errors"
)

// ColumnType is the declared type of a table column.
type ColumnType string

const (
	TypeInt    ColumnType = "int"
	TypeFloat  ColumnType = "float"
	TypeString ColumnType = "string"
)

// reservedColumn is the row flag name; it can never be a data column.
const reservedColumn = "redundant"

// Column pairs a column name with its declared type.
type Column struct {
	Name string
	Type ColumnType
}

// ElaborateSchema resolves the declared schema for the given column names.
// Columns without a schema entry default to int, matching how most
// disclosures report exact counts. Unknown type names and a column named
// "redundant" are schema errors.
func ElaborateSchema(names []string, schema map[string]string) ([]Column, error) {
	columns := make([]Column, 0, len(names))
	for _, name := range names {
		if name == reservedColumn {
			return nil, errors.NewSchemaError("column named %q is reserved", reservedColumn)
		}

		typeName := TypeInt
		if declared, ok := schema[name]; ok {
			typeName = ColumnType(declared)
		}
		switch typeName {
		case TypeInt, TypeFloat, TypeString:
		default:
			return nil, errors.NewSchemaError(
				"schema for %q has invalid type %q", name, typeName)
		}

		columns = append(columns, Column{Name: name, Type: typeName})
	}
	return columns, nil
}
