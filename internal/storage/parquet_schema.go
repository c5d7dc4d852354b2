package storage

import (
	"encoding/json"

	"striem/internal/schema"
)

// parquetField mirrors the JSON-schema shape xitongsys/parquet-go's
// writer.NewJSONWriter expects: a struct tag string per field, assembled
// here at runtime instead of generated Go structs per OCSF class, since
// the column set varies per class_uid.
type parquetField struct {
	Tag string `json:"Tag"`
}

type parquetSchemaDoc struct {
	Tag    string         `json:"Tag"`
	Fields []parquetField `json:"Fields"`
}

// buildParquetSchema renders desc's columns (plus the synthetic raw and
// time columns) as the JSON schema string xitongsys/parquet-go consumes.
func buildParquetSchema(desc *schema.ClassDescriptor) (string, error) {
	doc := parquetSchemaDoc{Tag: "name=striem_row, repetitiontype=REQUIRED"}

	seen := map[string]bool{}
	addField := func(name string, pType string, convertedType string, nullable bool) {
		if seen[name] {
			return
		}
		seen[name] = true
		rep := "REQUIRED"
		if nullable {
			rep = "OPTIONAL"
		}
		tag := "name=" + name + ", type=" + pType
		if convertedType != "" {
			tag += ", convertedtype=" + convertedType
		}
		tag += ", repetitiontype=" + rep
		doc.Fields = append(doc.Fields, parquetField{Tag: tag})
	}

	addField("time", "INT64", "", false)

	for _, col := range desc.Columns {
		if col.Path == rawColumnName || col.Path == "time" {
			continue
		}
		name := flatten(col.Path)
		switch col.Type {
		case schema.ColumnInt:
			addField(name, "INT64", "", true)
		case schema.ColumnFloat:
			addField(name, "DOUBLE", "", true)
		case schema.ColumnBool:
			addField(name, "BOOLEAN", "", true)
		case schema.ColumnBytes:
			addField(name, "BYTE_ARRAY", "", true)
		default:
			addField(name, "BYTE_ARRAY", "UTF8", true)
		}
	}

	addField(rawColumnName, "BYTE_ARRAY", "UTF8", true)

	out, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
