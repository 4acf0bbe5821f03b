package generator

import "github.com/santhosh-tekuri/jsonschema/v5"

// chartUpdateSchema constrains what the model may hand back. Anything
// that fails here is treated as a failed generation, not forwarded.
var chartUpdateSchema = jsonschema.MustCompileString("chartupdate.json", `{
	"type": "object",
	"required": ["explanation"],
	"properties": {
		"explanation":        {"type": "string", "minLength": 1},
		"chartConfig":        {"type": "object"},
		"dataSource":         {"type": "object"},
		"displayFormat":      {"type": "object"},
		"dataTransformation": {"type": "object"}
	},
	"additionalProperties": false
}`)
