package mud

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// templateSchema guards the outer shape of user-authored template
// payloads before the rule parser takes over. Tuple internals (op
// arity, operand types) are checked by ParseRules/ParsePermMap, which
// produce better error messages than a schema can.
const templateSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1, "maxLength": 64},
    "template_type": {"enum": ["node", "link", "thing"]},
    "short_description": {"type": "string", "maxLength": 256},
    "long_description": {"type": "string", "maxLength": 4096},
    "fields": {"type": "object"},
    "default_permissions": {"type": "object"},
    "interactions": {
      "type": "array",
      "maxItems": 64,
      "items": {
        "type": "object",
        "required": ["on", "do"],
        "properties": {
          "on": {"type": "string", "minLength": 1, "maxLength": 64},
          "if": {"type": "array"},
          "do": {"type": "array"},
          "else": {"type": "array"}
        }
      }
    }
  }
}`

var compiledTemplateSchema = jsonschema.MustCompileString("template.json", templateSchema)

// ValidateTemplatePayload checks the decoded JSON body of a template
// create/edit against the outer schema.
func ValidateTemplatePayload(body map[string]any) error {
	return compiledTemplateSchema.Validate(map[string]any(body))
}
