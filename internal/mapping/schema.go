package mapping

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Schema reflects the rule asset contract for validation and editor tooling.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(Document))
	schema.Title = "Intersection Mapping Rules"
	schema.Description = "Ordered rules turning simulation signals into synthesis parameters."
	return schema
}

// SchemaJSON returns the indented schema document.
func SchemaJSON() ([]byte, error) {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal mapping schema: %w", err)
	}
	return append(data, '\n'), nil
}
