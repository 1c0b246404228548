package llm

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/raphaelgruber/prodscout/internal/models"
)

var productSchema = sync.OnceValue(func() string {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&models.ProductRecord{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		// Reflecting a static struct cannot fail at runtime.
		panic(err)
	}
	return string(data)
})

// ProductSchema returns the JSON schema of a research record, for prompts.
func ProductSchema() string {
	return productSchema()
}
