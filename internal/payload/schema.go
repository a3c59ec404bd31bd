package payload

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Per-type JSON schemas enforced at submit time. A payload is immutable after
// creation, so this is the only place it is ever validated.
var schemas = map[JobType]string{
	TypeOrganizationEnrich: `{
		"type": "object",
		"required": ["organizationId"],
		"properties": {
			"organizationId": {"type": "string", "minLength": 1},
			"model": {"type": "string"}
		}
	}`,
	TypeUseCaseList: `{
		"type": "object",
		"required": ["folderId"],
		"properties": {
			"folderId": {"type": "string", "minLength": 1},
			"input": {"type": "string"},
			"count": {"type": "integer", "minimum": 0},
			"model": {"type": "string"}
		}
	}`,
	TypeUseCaseDetail: `{
		"type": "object",
		"required": ["useCaseId", "useCaseName", "folderId"],
		"properties": {
			"useCaseId": {"type": "string", "minLength": 1},
			"useCaseName": {"type": "string", "minLength": 1},
			"folderId": {"type": "string", "minLength": 1},
			"model": {"type": "string"}
		}
	}`,
	TypeExecutiveSummary: `{
		"type": "object",
		"required": ["folderId"],
		"properties": {
			"folderId": {"type": "string", "minLength": 1},
			"model": {"type": "string"}
		}
	}`,
	TypeChatMessage: `{
		"type": "object",
		"required": ["chatId", "messageId"],
		"properties": {
			"chatId": {"type": "string", "minLength": 1},
			"messageId": {"type": "string", "minLength": 1},
			"model": {"type": "string"}
		}
	}`,
	TypeDocumentSummary: `{
		"type": "object",
		"required": ["documentId"],
		"properties": {
			"documentId": {"type": "string", "minLength": 1},
			"model": {"type": "string"}
		}
	}`,
}

// ValidationErrorItem is a single schema violation.
type ValidationErrorItem struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError reports a payload rejected at submit time.
type ValidationError struct {
	Type   JobType               `json:"type"`
	Errors []ValidationErrorItem `json:"validation_errors"`
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("invalid %s payload", e.Type)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		parts = append(parts, item.Path+": "+item.Message)
	}
	return fmt.Sprintf("invalid %s payload: %s", e.Type, strings.Join(parts, "; "))
}

// Validate checks raw against the schema for t.
func Validate(t JobType, raw json.RawMessage) error {
	if !t.Valid() {
		return fmt.Errorf("unknown job type %q", t)
	}
	doc := strings.TrimSpace(string(raw))
	if doc == "" {
		doc = "null"
	}
	schemaLoader := gojsonschema.NewStringLoader(schemas[t])
	docLoader := gojsonschema.NewStringLoader(doc)
	res, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("validate %s payload: %w", t, err)
	}
	if res.Valid() {
		return nil
	}
	items := make([]ValidationErrorItem, 0, len(res.Errors()))
	for _, item := range res.Errors() {
		items = append(items, ValidationErrorItem{
			Path:    item.Field(),
			Message: item.Description(),
		})
	}
	return &ValidationError{Type: t, Errors: items}
}
