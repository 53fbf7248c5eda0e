package nats

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/docflow-ai/internal/core/domain"
)

const taskSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["task_id", "type"],
  "properties": {
    "schema_version": {"type": "integer", "minimum": 1},
    "correlation_id": {"type": "string"},
    "created_at": {"type": "string"},
    "task_id": {"type": "string", "minLength": 1},
    "type": {"enum": ["PING", "DOCUMENT_ANALYZE", "DOCUMENT_REVIEW", "WORKFLOW_SUGGEST", "CHAT"]},
    "payload": {"type": ["object", "null"]},
    "reply_to": {"type": ["string", "null"]}
  }
}`

// EnvelopeDecoder validates raw task messages against the task envelope schema.
type EnvelopeDecoder struct {
	schema *jsonschema.Schema
}

func NewEnvelopeDecoder() (*EnvelopeDecoder, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("task.json", strings.NewReader(taskSchema)); err != nil {
		return nil, fmt.Errorf("add task schema: %w", err)
	}
	schema, err := compiler.Compile("task.json")
	if err != nil {
		return nil, fmt.Errorf("compile task schema: %w", err)
	}
	return &EnvelopeDecoder{schema: schema}, nil
}

func (d *EnvelopeDecoder) Decode(data []byte) (domain.Task, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return domain.Task{}, fmt.Errorf("%w: decode task envelope: %v", domain.ErrInvalidInput, err)
	}
	if err := d.schema.Validate(v); err != nil {
		return domain.Task{}, fmt.Errorf("%w: task envelope does not match schema: %v", domain.ErrInvalidInput, err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return domain.Task{}, fmt.Errorf("%w: decode task envelope: %v", domain.ErrInvalidInput, err)
	}
	if task.SchemaVersion == 0 {
		task.SchemaVersion = 1
	}
	if task.Payload == nil {
		task.Payload = map[string]any{}
	}
	return task, nil
}
