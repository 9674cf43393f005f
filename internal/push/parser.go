// Package push implements the background push-delivery handler: payload
// parsing, notification rendering and routing of user interaction back into
// the application.
package push

import (
	"encoding/json"

	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

// ParsePayload decodes a push payload into a descriptor. A nil payload yields
// the default descriptor. A payload that is not valid JSON is used verbatim as
// the body. ParsePayload never fails: a bad payload must still produce a
// notification.
func ParsePayload(data []byte) orderstatus.NotificationDescriptor {
	desc := orderstatus.DefaultDescriptor()
	if data == nil {
		return desc
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		if len(data) > 0 {
			desc.Body = string(data)
		}
		return desc
	}

	// Valid JSON that is not an object carries no fields we know about.
	fields, ok := raw.(map[string]any)
	if !ok {
		return desc
	}

	override(&desc.Title, fields, "title")
	override(&desc.Body, fields, "body")
	override(&desc.Icon, fields, "icon")
	override(&desc.Badge, fields, "badge")
	override(&desc.Tag, fields, "tag")
	override(&desc.TargetURL, fields, "url")
	return desc
}

// override replaces *dst with fields[key] when it is a non-empty string.
func override(dst *string, fields map[string]any, key string) {
	if s, ok := fields[key].(string); ok && s != "" {
		*dst = s
	}
}
