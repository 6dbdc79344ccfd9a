// Package validation validates transcription requests and audio buffers
// using struct tags (go-playground/validator).
//
//	type Request struct {
//	    Language string `json:"language" validate:"omitempty,bcp47_language_tag"`
//	}
//	err := validation.Validate(req)
//
// Failures are returned as CONFIGURATION_INVALID AppErrors carrying one
// FieldError per offending field.
package validation
