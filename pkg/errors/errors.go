// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package errors

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeStoreRequestFailure       Code = "store.request.failure"
	CodeStoreBackendUnsupported   Code = "store.backend.unsupported"
	CodeStoreOperationUnsupported Code = "store.operation.unsupported"
	CodeStoreSetNotFound          Code = "store.set.not_found"
	CodeStoreAttributeInvalid     Code = "store.attribute.invalid_input"

	CodeSearchDimensionMismatch Code = "search.vector.dimension_mismatch"
	CodeSearchQueryInvalid      Code = "search.query.invalid_input"
	CodeSearchSessionNotFound   Code = "search.session.not_found"

	CodeEmbeddingUnavailable         Code = "embedding.provider.unavailable"
	CodeEmbeddingProviderNotFound    Code = "embedding.provider.not_found"
	CodeEmbeddingRequestFailure      Code = "embedding.request.upstream_failure"
	CodeEmbeddingModalityUnsupported Code = "embedding.modality.unsupported"

	CodeIngestItemFailure        Code = "ingest.item.failure"
	CodeIngestContentUnsupported Code = "ingest.content.unsupported"
	CodeIngestBatchInvalid       Code = "ingest.batch.invalid_input"

	CodeJobActionFailure Code = "job.action.failure"
	CodeJobNotFound      Code = "job.get.not_found"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerEntityNotFound  Code = "server.entity.not_found"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"
	CodeServerNotImplemented  Code = "server.method.not_implemented"

	CodeSecretInvalidInput   Code = "secret.input.invalid_input"
	CodeSecretNotFound       Code = "secret.get.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretDeleteFailure  Code = "secret.delete.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"

	CodeCLIServerNotRunning Code = "cli.server.not_running"
	CodeCLIRequestFailure   Code = "cli.request.failure"
	CodeCLIResponseInvalid  Code = "cli.response.invalid"
	CodeCLISetupFailure     Code = "cli.setup.failure"
	CodeCLIInputInvalid     Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldVectorSet(value string) Attr {
	return Field("vector_set", value)
}

func FieldElement(value string) Attr {
	return Field("element", value)
}

func FieldJobID(value string) Attr {
	return Field("job_id", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(string(code)).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(string(code)).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(string(code)).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(string(code)).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(string(code)).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	return Code(oopsErr.Code())
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUnsupported(err error) bool {
	return reason(CodeOf(err)) == "unsupported"
}

func IsDimensionMismatch(err error) bool {
	return HasCode(err, CodeSearchDimensionMismatch)
}

func IsEmbeddingUnavailable(err error) bool {
	return HasCode(err, CodeEmbeddingUnavailable)
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") || reason(code) == "upstream_failure"
}

func HTTPStatus(err error) int {
	switch {
	case HasCode(err, CodeServerNotImplemented):
		return http.StatusNotImplemented
	case IsNotFound(err):
		return http.StatusNotFound
	case IsDimensionMismatch(err), IsInvalidInput(err):
		return http.StatusBadRequest
	case IsUnsupported(err):
		return http.StatusUnprocessableEntity
	case IsEmbeddingUnavailable(err):
		return http.StatusConflict
	case IsUpstreamFailure(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(string(CodeServerInternalFailure)).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
