// Package apierror implements the registry's error taxonomy: a typed kind,
// an HTTP status mapping, and the OCI-shaped JSON error envelope.
package apierror

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Kind identifies a category of registry error. The string value is the
// stable wire code used in the JSON error envelope.
type Kind string

const (
	KindRegistryNameInvalid        Kind = "NAME_INVALID"
	KindRegistryDigestInvalid      Kind = "DIGEST_INVALID"
	KindRegistrySizeInvalid        Kind = "SIZE_INVALID"
	KindRegistryTagInvalid         Kind = "TAG_INVALID"
	KindRegistryManifestInvalid    Kind = "MANIFEST_INVALID"
	KindRegistryBlobUploadInvalid  Kind = "BLOB_UPLOAD_INVALID"
	KindRegistryNameUnknown        Kind = "NAME_UNKNOWN"
	KindRegistryManifestUnknown    Kind = "MANIFEST_UNKNOWN"
	KindRegistryBlobUnknown        Kind = "BLOB_UNKNOWN"
	KindRegistryBlobUploadUnknown  Kind = "BLOB_UPLOAD_UNKNOWN"
	KindRegistryManifestBlobUnk    Kind = "MANIFEST_BLOB_UNKNOWN"
	KindNotFound                   Kind = "NOT_FOUND"
	KindRecordNotFound              Kind = "RECORD_NOT_FOUND"
	KindRegistryManifestUnverified Kind = "MANIFEST_UNVERIFIED"
	KindRegistryUnauthorized       Kind = "UNAUTHORIZED"
	KindAuthenticationError       Kind = "AUTHENTICATION_ERROR"
	KindAuthorizationError        Kind = "AUTHORIZATION_ERROR"
	KindUnauthorized               Kind = "UNAUTHORIZED_ERROR"
	KindJWTokenValidationError     Kind = "JWT_VALIDATION_ERROR"
	KindJWTokenSignError           Kind = "JWT_SIGN_ERROR"
	KindMaxPayloadError            Kind = "MAX_PAYLOAD_ERROR"
	KindRegistryBlobError          Kind = "BLOB_ERROR"
	KindInternalError              Kind = "INTERNAL_ERROR"
	KindJSONError                  Kind = "JSON_ERROR"
	KindSQLError                   Kind = "SQL_ERROR"
	KindSessionError               Kind = "SESSION_ERROR"
	KindInvalidSession              Kind = "INVALID_SESSION"
	KindConfigError                Kind = "CONFIG_ERROR"
)

// statusFor maps each kind to its HTTP status, per the validation /
// absence / precondition / authorization / quota / internal groupings.
var statusFor = map[Kind]int{
	KindRegistryNameInvalid:       http.StatusBadRequest,
	KindRegistryDigestInvalid:     http.StatusBadRequest,
	KindRegistrySizeInvalid:       http.StatusBadRequest,
	KindRegistryTagInvalid:        http.StatusBadRequest,
	KindRegistryManifestInvalid:   http.StatusBadRequest,
	KindRegistryBlobUploadInvalid: http.StatusBadRequest,

	KindRegistryNameUnknown:       http.StatusNotFound,
	KindRegistryManifestUnknown:   http.StatusNotFound,
	KindRegistryBlobUnknown:       http.StatusNotFound,
	KindRegistryBlobUploadUnknown: http.StatusNotFound,
	KindRegistryManifestBlobUnk:   http.StatusNotFound,
	KindNotFound:                  http.StatusNotFound,
	KindRecordNotFound:            http.StatusNotFound,

	KindRegistryManifestUnverified: http.StatusExpectationFailed,

	KindRegistryUnauthorized:   http.StatusUnauthorized,
	KindAuthenticationError:    http.StatusUnauthorized,
	KindAuthorizationError:     http.StatusUnauthorized,
	KindUnauthorized:           http.StatusUnauthorized,
	KindJWTokenValidationError: http.StatusUnauthorized,
	KindJWTokenSignError:       http.StatusUnauthorized,

	KindMaxPayloadError: http.StatusRequestEntityTooLarge,

	KindRegistryBlobError: http.StatusInternalServerError,
	KindInternalError:     http.StatusInternalServerError,
	KindJSONError:         http.StatusInternalServerError,
	KindSQLError:          http.StatusInternalServerError,
	KindSessionError:      http.StatusInternalServerError,
	KindInvalidSession:    http.StatusInternalServerError,
	KindConfigError:       http.StatusInternalServerError,
}

// Status returns the HTTP status code for k, defaulting to 500 for an
// unrecognized kind rather than panicking — callers constructing errors
// directly from strings (e.g. deserialized from elsewhere) should never
// crash a request.
func (k Kind) Status() int {
	if s, ok := statusFor[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is a registry error: a kind, a human message, an optional
// underlying cause, and an optional authentication realm (used to set
// WWW-Authenticate on 401 responses).
type Error struct {
	Kind    Kind
	Message string
	Cause   string
	Realm   string
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	e := &Error{Kind: kind, Message: message}
	if cause != nil {
		e.Cause = cause.Error()
	}
	return e
}

func (e *Error) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// wireEntry is a single entry in the OCI-shaped "errors" array.
type wireEntry struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type wireEnvelope struct {
	Errors []wireEntry `json:"errors"`
}

// WriteJSON writes the JSON error envelope and, for 401s with a realm set,
// the WWW-Authenticate header.
func WriteJSON(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Docker-Distribution-API-Version", "registry/2.0")
	if err.Kind.Status() == http.StatusUnauthorized && err.Realm != "" {
		w.Header().Set("WWW-Authenticate", err.Realm)
	}
	w.WriteHeader(err.Kind.Status())
	_ = json.NewEncoder(w).Encode(wireEnvelope{
		Errors: []wireEntry{{
			Code:    string(err.Kind),
			Message: err.Message,
			Details: err.Cause,
		}},
	})
}
