// Package http serves the ephemera file-sharing API over chi.
//
// # Routes
//
//	POST   /files/upload                   multipart upload, optional bearer token
//	GET    /files/my?tag=                  owner's live files, bearer token required
//	GET    /files/{token}                  public metadata
//	GET    /files/{token}/download         file content; ?password= for protected files
//	POST   /files/{token}/verify-password  {"password": "..."} -> {"valid": true}
//	DELETE /files/{id}                     owner delete, bearer token required
//	GET    /healthz
//	GET    /metrics                        when a Metrics implementation is configured
//
// # Uploads
//
// The upload body is read as a stream. The form fields expiresIn, password
// and tags must precede the "file" part so the file can be handed to the
// service without buffering it.
//
// # Identity
//
// IdentityMiddleware turns an "Authorization: Bearer" header into a
// requester id through a TokenVerifier. Handlers read it back with
// RequesterFromContext.
//
// # Errors
//
// HandleError maps the ephemera sentinel errors onto status codes and a
// JSON body of the form {"error": code, "message": text}:
//
//	ErrTooLarge         413 too_large
//	ErrPolicyViolation  422 policy_violation
//	ErrNotFound         404 not_found
//	ErrUnauthorized     401 unauthorized
//	ErrForbidden        403 forbidden
//	ErrInvalidInput     400 invalid_input
//	anything else       500 internal_error
package http
