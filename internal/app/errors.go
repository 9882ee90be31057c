package app

import "errors"

var (
	// ErrInvalidCredentials is returned on any phone or PIN mismatch. The same
	// error covers "no such phone" so callers cannot probe for owner accounts.
	ErrInvalidCredentials = errors.New("incorrect phone number or PIN")

	// ErrNoDocuments is returned when re-authentication matched an owner who
	// has nothing to share. Product decision, not a security policy.
	ErrNoDocuments = errors.New("no documents available for this account")

	// ErrInvalidCapability covers unknown, deactivated, and expired share codes
	// alike.
	ErrInvalidCapability = errors.New("share code is invalid or expired")

	// ErrSelfAccess is the advisory name guard on request creation.
	ErrSelfAccess = errors.New("cannot request access to your own documents")

	// ErrOwnershipMismatch rejects a request wholesale when any requested
	// document does not belong to the share code's owner.
	ErrOwnershipMismatch = errors.New("requested documents do not belong to this owner")

	// ErrNotFound covers missing resources and ownership mismatches on owner
	// operations, deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when a terminal access request is asked to
	// transition again.
	ErrInvalidState = errors.New("request has already been approved or denied")

	// ErrPermissionDenied covers both "no approved request" and "grant does not
	// allow this action".
	ErrPermissionDenied = errors.New("permission denied")

	ErrQuotaExceeded      = errors.New("storage limit exceeded")
	ErrStorageUnavailable = errors.New("document storage is temporarily unavailable")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailAlreadyExists       = errors.New("email already exists")
	ErrNameRequired             = errors.New("name required")
	ErrPhoneInvalid             = errors.New("phone number must be 10 digits")
	ErrPINInvalid               = errors.New("PIN must be 4 to 6 digits")
	ErrCredentialsRequired      = errors.New("phone number and PIN required")
	ErrDocumentsRequired        = errors.New("at least one document must be selected")
	ErrInvalidSelection         = errors.New("selected documents must be among the requested documents")
	ErrInvalidPermission        = errors.New("unknown permission level")
	ErrInvalidSize              = errors.New("size must be a positive number of bytes")
	ErrFileRequired             = errors.New("file required")
)
