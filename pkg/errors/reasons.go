package errors

// Reason is the machine-readable cause attached to a rejected operation.
type Reason string

const (
	ReasonOrderNotFound                  Reason = "ORDER_NOT_FOUND"
	ReasonOrderNotReceivable             Reason = "ORDER_NOT_RECEIVABLE"
	ReasonInvalidStatusTransition        Reason = "INVALID_STATUS_TRANSITION"
	ReasonLineItemNotFound               Reason = "LINE_ITEM_NOT_FOUND"
	ReasonVendorMismatch                 Reason = "VENDOR_MISMATCH"
	ReasonLocationMismatch               Reason = "LOCATION_MISMATCH"
	ReasonInsufficientRemainingQuantity  Reason = "INSUFFICIENT_REMAINING_QUANTITY"
	ReasonInsufficientStock              Reason = "INSUFFICIENT_STOCK"
	ReasonConcurrentModificationExceeded Reason = "CONCURRENT_MODIFICATION_RETRY_EXCEEDED"
	ReasonBlueprintNotFound              Reason = "BLUEPRINT_NOT_FOUND"
	ReasonInvalidTierData                Reason = "INVALID_TIER_DATA"
	ReasonInvalidCounterName             Reason = "INVALID_COUNTER_NAME"
	ReasonSessionNotFoundOrClosed        Reason = "SESSION_NOT_FOUND_OR_CLOSED"
	ReasonSessionAlreadyOpen             Reason = "SESSION_ALREADY_OPEN"
	ReasonValidation                     Reason = "VALIDATION_FAILED"
)

// RetryHint tells the caller how a rejected request may be resubmitted.
type RetryHint string

const (
	// RetryAsIs means nothing was applied and the same payload may be resent.
	RetryAsIs RetryHint = "as_is"
	// RetryAfterRefetch means items in the batch conflict with current state.
	RetryAfterRefetch RetryHint = "refetch"
	// RetryNever means the request itself is wrong and must be changed first.
	RetryNever RetryHint = "never"
)

// Rejection is the structured details payload for engine rejections.
// Applied is always false: the engine never commits part of a request.
type Rejection struct {
	Reason    Reason         `json:"reason"`
	Applied   bool           `json:"applied"`
	Retry     RetryHint      `json:"retry"`
	Conflicts []ItemConflict `json:"conflicts,omitempty"`
	Fields    any            `json:"fields,omitempty"`
}

// ItemConflict describes one offending item inside a batch request.
type ItemConflict struct {
	ItemID    string `json:"item_id"`
	Reason    Reason `json:"reason"`
	Requested int    `json:"requested,omitempty"`
	Available int    `json:"available"`
}

// Reject builds an Error carrying a Rejection with the hint implied by code.
func Reject(code Code, reason Reason, message string, conflicts ...ItemConflict) *Error {
	return New(code, message).WithDetails(Rejection{
		Reason:    reason,
		Applied:   false,
		Retry:     hintFor(code),
		Conflicts: conflicts,
	})
}

// Invalid builds a validation rejection. fields, when set, names the offending inputs.
func Invalid(message string, fields any) *Error {
	return New(CodeValidation, message).WithDetails(invalid(fields))
}

// InvalidWrap is Invalid with an underlying cause.
func InvalidWrap(err error, message string, fields any) *Error {
	return Wrap(CodeValidation, err, message).WithDetails(invalid(fields))
}

func invalid(fields any) Rejection {
	return Rejection{
		Reason: ReasonValidation,
		Retry:  hintFor(CodeValidation),
		Fields: fields,
	}
}

// ReasonOf extracts the rejection reason from err, if any.
func ReasonOf(err error) Reason {
	typed := As(err)
	if typed == nil {
		return ""
	}
	switch d := typed.Details().(type) {
	case Rejection:
		return d.Reason
	case *Rejection:
		if d != nil {
			return d.Reason
		}
	}
	return ""
}

func hintFor(code Code) RetryHint {
	switch code {
	case CodeConcurrency, CodeDependency, CodeInternal:
		return RetryAsIs
	case CodeStateConflict, CodeConflict:
		return RetryAfterRefetch
	default:
		return RetryNever
	}
}
