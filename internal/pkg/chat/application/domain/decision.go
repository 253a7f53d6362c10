package chat

import "fmt"

// DecisionCode is the outcome of a send validation.
type DecisionCode int16

const (
	DecisionSuccess DecisionCode = iota
	DecisionUnauthorized
	DecisionForbidden
	DecisionChatNotFound
	DecisionSenderNotFound
	DecisionContentEmpty
	DecisionPrivateChatBlocked
	DecisionGroupChatDisabled
	DecisionPrivateChatNotAllowed
	DecisionNotInGroup
	DecisionUserMuted
	DecisionViaGroupChatValidationFailed
	DecisionInternalError
)

var decisionNames = map[DecisionCode]string{
	DecisionSuccess:                      "success",
	DecisionUnauthorized:                 "unauthorized",
	DecisionForbidden:                    "forbidden",
	DecisionChatNotFound:                 "chat_not_found",
	DecisionSenderNotFound:               "sender_not_found",
	DecisionContentEmpty:                 "content_empty",
	DecisionPrivateChatBlocked:           "private_chat_blocked",
	DecisionGroupChatDisabled:            "group_chat_disabled",
	DecisionPrivateChatNotAllowed:        "private_chat_not_allowed",
	DecisionNotInGroup:                   "not_in_group",
	DecisionUserMuted:                    "user_muted",
	DecisionViaGroupChatValidationFailed: "via_group_chat_validation_failed",
	DecisionInternalError:                "internal_error",
}

func (c DecisionCode) String() string {
	if s, ok := decisionNames[c]; ok {
		return s
	}
	return fmt.Sprintf("decision(%d)", int16(c))
}

// Decision is a validation result. Rejections are expected outcomes, not errors.
type Decision struct {
	Code   DecisionCode
	Reason string
}

// OK reports whether the decision allows sending.
func (d Decision) OK() bool { return d.Code == DecisionSuccess }

func (d Decision) String() string {
	if d.Reason == "" {
		return d.Code.String()
	}
	return d.Code.String() + ": " + d.Reason
}

// Allow is the success decision.
func Allow() Decision { return Decision{Code: DecisionSuccess} }

// Reject builds a failed decision.
func Reject(code DecisionCode, reason string) Decision {
	return Decision{Code: code, Reason: reason}
}

// Rejectf builds a failed decision with a formatted reason.
func Rejectf(code DecisionCode, format string, args ...any) Decision {
	return Decision{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Internal is the decision reported for infrastructure faults. The reason
// never carries the underlying error.
func Internal() Decision {
	return Decision{Code: DecisionInternalError, Reason: "message could not be accepted, try again later"}
}
